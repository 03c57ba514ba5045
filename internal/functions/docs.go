package functions

import (
	"context"
	"fmt"
	"strings"

	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/model"
	"github.com/m2tx/tutor_agent/internal/progress"
	"github.com/m2tx/tutor_agent/internal/retrieval"
)

const SearchDocumentsName = "search_documents"

// Response payload keys read back by the turn loop.
const (
	keySources       = "sources"
	keyUsedDocuments = "used_documents"
)

// Searcher runs the retrieval escalation for a user.
type Searcher interface {
	Search(ctx context.Context, userID, query string, detail model.DetailLevel) (retrieval.Outcome, error)
}

// CreateSearchDocumentsFunctionDeclaration returns the search_documents tool
// bound to one user. Status events go to sink when it is not nil.
func CreateSearchDocumentsFunctionDeclaration(s Searcher, userID string, sink progress.Sink) *llm.FunctionDeclaration {
	return &llm.FunctionDeclaration{
		Name: SearchDocumentsName,
		Description: "Searches the student's uploaded course materials (notes, slides, textbooks) for passages relevant to the query. " +
			"Use it before answering any question about the student's subject matter.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "A focused search query describing the information needed",
				},
				"detailLevel": map[string]any{
					"type":        "string",
					"enum":        []string{string(model.DetailBasic), string(model.DetailModerate), string(model.DetailComprehensive)},
					"description": "How much context is needed: basic for definitions, comprehensive for derivations and multi-step topics",
				},
			},
			"required": []string{"query"},
		},
		FunctionCall: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, _ := args["query"].(string)
			query = strings.TrimSpace(query)
			if query == "" {
				return map[string]any{"error": "query argument is required"}, nil
			}
			detailArg, _ := args["detailLevel"].(string)
			detail := model.ParseDetailLevel(detailArg)

			progress.Emit(sink, model.StepSearchingDocuments, "Searching your course materials", map[string]any{
				"query":       query,
				"detailLevel": detail,
			})

			outcome, err := s.Search(ctx, userID, query, detail)
			if err != nil {
				return nil, fmt.Errorf("search_documents: %w", err)
			}

			progress.Emit(sink, model.StepSearchComplete, "Finished searching your course materials", map[string]any{
				"usedDocuments": outcome.UsedDocuments,
				"searchMethod":  outcome.SearchMethod,
				"results":       len(outcome.Passages),
			})

			return SearchResponse(outcome), nil
		},
	}
}

// SearchResponse renders an outcome as the tool response payload.
func SearchResponse(o retrieval.Outcome) map[string]any {
	switch {
	case o.UsedDocuments:
		results := make([]map[string]any, 0, len(o.Passages))
		for _, p := range o.Passages {
			r := map[string]any{
				"title":           p.DocumentTitle,
				"doc_id":          p.DocumentID,
				"content":         p.Text,
				"relevance_score": p.RelevanceScore,
			}
			if p.PageNumber != nil {
				r["page"] = *p.PageNumber
			}
			results = append(results, r)
		}
		return map[string]any{
			"status":         "success",
			"search_method":  o.SearchMethod,
			"used_top_pages": o.UsedTopPages,
			keyUsedDocuments: true,
			keySources:       o.DocumentSources,
			"results":        results,
			"message":        "Use these passages and cite the document title and page for anything taken from them.",
		}
	case o.SearchMethod == retrieval.MethodNoMaterials:
		return map[string]any{
			"status":         "no_materials",
			"search_method":  o.SearchMethod,
			keyUsedDocuments: false,
			"message":        "The student has not uploaded any course materials. Answer from general knowledge and mention that no materials were found.",
		}
	default:
		return map[string]any{
			"status":         "no_relevant_results",
			"search_method":  o.SearchMethod,
			keyUsedDocuments: false,
			"message":        "No relevant information was found in the student's materials. Answer from general knowledge and say the answer is not from their materials.",
		}
	}
}

// Provenance extracts citations from a search_documents response payload.
func Provenance(response map[string]any) ([]model.DocumentSource, bool) {
	used, _ := response[keyUsedDocuments].(bool)
	sources, _ := response[keySources].([]model.DocumentSource)
	return sources, used
}
