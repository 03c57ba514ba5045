package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m2tx/tutor_agent/assets"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/m2tx/tutor_agent/internal/model"
)

const (
	evaluatorTemperature = 0.1
	evaluatorMaxTokens   = 512
	// passages longer than this are truncated in the judge prompt
	maxPassageChars = 2000
)

var evaluationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"quality": map[string]any{
			"type": "string",
			"enum": []string{string(model.QualityHigh), string(model.QualityMedium), string(model.QualityLow)},
		},
		"relevanceType": map[string]any{
			"type": "string",
			"enum": []string{
				string(model.RelevanceRelevant),
				string(model.RelevancePartiallyRelevant),
				string(model.RelevanceCompletelyIrrelevant),
			},
		},
		"needsMoreContext": map[string]any{"type": "boolean"},
		"reasoning":        map[string]any{"type": "string"},
	},
	"required": []string{"quality", "relevanceType", "needsMoreContext", "reasoning"},
}

// Judge produces a verdict over candidate passages.
type Judge interface {
	Evaluate(ctx context.Context, query string, passages []model.Passage) model.Evaluation
}

// Evaluator is the LLM-backed Judge.
type Evaluator struct {
	gen    llm.Generator
	model  string
	logger logging.Logger
}

func NewEvaluator(gen llm.Generator, modelName string, logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Evaluator{gen: gen, model: modelName, logger: logger}
}

// Evaluate never fails: any problem yields the conservative verdict, which
// always asks for more context.
func (e *Evaluator) Evaluate(ctx context.Context, query string, passages []model.Passage) model.Evaluation {
	if len(passages) == 0 {
		return model.ConservativeEvaluation("no passages retrieved")
	}

	resp, err := e.gen.Generate(ctx, llm.GenerateRequest{
		Model:             e.model,
		SystemInstruction: assets.EvaluatorInstruction,
		Temperature:       evaluatorTemperature,
		MaxOutputTokens:   evaluatorMaxTokens,
		ResponseSchema:    evaluationSchema,
		Contents: []model.Content{{
			Role:  model.RoleUser,
			Parts: []model.Part{model.TextPart(evaluationPrompt(query, passages))},
		}},
	})
	if err != nil {
		return e.fail(query, fmt.Errorf("generate: %w", err))
	}

	ev, err := parseEvaluation(resp.Text)
	if err != nil {
		return e.fail(query, err)
	}
	return ev
}

func (e *Evaluator) fail(query string, err error) model.Evaluation {
	evaluatorFailures.Inc()
	e.logger.WithError(err).WithField("query", query).Warn("Evaluator failed, assuming low quality")
	return model.ConservativeEvaluation("evaluation unavailable: " + err.Error())
}

func evaluationPrompt(query string, passages []model.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, p := range passages {
		text := truncate(p.Text, maxPassageChars)
		fmt.Fprintf(&b, "\n[%d] %s", i+1, p.DocumentTitle)
		if p.PageNumber != nil {
			fmt.Fprintf(&b, " (page %d)", *p.PageNumber)
		}
		fmt.Fprintf(&b, "\n%s\n", text)
	}
	return b.String()
}

// truncate shortens s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func parseEvaluation(raw string) (model.Evaluation, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if raw == "" {
		return model.Evaluation{}, fmt.Errorf("empty evaluation")
	}

	var ev model.Evaluation
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return model.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}

	switch ev.Quality {
	case model.QualityHigh, model.QualityMedium, model.QualityLow:
	default:
		return model.Evaluation{}, fmt.Errorf("unknown quality %q", ev.Quality)
	}

	switch ev.RelevanceType {
	case model.RelevanceRelevant, model.RelevancePartiallyRelevant, model.RelevanceCompletelyIrrelevant:
	default:
		return model.Evaluation{}, fmt.Errorf("unknown relevanceType %q", ev.RelevanceType)
	}

	return ev, nil
}
