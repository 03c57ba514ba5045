package agent

import (
	"context"
	"fmt"

	"github.com/m2tx/tutor_agent/internal/functions"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/m2tx/tutor_agent/internal/model"
	"github.com/m2tx/tutor_agent/internal/progress"
)

// Request is one chat turn to answer.
type Request struct {
	UserID  string
	History []model.HistoryEntry
	Message model.UserMessage
	// Language is the caller's locale hint, used before the router has
	// detected anything.
	Language string
}

// Tutor routes a request to an agent and runs it.
type Tutor struct {
	gen             llm.Generator
	router          *Router
	searcher        functions.Searcher
	policies        map[model.AgentType]Policy
	defaultLanguage string
	logger          logging.Logger
}

// TutorConfig holds the collaborators of a Tutor. All are constructed once
// at process start.
type TutorConfig struct {
	Generator       llm.Generator
	Router          *Router
	Searcher        functions.Searcher
	Policies        map[model.AgentType]Policy
	DefaultLanguage string
	Logger          logging.Logger
}

func NewTutor(cfg TutorConfig) *Tutor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	lang := cfg.DefaultLanguage
	if lang == "" {
		lang = "en"
	}
	return &Tutor{
		gen:             cfg.Generator,
		router:          cfg.Router,
		searcher:        cfg.Searcher,
		policies:        cfg.Policies,
		defaultLanguage: lang,
		logger:          logger,
	}
}

// Answer handles one request end to end. Status events go to sink when it
// is not nil.
func (t *Tutor) Answer(ctx context.Context, req Request, sink progress.Sink) (model.AgentResult, error) {
	lang := req.Language
	if lang == "" {
		lang = t.defaultLanguage
	}

	history := FormatHistory(req.History, lang)
	message := FormatMessage(req.Message, lang)

	decision, err := t.router.Route(ctx, history, message)
	if err != nil {
		return model.AgentResult{}, err
	}

	policy, ok := t.policies[decision.AgentType]
	if !ok {
		policy, ok = t.policies[model.AgentGeneral]
		if !ok {
			return model.AgentResult{}, fmt.Errorf("tutor: no policy for agent %q", decision.AgentType)
		}
	}

	log := t.logger.WithFields(logging.Fields{
		"user_id":        req.UserID,
		"agent":          policy.Agent,
		"language":       decision.DetectedLanguage,
		"needs_document": decision.LikelyNeedsDocuments,
	})
	log.Info("Agent selected")
	agentRequestsTotal.WithLabelValues(string(policy.Agent)).Inc()
	progress.Emit(sink, model.StepAgentSelected, "Selected the "+string(policy.Agent)+" agent", map[string]any{
		"agentType": policy.Agent,
		"reasoning": decision.Reasoning,
	})

	a := New(t.gen, policy)
	if policy.ToolsEnabled && t.searcher != nil {
		if err := a.AddFunctionCall(functions.CreateSearchDocumentsFunctionDeclaration(t.searcher, req.UserID, sink)); err != nil {
			return model.AgentResult{}, fmt.Errorf("tutor: register search: %w", err)
		}
	}

	progress.Emit(sink, model.StepGenerating, "Writing the answer", nil)

	contents := make([]model.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, message)

	result, err := a.Run(ctx, contents, decision)
	if err != nil {
		return model.AgentResult{}, err
	}

	log.WithFields(logging.Fields{
		"turns":          result.TurnsUsed,
		"used_documents": result.UsedDocuments,
		"sources":        len(result.DocumentSources),
	}).Info("Answer ready")

	return result, nil
}
