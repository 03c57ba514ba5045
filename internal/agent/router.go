package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/m2tx/tutor_agent/assets"
	"github.com/m2tx/tutor_agent/internal/functions"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/m2tx/tutor_agent/internal/model"
)

const routerMaxTokens = 512

// Router classifies a request to one of the agents with a single forced
// select_agent call.
type Router struct {
	gen    llm.Generator
	model  string
	logger logging.Logger
	decl   *llm.FunctionDeclaration
}

func NewRouter(gen llm.Generator, modelName string, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Router{
		gen:    gen,
		model:  modelName,
		logger: logger,
		decl:   functions.CreateSelectAgentFunctionDeclaration(),
	}
}

// Route returns the decision for the conversation. A missing or malformed
// select_agent call falls back to the general agent; only transport
// failures are returned as errors.
func (r *Router) Route(ctx context.Context, history []model.Content, message model.Content) (model.RouterDecision, error) {
	contents := make([]model.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, message)

	resp, err := r.gen.Generate(ctx, llm.GenerateRequest{
		Model:             r.model,
		SystemInstruction: assets.RouterInstruction,
		Tools:             []*llm.FunctionDeclaration{r.decl},
		ToolMode:          llm.ToolModeForced,
		AllowedFunctions:  []string{functions.SelectAgentName},
		Temperature:       0,
		MaxOutputTokens:   routerMaxTokens,
		Contents:          contents,
	})
	if errors.Is(err, llm.ErrNoCandidates) {
		return r.fallback("empty router response"), nil
	}
	if err != nil {
		return model.RouterDecision{}, fmt.Errorf("router: %w", err)
	}

	if !resp.HasFunctionCalls() {
		return r.fallback("router returned no tool call"), nil
	}

	call := resp.FunctionCalls[0]
	if call.Name != functions.SelectAgentName {
		return r.fallback(fmt.Sprintf("router called unexpected tool %q", call.Name)), nil
	}

	return r.decide(call.Args), nil
}

func (r *Router) decide(args map[string]any) model.RouterDecision {
	agentArg, _ := args["agentType"].(string)
	reasoning, _ := args["reasoning"].(string)
	lang, _ := args["detectedLanguage"].(string)
	needsDocs, _ := args["likelyNeedsDocuments"].(bool)

	agentType := model.AgentType(agentArg)
	if !agentType.Valid() {
		r.logger.WithField("agent_type", agentArg).Warn("Router chose unknown agent, using general")
		routerFallbacksTotal.Inc()
		agentType = model.AgentGeneral
	}

	return model.RouterDecision{
		AgentType:            agentType,
		Reasoning:            reasoning,
		DetectedLanguage:     normalizeLanguage(lang),
		LikelyNeedsDocuments: needsDocs,
	}
}

func (r *Router) fallback(reason string) model.RouterDecision {
	routerFallbacksTotal.Inc()
	r.logger.WithField("reason", reason).Warn("Router fallback to general agent")
	return model.RouterDecision{
		AgentType: model.AgentGeneral,
		Reasoning: reason,
	}
}
