package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/m2tx/tutor_agent/internal/functions"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/model"
)

// FallbackText is returned when an agent runs out of turns without answering.
const FallbackText = "I'm sorry, I wasn't able to finish working on your question. Could you try rephrasing it or asking again?"

// Agent runs one Policy against the reasoning service.
type Agent struct {
	gen          llm.Generator
	policy       Policy
	functionsMap map[string]*llm.FunctionDeclaration
	tools        []*llm.FunctionDeclaration
}

func New(gen llm.Generator, policy Policy) *Agent {
	return &Agent{
		gen:          gen,
		policy:       policy,
		functionsMap: make(map[string]*llm.FunctionDeclaration),
	}
}

func (a *Agent) AddFunctionCall(functionDeclaration *llm.FunctionDeclaration) error {
	if err := functionDeclaration.Validate(); err != nil {
		return err
	}

	if _, exists := a.functionsMap[functionDeclaration.Name]; !exists {
		a.tools = append(a.tools, functionDeclaration)
	}
	a.functionsMap[functionDeclaration.Name] = functionDeclaration

	return nil
}

// turnState is the loop's whole state. step never mutates its input.
type turnState struct {
	turnsUsed     int
	conversation  []model.Content
	sources       []model.DocumentSource
	usedDocuments bool
	final         string
	done          bool
}

// Run answers the conversation. With tools disabled it is a single call.
func (a *Agent) Run(ctx context.Context, contents []model.Content, decision model.RouterDecision) (model.AgentResult, error) {
	instruction, searchFirst := a.policy.instruction(decision)

	state := turnState{conversation: slices.Clone(contents)}
	ceiling := a.policy.TurnCeiling
	if !a.policy.ToolsEnabled || ceiling < 1 {
		ceiling = 1
	}

	var err error
	for !state.done && state.turnsUsed < ceiling {
		state, err = a.step(ctx, state, instruction, searchFirst, ceiling)
		if err != nil {
			return model.AgentResult{}, fmt.Errorf("agent %s: %w", a.policy.Agent, err)
		}
	}

	turnsUsed.WithLabelValues(string(a.policy.Agent)).Observe(float64(state.turnsUsed))
	if !state.done {
		turnCeilingTotal.WithLabelValues(string(a.policy.Agent)).Inc()
		state.final = FallbackText
	}

	sources := state.sources
	if sources == nil {
		sources = []model.DocumentSource{}
	}

	return model.AgentResult{
		ResponseText:     state.final,
		UsedDocuments:    a.policy.ToolsEnabled && state.usedDocuments,
		DocumentSources:  sources,
		AgentType:        a.policy.Agent,
		AgentReasoning:   decision.Reasoning,
		DetectedLanguage: decision.DetectedLanguage,
		TurnsUsed:        state.turnsUsed,
	}, nil
}

// step performs one model call and, if a tool is requested, one dispatch.
func (a *Agent) step(ctx context.Context, s turnState, instruction string, searchFirst bool, ceiling int) (turnState, error) {
	if err := ctx.Err(); err != nil {
		return s, err
	}

	req := llm.GenerateRequest{
		Model:             a.policy.Model,
		SystemInstruction: instruction,
		Temperature:       a.policy.Temperature,
		MaxOutputTokens:   a.policy.MaxOutputTokens,
		Contents:          s.conversation,
	}
	if a.policy.ToolsEnabled && len(a.tools) > 0 {
		req.Tools = a.tools
		if searchFirst && s.turnsUsed == 0 {
			req.ToolMode = llm.ToolModeForced
			req.AllowedFunctions = []string{functions.SearchDocumentsName}
		}
	}

	resp, err := a.gen.Generate(ctx, req)
	s.turnsUsed++
	if err != nil {
		return s, err
	}

	if !resp.HasFunctionCalls() || req.Tools == nil {
		s.final = strings.TrimSpace(resp.Text)
		if s.final == "" {
			s.final = FallbackText
		}
		s.done = true
		return s, nil
	}

	call := resp.FunctionCalls[0]
	s.conversation = append(slices.Clip(s.conversation), model.Content{
		Role:  model.RoleModel,
		Parts: []model.Part{{FunctionCall: &call}},
	})

	// nothing would read the tool response
	if s.turnsUsed >= ceiling {
		return s, nil
	}

	response, err := a.handleFunctionCall(ctx, call.Name, call.Args)
	if err != nil {
		return s, err
	}

	if call.Name == functions.SearchDocumentsName {
		sources, used := functions.Provenance(response)
		s.sources = mergeSources(s.sources, sources)
		s.usedDocuments = s.usedDocuments || used
	}

	s.conversation = append(s.conversation, model.Content{
		Role: model.RoleTool,
		Parts: []model.Part{{FunctionResponse: &model.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: response,
		}}},
	})

	return s, nil
}

// handleFunctionCall runs a declared tool. Unknown tools get a synthetic
// error response so the model can recover on its next turn.
func (a *Agent) handleFunctionCall(ctx context.Context, functionName string, args map[string]any) (map[string]any, error) {
	if fd, exists := a.functionsMap[functionName]; exists {
		return fd.FunctionCall(ctx, args)
	}

	return map[string]any{"error": "not implemented"}, nil
}

// mergeSources appends sources not already cited by an earlier search.
func mergeSources(acc, next []model.DocumentSource) []model.DocumentSource {
	seen := make(map[string]bool, len(acc))
	for _, s := range acc {
		seen[sourceKey(s)] = true
	}
	out := slices.Clip(acc)
	for _, s := range next {
		if seen[sourceKey(s)] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sourceKey(s model.DocumentSource) string {
	page := -1
	if s.Page != nil {
		page = *s.Page
	}
	return fmt.Sprintf("%s#%d", s.DocID, page)
}
