package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m2tx/tutor_agent/assets"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicies() map[model.AgentType]Policy {
	return DefaultPolicies(Models{Answer: "answer", Explanation: "explain", General: "general"})
}

type countingTool struct {
	calls    int
	response map[string]any
	err      error
}

func (c *countingTool) declaration() *llm.FunctionDeclaration {
	return &llm.FunctionDeclaration{
		Name: "search_documents",
		FunctionCall: func(context.Context, map[string]any) (map[string]any, error) {
			c.calls++
			return c.response, c.err
		},
	}
}

func TestAgentReturnsTextWithoutTools(t *testing.T) {
	gen := newFakeGenerator().on("answer", text("  Osmosis is water diffusion.  "))
	a := New(gen, testPolicies()[model.AgentQuestionAnswering])

	res, err := a.Run(context.Background(), []model.Content{userTurn("define osmosis")}, model.RouterDecision{Reasoning: "factual"})
	require.NoError(t, err)

	assert.Equal(t, "Osmosis is water diffusion.", res.ResponseText)
	assert.Equal(t, model.AgentQuestionAnswering, res.AgentType)
	assert.Equal(t, "factual", res.AgentReasoning)
	assert.Equal(t, 1, res.TurnsUsed)
	assert.False(t, res.UsedDocuments)
	assert.NotNil(t, res.DocumentSources)
}

func TestAgentTurnCeilings(t *testing.T) {
	cases := []struct {
		agent   model.AgentType
		model   string
		ceiling int
	}{
		{model.AgentQuestionAnswering, "answer", 5},
		{model.AgentExplanation, "explain", 3},
	}

	for _, tc := range cases {
		t.Run(string(tc.agent), func(t *testing.T) {
			// the model never stops asking for tools
			gen := newFakeGenerator().on(tc.model, searchCall("again"))
			tool := &countingTool{response: map[string]any{"status": "no_relevant_results"}}

			a := New(gen, testPolicies()[tc.agent])
			require.NoError(t, a.AddFunctionCall(tool.declaration()))

			res, err := a.Run(context.Background(), []model.Content{userTurn("q")}, model.RouterDecision{})
			require.NoError(t, err)

			assert.Equal(t, FallbackText, res.ResponseText)
			assert.Equal(t, tc.ceiling, res.TurnsUsed)
			assert.Len(t, gen.requestsFor(tc.model), tc.ceiling)
			assert.Equal(t, tc.ceiling-1, tool.calls)
		})
	}
}

func TestAgentAppendsToolTurns(t *testing.T) {
	page := 2
	gen := newFakeGenerator().on("answer", searchCall("osmosis"), text("Osmosis (Bio.pdf, p. 2)"))
	tool := &countingTool{response: map[string]any{
		"status":         "success",
		"used_documents": true,
		"sources":        []model.DocumentSource{{Title: "Bio.pdf", DocID: "bio", Page: &page}},
	}}

	a := New(gen, testPolicies()[model.AgentQuestionAnswering])
	require.NoError(t, a.AddFunctionCall(tool.declaration()))

	res, err := a.Run(context.Background(), []model.Content{userTurn("define osmosis")}, model.RouterDecision{})
	require.NoError(t, err)

	assert.Equal(t, "Osmosis (Bio.pdf, p. 2)", res.ResponseText)
	assert.True(t, res.UsedDocuments)
	require.Len(t, res.DocumentSources, 1)
	assert.Equal(t, "bio", res.DocumentSources[0].DocID)
	assert.Equal(t, 2, res.TurnsUsed)

	reqs := gen.requestsFor("answer")
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Contents, 1)
	second := reqs[1].Contents
	require.Len(t, second, 3)
	assert.Equal(t, model.RoleModel, second[1].Role)
	require.NotNil(t, second[1].Parts[0].FunctionCall)
	assert.Equal(t, model.RoleTool, second[2].Role)
	require.NotNil(t, second[2].Parts[0].FunctionResponse)
	assert.Equal(t, "success", second[2].Parts[0].FunctionResponse.Response["status"])
	assert.Equal(t, llm.ToolModeAuto, reqs[0].ToolMode)
}

func TestAgentUnknownToolGetsSyntheticError(t *testing.T) {
	gen := newFakeGenerator().on("answer", call("draw_chart", map[string]any{}), text("Sorry, here is the answer."))
	a := New(gen, testPolicies()[model.AgentQuestionAnswering])
	require.NoError(t, a.AddFunctionCall((&countingTool{}).declaration()))

	res, err := a.Run(context.Background(), []model.Content{userTurn("q")}, model.RouterDecision{})
	require.NoError(t, err)
	assert.Equal(t, "Sorry, here is the answer.", res.ResponseText)

	reqs := gen.requestsFor("answer")
	require.Len(t, reqs, 2)
	toolTurn := reqs[1].Contents[2]
	assert.Equal(t, "not implemented", toolTurn.Parts[0].FunctionResponse.Response["error"])
}

func TestAgentToolFailureIsFatal(t *testing.T) {
	boom := errors.New("index unreachable")
	gen := newFakeGenerator().on("answer", searchCall("q"))
	a := New(gen, testPolicies()[model.AgentQuestionAnswering])
	require.NoError(t, a.AddFunctionCall((&countingTool{err: boom}).declaration()))

	_, err := a.Run(context.Background(), []model.Content{userTurn("q")}, model.RouterDecision{})
	require.ErrorIs(t, err, boom)
}

func TestAgentEmptyTextFallsBack(t *testing.T) {
	gen := newFakeGenerator().on("answer", text(""))
	res, err := New(gen, testPolicies()[model.AgentQuestionAnswering]).Run(context.Background(), []model.Content{userTurn("q")}, model.RouterDecision{})
	require.NoError(t, err)
	assert.Equal(t, FallbackText, res.ResponseText)
}

func TestAgentStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := newFakeGenerator().on("answer", text("never"))
	_, err := New(gen, testPolicies()[model.AgentQuestionAnswering]).Run(ctx, []model.Content{userTurn("q")}, model.RouterDecision{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.requests)
}

func TestGeneralAgentSingleCallWithoutTools(t *testing.T) {
	gen := newFakeGenerator().on("general", call("search_documents", map[string]any{"query": "x"}))
	a := New(gen, testPolicies()[model.AgentGeneral])
	require.NoError(t, a.AddFunctionCall((&countingTool{}).declaration()))

	res, err := a.Run(context.Background(), []model.Content{userTurn("thanks!")}, model.RouterDecision{})
	require.NoError(t, err)

	reqs := gen.requestsFor("general")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Tools)
	assert.False(t, res.UsedDocuments)
	assert.Equal(t, 1, res.TurnsUsed)
}

func TestExplanationInstructionDirectives(t *testing.T) {
	p := testPolicies()[model.AgentExplanation]

	plain, force := p.instruction(model.RouterDecision{})
	assert.False(t, force)
	assert.NotContains(t, plain, strings.TrimSpace(assets.SearchFirstDirective))

	withDocs, force := p.instruction(model.RouterDecision{LikelyNeedsDocuments: true, DetectedLanguage: "es"})
	assert.True(t, force)
	assert.Contains(t, withDocs, strings.TrimSpace(assets.SearchFirstDirective))
	assert.Contains(t, withDocs, "Spanish (es)")

	qa := testPolicies()[model.AgentQuestionAnswering]
	_, force = qa.instruction(model.RouterDecision{LikelyNeedsDocuments: true})
	assert.False(t, force, "only the explanation agent escalates")
}

func TestMergeSourcesSkipsEarlierCitations(t *testing.T) {
	one, two := 1, 2
	acc := []model.DocumentSource{{DocID: "a", Page: &one}}
	next := []model.DocumentSource{{DocID: "a", Page: &one}, {DocID: "a", Page: &two}, {DocID: "b"}}

	got := mergeSources(acc, next)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[1].DocID)
	assert.Equal(t, 2, *got[1].Page)
	assert.Equal(t, "b", got[2].DocID)
	assert.Len(t, acc, 1)
}
