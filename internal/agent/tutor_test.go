package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m2tx/tutor_agent/internal/functions"
	"github.com/m2tx/tutor_agent/internal/index"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/model"
	"github.com/m2tx/tutor_agent/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	highVerdict    = `{"quality":"high","relevanceType":"relevant","needsMoreContext":false,"reasoning":"direct answer"}`
	rejectVerdict  = `{"quality":"low","relevanceType":"completely_irrelevant","needsMoreContext":true,"reasoning":"off topic"}`
	shallowVerdict = `{"quality":"medium","relevanceType":"relevant","needsMoreContext":true,"reasoning":"only fragments"}`
)

type memoryIndex struct {
	collections map[string]bool
	snippets    []index.Hit
	pages       []index.Hit
	pageCalls   int
}

func (m *memoryIndex) TopSnippets(_ context.Context, collection, _ string, _ int) ([]index.Hit, error) {
	if !m.collections[collection] {
		return nil, index.ErrCollectionNotFound
	}
	return m.snippets, nil
}

func (m *memoryIndex) TopPages(_ context.Context, collection, _ string, _ int) ([]index.Hit, error) {
	m.pageCalls++
	if !m.collections[collection] {
		return nil, index.ErrCollectionNotFound
	}
	return m.pages, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.StatusEvent
}

func (r *recordingSink) Publish(e model.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Step)
	}
	return out
}

func biologyIndex() *memoryIndex {
	return &memoryIndex{
		collections: map[string]bool{"student-1": true},
		snippets: []index.Hit{{
			Content:  "Osmosis is the diffusion of water across a semipermeable membrane.",
			Path:     index.EncodePath("student-1", "bio101", "Biology 101.pdf"),
			PageSpan: &index.PageSpan{First: 11, Last: 11},
			Score:    0.92,
		}},
		pages: []index.Hit{{
			Content:   "Chapter 4. The first law gives dU = dQ - dW ...",
			Path:      index.EncodePath("student-1", "thermo", "Thermodynamics.pdf"),
			PageIndex: ptr(40),
			Score:     0.81,
		}},
	}
}

func ptr(n int) *int { return &n }

func newTestTutor(gen llm.Generator, idx index.Index) *Tutor {
	judge := retrieval.NewEvaluator(gen, "judge", nil)
	pipeline := retrieval.NewPipeline(idx, judge, nil, nil, retrieval.Config{})
	return NewTutor(TutorConfig{
		Generator: gen,
		Router:    NewRouter(gen, "router", nil),
		Searcher:  pipeline,
		Policies:  testPolicies(),
	})
}

func TestTutorAnswersFromSnippets(t *testing.T) {
	gen := newFakeGenerator().
		on("router", selectAgent(model.AgentQuestionAnswering, "en", true)).
		on("answer", searchCall("osmosis definition"), text("Osmosis is water diffusion (Biology 101.pdf, p. 12).")).
		on("judge", text(highVerdict))
	idx := biologyIndex()
	sink := &recordingSink{}

	res, err := newTestTutor(gen, idx).Answer(context.Background(), Request{
		UserID:  "student-1",
		Message: model.UserMessage{Text: "What is osmosis?"},
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, model.AgentQuestionAnswering, res.AgentType)
	assert.True(t, res.UsedDocuments)
	require.Len(t, res.DocumentSources, 1)
	src := res.DocumentSources[0]
	assert.Equal(t, "Biology 101.pdf", src.Title)
	assert.Equal(t, "bio101", src.DocID)
	assert.Equal(t, 12, *src.Page)
	assert.False(t, src.UsedTopPages)
	assert.Equal(t, 0, idx.pageCalls)
	assert.Len(t, gen.requestsFor("judge"), 1)

	assert.Equal(t, []string{
		model.StepAgentSelected,
		model.StepGenerating,
		model.StepSearchingDocuments,
		model.StepSearchComplete,
	}, sink.steps())
}

func TestTutorEscalatesToPagesForDerivations(t *testing.T) {
	gen := newFakeGenerator().
		on("router", selectAgent(model.AgentExplanation, "en", false)).
		on("explain", call(functions.SearchDocumentsName, map[string]any{"query": "chapter 4 derivation", "detailLevel": "comprehensive"}),
			text("Step 1: start from the first law (Thermodynamics.pdf, p. 41) ...")).
		on("judge", text(shallowVerdict), text(highVerdict))
	idx := biologyIndex()

	res, err := newTestTutor(gen, idx).Answer(context.Background(), Request{
		UserID:  "student-1",
		Message: model.UserMessage{Text: "Explain the thermodynamic derivation in chapter 4"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.AgentExplanation, res.AgentType)
	assert.True(t, res.UsedDocuments)
	require.Len(t, res.DocumentSources, 1)
	assert.True(t, res.DocumentSources[0].UsedTopPages)
	assert.Equal(t, 41, *res.DocumentSources[0].Page)
	assert.Equal(t, 1, idx.pageCalls)
	assert.Len(t, gen.requestsFor("judge"), 2)
}

func TestTutorWithoutMaterials(t *testing.T) {
	gen := newFakeGenerator().
		on("router", selectAgent(model.AgentQuestionAnswering, "en", true)).
		on("answer", searchCall("photosynthesis"), text("Photosynthesis turns light into chemical energy. No materials were found for you.")).
		on("judge", text(highVerdict))

	res, err := newTestTutor(gen, biologyIndex()).Answer(context.Background(), Request{
		UserID:  "new-student",
		Message: model.UserMessage{Text: "What is photosynthesis?"},
	}, nil)
	require.NoError(t, err)

	assert.False(t, res.UsedDocuments)
	assert.Empty(t, res.DocumentSources)
	assert.NotEmpty(t, res.ResponseText)
	assert.Empty(t, gen.requestsFor("judge"))

	reqs := gen.requestsFor("answer")
	require.Len(t, reqs, 2)
	toolTurn := reqs[1].Contents[len(reqs[1].Contents)-1]
	assert.Equal(t, "no_materials", toolTurn.Parts[0].FunctionResponse.Response["status"])
}

func TestTutorAnswersWhenSearchExhausted(t *testing.T) {
	gen := newFakeGenerator().
		on("router", selectAgent(model.AgentQuestionAnswering, "en", true)).
		on("answer", searchCall("krebs cycle"), text("The Krebs cycle oxidizes acetyl-CoA. This is not from your materials.")).
		on("judge", text(rejectVerdict), text(rejectVerdict))
	idx := biologyIndex()

	res, err := newTestTutor(gen, idx).Answer(context.Background(), Request{
		UserID:  "student-1",
		Message: model.UserMessage{Text: "What is the Krebs cycle?"},
	}, nil)
	require.NoError(t, err)

	assert.False(t, res.UsedDocuments)
	assert.Empty(t, res.DocumentSources)
	assert.NotEmpty(t, res.ResponseText)
	assert.Equal(t, 1, idx.pageCalls)
	assert.Len(t, gen.requestsFor("judge"), 2)

	reqs := gen.requestsFor("answer")
	require.Len(t, reqs, 2)
	toolTurn := reqs[1].Contents[len(reqs[1].Contents)-1]
	require.NotNil(t, toolTurn.Parts[0].FunctionResponse)
	assert.Equal(t, "no_relevant_results", toolTurn.Parts[0].FunctionResponse.Response["status"])
}

func TestTutorGreetingUsesGeneralAgent(t *testing.T) {
	gen := newFakeGenerator().
		on("router", selectAgent(model.AgentGeneral, "en", false)).
		on("general", text("Hi! What are we studying today?"))
	idx := biologyIndex()

	res, err := newTestTutor(gen, idx).Answer(context.Background(), Request{
		UserID:  "student-1",
		History: []model.HistoryEntry{{Sender: "user", Text: "hey"}, {Sender: "assistant", Text: "hello"}},
		Message: model.UserMessage{Text: "Hi there!"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.AgentGeneral, res.AgentType)
	assert.False(t, res.UsedDocuments)
	assert.Equal(t, 1, res.TurnsUsed)
	reqs := gen.requestsFor("general")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Tools)
	assert.Len(t, reqs[0].Contents, 3)
	assert.Equal(t, model.RoleModel, reqs[0].Contents[1].Role)
}

func TestTutorExplanationSearchesFirst(t *testing.T) {
	gen := newFakeGenerator().
		on("router", selectAgent(model.AgentExplanation, "fr", true)).
		on("explain", searchCall("osmose"), text("L'osmose est ...")).
		on("judge", text(highVerdict))

	res, err := newTestTutor(gen, biologyIndex()).Answer(context.Background(), Request{
		UserID:  "student-1",
		Message: model.UserMessage{Text: "Explique l'osmose"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fr", res.DetectedLanguage)

	reqs := gen.requestsFor("explain")
	require.Len(t, reqs, 2)
	first := reqs[0]
	assert.Equal(t, llm.ToolModeForced, first.ToolMode)
	assert.Equal(t, []string{functions.SearchDocumentsName}, first.AllowedFunctions)
	assert.Contains(t, first.SystemInstruction, "French (fr)")
	assert.Equal(t, llm.ToolModeAuto, reqs[1].ToolMode)
	assert.Empty(t, reqs[1].AllowedFunctions)
}

func TestTutorRouterFailureIsFatal(t *testing.T) {
	boom := errors.New("quota exceeded")
	gen := newFakeGenerator().on("router", failure(boom))

	_, err := newTestTutor(gen, biologyIndex()).Answer(context.Background(), Request{
		UserID:  "student-1",
		Message: model.UserMessage{Text: "hi"},
	}, nil)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, gen.requestsFor("general"))
}
