package agent

import (
	"context"
	"sync"

	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/model"
)

type scripted struct {
	resp *llm.GenerateResponse
	err  error
}

// fakeGenerator replays scripted responses per model name. When a script
// runs out the last response repeats.
type fakeGenerator struct {
	mu       sync.Mutex
	scripts  map[string][]scripted
	requests []llm.GenerateRequest
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{scripts: make(map[string][]scripted)}
}

func (f *fakeGenerator) on(modelName string, steps ...scripted) *fakeGenerator {
	f.scripts[modelName] = append(f.scripts[modelName], steps...)
	return f
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	steps := f.scripts[req.Model]
	if len(steps) == 0 {
		return &llm.GenerateResponse{}, nil
	}
	next := steps[0]
	if len(steps) > 1 {
		f.scripts[req.Model] = steps[1:]
	}
	return next.resp, next.err
}

func (f *fakeGenerator) requestsFor(modelName string) []llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []llm.GenerateRequest
	for _, r := range f.requests {
		if r.Model == modelName {
			out = append(out, r)
		}
	}
	return out
}

func text(s string) scripted {
	return scripted{resp: &llm.GenerateResponse{Text: s}}
}

func call(name string, args map[string]any) scripted {
	return scripted{resp: &llm.GenerateResponse{FunctionCalls: []model.FunctionCall{{Name: name, Args: args}}}}
}

func failure(err error) scripted {
	return scripted{err: err}
}

func selectAgent(agent model.AgentType, lang string, needsDocs bool) scripted {
	return call("select_agent", map[string]any{
		"agentType":            string(agent),
		"reasoning":            "because",
		"detectedLanguage":     lang,
		"likelyNeedsDocuments": needsDocs,
	})
}

func searchCall(query string) scripted {
	return call("search_documents", map[string]any{"query": query, "detailLevel": "basic"})
}
