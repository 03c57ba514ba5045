package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m2tx/tutor_agent/internal/index"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/m2tx/tutor_agent/internal/model"
)

const (
	defaultSnippetTopK = 3
	defaultPageTopK    = 5
)

// Search methods reported in an Outcome.
const (
	MethodSnippets    = "snippets"
	MethodPages       = "pages"
	MethodNoMaterials = "no_materials"
	MethodExhausted   = "exhausted"
)

// CollectionResolver maps a user to the collection holding their materials.
type CollectionResolver interface {
	ResolveCollection(ctx context.Context, userID string) (string, error)
}

// StaticResolver uses the user id as the collection id.
type StaticResolver struct{}

func (StaticResolver) ResolveCollection(_ context.Context, userID string) (string, error) {
	return userID, nil
}

// Outcome is the result of one search request.
type Outcome struct {
	UsedDocuments   bool
	UsedTopPages    bool
	DocumentSources []model.DocumentSource
	SearchMethod    string
	Passages        []model.Passage
	Evaluation      *model.Evaluation
	Attempts        []model.SearchAttempt
}

// Config tunes the pipeline.
type Config struct {
	SnippetTopK int
	PageTopK    int
	// CallTimeout bounds every index query.
	CallTimeout time.Duration
}

// Pipeline escalates from snippets to pages, stopping as soon as the judge
// accepts what was found. Every request issues at most one query per stage.
type Pipeline struct {
	index    index.Index
	judge    Judge
	resolver CollectionResolver
	logger   logging.Logger

	snippetTopK int
	pageTopK    int
	callTimeout time.Duration
}

func NewPipeline(idx index.Index, judge Judge, resolver CollectionResolver, logger logging.Logger, cfg Config) *Pipeline {
	if resolver == nil {
		resolver = StaticResolver{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	snippetTopK := cfg.SnippetTopK
	if snippetTopK <= 0 {
		snippetTopK = defaultSnippetTopK
	}
	pageTopK := cfg.PageTopK
	if pageTopK <= 0 {
		pageTopK = defaultPageTopK
	}
	return &Pipeline{
		index:       idx,
		judge:       judge,
		resolver:    resolver,
		logger:      logger,
		snippetTopK: snippetTopK,
		pageTopK:    pageTopK,
		callTimeout: cfg.CallTimeout,
	}
}

// Search runs the escalation for one query. Only transport failures and
// cancellation are returned as errors.
func (p *Pipeline) Search(ctx context.Context, userID, query string, detail model.DetailLevel) (Outcome, error) {
	collectionID, err := p.resolver.ResolveCollection(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("retrieval: resolve collection: %w", err)
	}
	if collectionID == "" {
		collectionID = userID
	}

	log := p.logger.WithFields(logging.Fields{"collection": collectionID, "query": query})
	var attempts []model.SearchAttempt

	hits, err := p.query(ctx, p.index.TopSnippets, collectionID, query, p.snippetTopK)
	if errors.Is(err, index.ErrCollectionNotFound) {
		stageTotal.WithLabelValues(string(model.StageSnippets), "no_collection").Inc()
		log.Info("No collection for user, skipping document search")
		return Outcome{SearchMethod: MethodNoMaterials}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("retrieval: snippets: %w", err)
	}

	snippets := toPassages(hits, false, p.logger)
	attempts = append(attempts, model.SearchAttempt{Stage: model.StageSnippets, Query: query, CollectionID: collectionID, Results: snippets})

	verdict := p.judge.Evaluate(ctx, query, snippets)
	if acceptSnippets(verdict) {
		stageTotal.WithLabelValues(string(model.StageSnippets), "accepted").Inc()
		log.WithField("quality", verdict.Quality).Debug("Snippets accepted")
		return accepted(snippets, false, MethodSnippets, verdict, attempts), nil
	}
	stageTotal.WithLabelValues(string(model.StageSnippets), "escalated").Inc()
	log.WithFields(logging.Fields{
		"quality":            verdict.Quality,
		"relevance":          verdict.RelevanceType,
		"needs_more_context": verdict.NeedsMoreContext,
	}).Debug("Escalating to page search")

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	hits, err = p.query(ctx, p.index.TopPages, collectionID, query, p.pageK(detail))
	if errors.Is(err, index.ErrCollectionNotFound) {
		stageTotal.WithLabelValues(string(model.StagePages), "no_collection").Inc()
		return Outcome{SearchMethod: MethodNoMaterials, Attempts: attempts}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("retrieval: pages: %w", err)
	}

	pages := toPassages(hits, true, p.logger)
	attempts = append(attempts, model.SearchAttempt{Stage: model.StagePages, Query: query, CollectionID: collectionID, Results: pages})

	verdict = p.judge.Evaluate(ctx, query, pages)
	if acceptPages(verdict) {
		stageTotal.WithLabelValues(string(model.StagePages), "accepted").Inc()
		return accepted(pages, true, MethodPages, verdict, attempts), nil
	}
	stageTotal.WithLabelValues(string(model.StagePages), "rejected").Inc()

	attempts = append(attempts, model.SearchAttempt{Stage: model.StageExhausted, Query: query, CollectionID: collectionID})
	stageTotal.WithLabelValues(string(model.StageExhausted), "exhausted").Inc()
	log.Info("No relevant passages after page search")

	return Outcome{SearchMethod: MethodExhausted, Evaluation: &verdict, Attempts: attempts}, nil
}

// acceptSnippets stops at the first stage on a high verdict, or a medium one
// that does not ask for fuller context.
func acceptSnippets(ev model.Evaluation) bool {
	switch ev.Quality {
	case model.QualityHigh:
		return true
	case model.QualityMedium:
		return !ev.NeedsMoreContext
	}
	return false
}

func acceptPages(ev model.Evaluation) bool {
	return ev.Quality == model.QualityHigh || ev.Quality == model.QualityMedium
}

func (p *Pipeline) pageK(detail model.DetailLevel) int {
	switch detail {
	case model.DetailModerate:
		return p.pageTopK + 2
	case model.DetailComprehensive:
		return p.pageTopK * 2
	}
	return p.pageTopK
}

type indexQuery func(ctx context.Context, collection, query string, k int) ([]index.Hit, error)

func (p *Pipeline) query(ctx context.Context, fn indexQuery, collectionID, query string, k int) ([]index.Hit, error) {
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}
	return fn(ctx, collectionID, query, k)
}

func accepted(passages []model.Passage, topPages bool, method string, ev model.Evaluation, attempts []model.SearchAttempt) Outcome {
	sources := make([]model.DocumentSource, 0, len(passages))
	for _, ps := range passages {
		sources = append(sources, model.DocumentSource{
			Title:        ps.DocumentTitle,
			DocID:        ps.DocumentID,
			Page:         ps.PageNumber,
			UsedTopPages: topPages,
		})
	}
	return Outcome{
		UsedDocuments:   true,
		UsedTopPages:    topPages,
		DocumentSources: sources,
		SearchMethod:    method,
		Passages:        passages,
		Evaluation:      &ev,
		Attempts:        attempts,
	}
}

// toPassages decodes provenance from hit paths. Page numbers are one-based.
func toPassages(hits []index.Hit, pages bool, logger logging.Logger) []model.Passage {
	out := make([]model.Passage, 0, len(hits))
	for _, h := range hits {
		docID, title, err := index.DecodePath(h.Path)
		if err != nil {
			logger.WithError(err).Warn("Undecodable hit path")
			docID, title = h.Path, h.Path
		}

		var page *int
		switch {
		case pages && h.PageIndex != nil:
			n := *h.PageIndex + 1
			page = &n
		case !pages && h.PageSpan != nil:
			n := h.PageSpan.First + 1
			page = &n
		}

		out = append(out, model.Passage{
			Text:           h.Content,
			DocumentTitle:  title,
			DocumentID:     docID,
			PageNumber:     page,
			RelevanceScore: h.Score,
		})
	}
	return out
}
