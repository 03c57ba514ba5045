package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/m2tx/tutor_agent/internal/logging"
)

const (
	defaultSnippetSize = 800
	defaultPageSize    = 3000
)

// entry is a text unit paired with its embedding vector.
type entry struct {
	path      string
	text      string
	pageFirst int
	pageLast  int
	embedding []float32
}

type collection struct {
	snippets []entry
	pages    []entry
}

// Local is a file-backed Index. Each collection is a directory under root
// holding .txt, .md and .pdf files. Collections are indexed on first use.
type Local struct {
	root   string
	logger logging.Logger

	mu          sync.RWMutex
	collections map[string]*collection
}

// NewLocal creates a Local index rooted at dir.
func NewLocal(dir string, logger logging.Logger) *Local {
	return &Local{
		root:        dir,
		logger:      logger,
		collections: make(map[string]*collection),
	}
}

func (l *Local) TopSnippets(ctx context.Context, collectionID, query string, k int) ([]Hit, error) {
	c, err := l.load(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return rank(c.snippets, query, k, false), nil
}

func (l *Local) TopPages(ctx context.Context, collectionID, query string, k int) ([]Hit, error) {
	c, err := l.load(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return rank(c.pages, query, k, true), nil
}

// Invalidate drops the cached index for a collection so new uploads are seen.
func (l *Local) Invalidate(collectionID string) {
	l.mu.Lock()
	delete(l.collections, collectionID)
	l.mu.Unlock()
}

func (l *Local) load(ctx context.Context, collectionID string) (*collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if collectionID == "" || collectionID == "." || collectionID == ".." || strings.ContainsAny(collectionID, `/\`) {
		return nil, fmt.Errorf("index: invalid collection id %q", collectionID)
	}

	l.mu.RLock()
	c, ok := l.collections[collectionID]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}

	dir := filepath.Join(l.root, collectionID)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: stat collection %q: %w", collectionID, err)
	}
	if !info.IsDir() {
		return nil, ErrCollectionNotFound
	}

	docs, err := loadDocuments(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("index: load collection %q: %w", collectionID, err)
	}

	c = buildCollection(collectionID, docs)
	if l.logger != nil {
		l.logger.WithFields(logging.Fields{
			"collection": collectionID,
			"documents":  len(docs),
			"snippets":   len(c.snippets),
			"pages":      len(c.pages),
		}).Info("Indexed collection")
	}

	l.mu.Lock()
	l.collections[collectionID] = c
	l.mu.Unlock()

	return c, nil
}

func buildCollection(collectionID string, docs []document) *collection {
	c := &collection{}
	for _, doc := range docs {
		path := EncodePath(collectionID, doc.id, doc.title)
		for i, page := range doc.pages {
			if page == "" {
				continue
			}
			c.pages = append(c.pages, entry{
				path:      path,
				text:      page,
				pageFirst: i,
				pageLast:  i,
				embedding: embed(page),
			})
			for _, s := range splitChunks(page, defaultSnippetSize) {
				c.snippets = append(c.snippets, entry{
					path:      path,
					text:      s,
					pageFirst: i,
					pageLast:  i,
					embedding: embed(s),
				})
			}
		}
	}
	return c
}

func rank(entries []entry, query string, k int, pages bool) []Hit {
	if len(entries) == 0 || k <= 0 {
		return nil
	}

	queryVec := embed(query)

	type scored struct {
		e     entry
		score float32
	}

	results := make([]scored, 0, len(entries))
	for _, e := range entries {
		results = append(results, scored{e: e, score: cosineSimilarity(queryVec, e.embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if k > len(results) {
		k = len(results)
	}

	out := make([]Hit, k)
	for i := range out {
		r := results[i]
		hit := Hit{Content: r.e.text, Path: r.e.path, Score: float64(r.score)}
		if pages {
			idx := r.e.pageFirst
			hit.PageIndex = &idx
		} else {
			hit.PageSpan = &PageSpan{First: r.e.pageFirst, Last: r.e.pageLast}
		}
		out[i] = hit
	}
	return out
}
