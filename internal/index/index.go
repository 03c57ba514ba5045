package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCollectionNotFound means the caller has no indexed materials at all.
var ErrCollectionNotFound = errors.New("index: collection not found")

// PageSpan is an inclusive range of zero-based page indexes.
type PageSpan struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Hit is one ranked result from the semantic index.
type Hit struct {
	Content string
	// Path is encoded as <collection>/<docId>/<title>.
	Path      string
	PageSpan  *PageSpan
	PageIndex *int
	Score     float64
}

// Index is the semantic index boundary.
type Index interface {
	// TopSnippets returns the k best short passages.
	TopSnippets(ctx context.Context, collection, query string, k int) ([]Hit, error)
	// TopPages returns the k best whole pages.
	TopPages(ctx context.Context, collection, query string, k int) ([]Hit, error)
}

// EncodePath builds a hit path from its components.
func EncodePath(collection, docID, title string) string {
	return collection + "/" + docID + "/" + title
}

// DecodePath splits a hit path into docId and title. Titles may contain
// slashes; only the first two separators are significant.
func DecodePath(path string) (docID, title string, err error) {
	parts := strings.SplitN(path, "/", 3)
	if len(parts) != 3 || parts[1] == "" {
		return "", "", fmt.Errorf("index: malformed path %q", path)
	}
	title = parts[2]
	if title == "" {
		title = parts[1]
	}
	return parts[1], title, nil
}
