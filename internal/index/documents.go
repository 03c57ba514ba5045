package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const embeddingDim = 512

// document is a source file split into pages.
type document struct {
	id    string
	title string
	pages []string
}

// loadDocuments reads every supported file in dir. ctx is checked between
// files so a deadline stops indexing of large collections.
func loadDocuments(ctx context.Context, dir string) ([]document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))

		var pages []string
		switch ext {
		case ".txt", ".md":
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			pages = splitPages(string(data))
		case ".pdf":
			pages, err = readPDFPages(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("read pdf %q: %w", name, err)
			}
		default:
			continue
		}

		if len(pages) == 0 {
			continue
		}

		docs = append(docs, document{
			id:    strings.TrimSuffix(name, filepath.Ext(name)),
			title: name,
			pages: pages,
		})
	}

	return docs, nil
}

// splitPages uses form feeds as page breaks when present, otherwise groups
// paragraphs into pages of roughly defaultPageSize characters.
func splitPages(text string) []string {
	if strings.Contains(text, "\f") {
		var pages []string
		for _, p := range strings.Split(text, "\f") {
			if p = strings.TrimSpace(p); p != "" {
				pages = append(pages, p)
			}
		}
		return pages
	}
	return splitChunks(text, defaultPageSize)
}

// splitChunks groups paragraphs into chunks of at most maxLen bytes.
// Paragraphs longer than maxLen are cut first, so single-newline text such
// as extracted PDF pages still yields several chunks.
func splitChunks(text string, maxLen int) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var pieces []string
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			pieces = append(pieces, splitLong(p, maxLen)...)
		}
	}

	var chunks []string
	current := strings.Builder{}

	for _, p := range pieces {
		if current.Len() > 0 && current.Len()+len(p)+2 > maxLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

// splitLong cuts text into pieces of at most maxLen bytes, preferring line
// breaks, then spaces, and never splitting a rune.
func splitLong(text string, maxLen int) []string {
	var out []string
	for len(text) > maxLen {
		window := text[:maxLen+1]
		cut := strings.LastIndexByte(window, '\n')
		if cut <= 0 {
			cut = strings.LastIndexAny(window, " \t")
		}
		if cut <= 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(text)
				cut = size
			}
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func readPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	// empty pages are kept so page numbers stay aligned with the file
	for _, p := range pages {
		if p != "" {
			return pages, nil
		}
	}
	return nil, nil
}

// embed converts text into a fixed-size vector using feature hashing (no external model).
func embed(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, isPunct)
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32()%embeddingDim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func isPunct(r rune) bool {
	return strings.ContainsRune(".,;:!?\"'()[]{}", r)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
