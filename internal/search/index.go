// Package search defines the full-text index that mirrors the dictionary store.
package search

import (
	"context"
	"errors"
)

//go:generate mockgen -source=index.go -destination=../mocks/search/mock_index.go -package=mock_search

// ErrSuperseded is returned by Upsert when the index already holds a newer
// version of the document.
var ErrSuperseded = errors.New("index holds a newer version")

// Document is the indexed projection of a dictionary entry.
type Document struct {
	ID         int64  `json:"id"`
	Word       string `json:"word"`
	Definition string `json:"definition"`
	MediaRef   string `json:"video_url"`
	Version    int64  `json:"-"`
}

// Hit is a search result in relevance order.
type Hit struct {
	ID    int64
	Score float64
}

type Index interface {
	// Upsert writes doc keyed by its ID. Writing the same document twice
	// leaves exactly one document.
	Upsert(ctx context.Context, doc Document) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	Close() error
}
