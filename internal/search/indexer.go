package search

import "context"

// Indexer abstracts heading indexing so the registry does not depend on a
// specific search implementation.
type Indexer interface {
	IndexHeadings(ctx context.Context, docs []Document) error
	Close() error
}

// Document is one table of contents heading to be indexed. Path and
// Position identify it; re-indexing the same heading replaces it.
type Document struct {
	Arch     string
	Path     string
	Filename string
	Position int
	Level    int
	Title    string
	Page     int
}
