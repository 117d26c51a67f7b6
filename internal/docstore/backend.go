package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	ErrExists   = errors.New("docstore: document already exists")
	ErrBadPath  = errors.New("docstore: invalid path")
)

// Mutation is one write of a batch. A nil Doc deletes Path.
type Mutation struct {
	Path Path
	Doc  *Doc
}

// Backend persists documents. Apply must commit the whole batch or nothing.
// Reads and Apply may be called concurrently.
type Backend interface {
	Load(ctx context.Context, p Path) (Doc, bool, error)
	List(ctx context.Context, collection Path) ([]Doc, error)
	Apply(ctx context.Context, batch []Mutation) error
	Close() error
}
