package core

import (
	"context"

	"github.com/dkeye/Meetup/internal/docstore"
)

// DocumentStore is the persistence the app layer relies on: documents,
// atomic field transforms, transactions and live queries.
type DocumentStore interface {
	Create(ctx context.Context, collection docstore.Path, fields docstore.Fields) (string, error)
	Set(ctx context.Context, p docstore.Path, fields docstore.Fields) error
	Get(ctx context.Context, p docstore.Path) (docstore.Doc, error)
	Update(ctx context.Context, p docstore.Path, fields docstore.Fields) error
	Delete(ctx context.Context, p docstore.Path) error
	Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error)
	RunTransaction(ctx context.Context, fn func(tx *docstore.Tx) error) error

	Watch(q docstore.Query, fn func(docstore.QuerySnapshot)) docstore.Unsubscribe
	WatchDoc(p docstore.Path, fn func(docstore.DocSnapshot)) docstore.Unsubscribe
}
