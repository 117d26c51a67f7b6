package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DB is a document store over a Backend. All commits are serialized, so a
// transaction observes no concurrent writer between its reads and its commit.
type DB struct {
	backend Backend
	hub     *hub
	clock   func() time.Time

	mu      sync.Mutex // serializes commits
	lastTS  time.Time
	version atomic.Int64
}

type Option func(*DB)

// WithClock replaces time.Now as the source of commit and server timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.clock = now }
}

func New(b Backend, opts ...Option) *DB {
	db := &DB{backend: b, clock: time.Now}
	for _, o := range opts {
		o(db)
	}
	// Versions must keep growing across restarts of a persistent backend.
	db.version.Store(time.Now().UnixNano())
	db.hub = newHub(db)
	return db
}

func (db *DB) Close() error {
	db.hub.closeAll()
	return db.backend.Close()
}

// Create stores fields under a generated id in collection and returns the id.
func (db *DB) Create(ctx context.Context, collection Path, fields Fields) (string, error) {
	if !collection.IsCollection() {
		return "", fmt.Errorf("%w: %q is not a collection", ErrBadPath, collection)
	}
	id := uuid.NewString()
	err := db.RunTransaction(ctx, func(tx *Tx) error {
		return tx.Create(collection.Doc(id), fields)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or replaces the document at p.
func (db *DB) Set(ctx context.Context, p Path, fields Fields) error {
	return db.RunTransaction(ctx, func(tx *Tx) error { return tx.Set(p, fields) })
}

// Update merges fields into an existing document.
func (db *DB) Update(ctx context.Context, p Path, fields Fields) error {
	return db.RunTransaction(ctx, func(tx *Tx) error { return tx.Update(p, fields) })
}

// Delete removes the document at p. Deleting a missing document is a no-op.
// Sub-collections are not touched.
func (db *DB) Delete(ctx context.Context, p Path) error {
	return db.RunTransaction(ctx, func(tx *Tx) error { return tx.Delete(p) })
}

func (db *DB) Get(ctx context.Context, p Path) (Doc, error) {
	if !p.IsDoc() {
		return Doc{}, fmt.Errorf("%w: %q is not a document", ErrBadPath, p)
	}
	d, ok, err := db.backend.Load(ctx, p)
	if err != nil {
		return Doc{}, err
	}
	if !ok {
		return Doc{}, ErrNotFound
	}
	return d, nil
}

func (db *DB) Query(ctx context.Context, q Query) ([]Doc, error) {
	docs, err := db.backend.List(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return q.apply(docs), nil
}

// RunTransaction runs fn against a staging area and commits its writes
// atomically when fn returns nil. Subscribers are notified after the commit.
func (db *DB) RunTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	db.mu.Lock()
	tx := &Tx{db: db, ctx: ctx, staged: make(map[Path]*Doc)}
	if err := fn(tx); err != nil {
		db.mu.Unlock()
		return err
	}
	touched, err := tx.commit()
	db.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("module", "docstore").Msg("commit failed")
		return err
	}
	db.hub.notify(touched)
	return nil
}

// serverTime is only called with db.mu held.
func (db *DB) serverTime() time.Time {
	now := db.clock().UTC()
	if !now.After(db.lastTS) {
		now = db.lastTS.Add(time.Nanosecond)
	}
	db.lastTS = now
	return now
}

// Tx is an open transaction. It is only valid inside RunTransaction.
type Tx struct {
	db     *DB
	ctx    context.Context
	staged map[Path]*Doc // nil value marks a delete
	order  []Path
}

func (tx *Tx) stage(p Path, d *Doc) {
	if _, ok := tx.staged[p]; !ok {
		tx.order = append(tx.order, p)
	}
	tx.staged[p] = d
}

// Get reads p, seeing the transaction's own earlier writes.
func (tx *Tx) Get(p Path) (Doc, error) {
	if d, ok := tx.staged[p]; ok {
		if d == nil {
			return Doc{}, ErrNotFound
		}
		out := *d
		out.Fields = out.Fields.clone()
		return out, nil
	}
	return tx.db.Get(tx.ctx, p)
}

// Query runs q over committed state merged with the transaction's writes.
func (tx *Tx) Query(q Query) ([]Doc, error) {
	docs, err := tx.db.backend.List(tx.ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	merged := docs[:0]
	for _, d := range docs {
		if _, ok := tx.staged[d.Path]; !ok {
			merged = append(merged, d)
		}
	}
	for _, p := range tx.order {
		if d := tx.staged[p]; d != nil && p.Parent() == q.Collection {
			merged = append(merged, *d)
		}
	}
	return q.apply(merged), nil
}

func (tx *Tx) Create(p Path, fields Fields) error {
	if _, err := tx.Get(p); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, p)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return tx.Set(p, fields)
}

func (tx *Tx) Set(p Path, fields Fields) error {
	if !p.IsDoc() {
		return fmt.Errorf("%w: %q is not a document", ErrBadPath, p)
	}
	var created time.Time
	if cur, err := tx.Get(p); err == nil {
		created = cur.CreateTime
	}
	merged, err := merge(nil, fields, tx.db.serverTime)
	if err != nil {
		return err
	}
	tx.stage(p, &Doc{Path: p, Fields: merged, CreateTime: created})
	return nil
}

func (tx *Tx) Update(p Path, fields Fields) error {
	cur, err := tx.Get(p)
	if err != nil {
		return err
	}
	merged, err := merge(cur.Fields, fields, tx.db.serverTime)
	if err != nil {
		return err
	}
	cur.Fields = merged
	tx.stage(p, &cur)
	return nil
}

func (tx *Tx) Delete(p Path) error {
	if !p.IsDoc() {
		return fmt.Errorf("%w: %q is not a document", ErrBadPath, p)
	}
	tx.stage(p, nil)
	return nil
}

func (tx *Tx) commit() ([]Path, error) {
	if len(tx.order) == 0 {
		return nil, nil
	}
	now := tx.db.clock().UTC()
	version := tx.db.version.Add(1)
	batch := make([]Mutation, 0, len(tx.order))
	for _, p := range tx.order {
		d := tx.staged[p]
		if d != nil {
			if d.CreateTime.IsZero() {
				d.CreateTime = now
			}
			d.UpdateTime = now
			d.Version = version
		}
		batch = append(batch, Mutation{Path: p, Doc: d})
	}
	if err := tx.db.backend.Apply(tx.ctx, batch); err != nil {
		return nil, err
	}
	return tx.order, nil
}
