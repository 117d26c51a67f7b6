// Package live runs the per-client live views. Each view owns a set of store
// subscriptions, pushes full snapshots to its viewer, and releases every
// subscription on Close.
package live

import (
	"sync"

	"github.com/dkeye/Meetup/internal/docstore"
)

type child struct {
	unsub docstore.Unsubscribe
	dead  bool
}

// FanOut is a subscription of subscriptions: it keeps one child subscription
// per parent key and starts or stops children as the parent set changes.
type FanOut[K comparable] struct {
	start func(K) docstore.Unsubscribe

	mu       sync.Mutex
	children map[K]*child
	closed   bool
}

func NewFanOut[K comparable](start func(K) docstore.Unsubscribe) *FanOut[K] {
	return &FanOut[K]{start: start, children: make(map[K]*child)}
}

// Sync makes the set of children equal keys. Children are started and
// stopped without f's lock held, since starting one delivers its first
// snapshot synchronously.
func (f *FanOut[K]) Sync(keys []K) {
	want := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	var stop []docstore.Unsubscribe
	for k, c := range f.children {
		if _, ok := want[k]; ok {
			continue
		}
		c.dead = true
		if c.unsub != nil {
			stop = append(stop, c.unsub)
		}
		delete(f.children, k)
	}
	type pending struct {
		key K
		c   *child
	}
	var add []pending
	for _, k := range keys {
		if _, ok := f.children[k]; ok {
			continue
		}
		c := &child{}
		f.children[k] = c
		add = append(add, pending{key: k, c: c})
	}
	f.mu.Unlock()

	for _, u := range stop {
		u()
	}
	for _, p := range add {
		u := f.start(p.key)
		f.mu.Lock()
		if p.c.dead {
			f.mu.Unlock()
			u()
			continue
		}
		p.c.unsub = u
		f.mu.Unlock()
	}
}

// Has reports whether k currently has a live child. Child callbacks use it
// to drop a delivery that raced with their removal.
func (f *FanOut[K]) Has(k K) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.children[k]
	return ok && !c.dead
}

func (f *FanOut[K]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.children)
}

// Close stops every child. Later Syncs are no-ops.
func (f *FanOut[K]) Close() {
	f.mu.Lock()
	f.closed = true
	children := f.children
	f.children = make(map[K]*child)
	f.mu.Unlock()
	for _, c := range children {
		f.mu.Lock()
		c.dead = true
		u := c.unsub
		f.mu.Unlock()
		if u != nil {
			u()
		}
	}
}
