package docstore

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Unsubscribe stops a live query. It is safe to call more than once.
type Unsubscribe func()

// QuerySnapshot is the full result of a live query at one point in time.
type QuerySnapshot struct {
	Docs        []Doc
	ReadVersion int64
}

// DocSnapshot is the state of one document. Exists is false once it is deleted.
type DocSnapshot struct {
	Doc         Doc
	Exists      bool
	ReadVersion int64
}

// Watch delivers the current result of q, then a new snapshot each time the
// result changes, until the returned Unsubscribe is called. Deliveries to one
// subscriber never overlap and never go back in time; a callback that writes
// to the store sees its own follow-up snapshots only after it returns.
func (db *DB) Watch(q Query, fn func(QuerySnapshot)) Unsubscribe {
	s := &subscription{
		matches: func(p Path) bool { return p.Parent() == q.Collection },
		eval: func(ctx context.Context) (any, string, error) {
			docs, err := db.Query(ctx, q)
			if err != nil {
				return nil, "", err
			}
			return docs, fingerprint(docs), nil
		},
		emit: func(v any, ver int64) { fn(QuerySnapshot{Docs: v.([]Doc), ReadVersion: ver}) },
	}
	return db.hub.add(s)
}

// WatchDoc is Watch for a single document.
func (db *DB) WatchDoc(p Path, fn func(DocSnapshot)) Unsubscribe {
	s := &subscription{
		matches: func(t Path) bool { return t == p },
		eval: func(ctx context.Context) (any, string, error) {
			d, ok, err := db.backend.Load(ctx, p)
			if err != nil {
				return nil, "", err
			}
			if !ok {
				return DocSnapshot{}, "-", nil
			}
			return DocSnapshot{Doc: d, Exists: true}, fingerprint([]Doc{d}), nil
		},
		emit: func(v any, ver int64) {
			snap := v.(DocSnapshot)
			snap.ReadVersion = ver
			fn(snap)
		},
	}
	return db.hub.add(s)
}

func fingerprint(docs []Doc) string {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(string(d.Path))
		b.WriteByte('@')
		b.WriteString(strconv.FormatInt(d.Version, 10))
		b.WriteByte(';')
	}
	return b.String()
}

type hub struct {
	db   *DB
	mu   sync.Mutex
	next int64
	subs map[int64]*subscription
}

func newHub(db *DB) *hub {
	return &hub{db: db, subs: make(map[int64]*subscription)}
}

func (h *hub) add(s *subscription) Unsubscribe {
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs[id] = s
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			s.close()
		})
	}
	h.refresh(s)
	return unsub
}

func (h *hub) notify(touched []Path) {
	if len(touched) == 0 {
		return
	}
	h.mu.Lock()
	affected := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		for _, p := range touched {
			if s.matches(p) {
				affected = append(affected, s)
				break
			}
		}
	}
	h.mu.Unlock()
	for _, s := range affected {
		h.refresh(s)
	}
}

func (h *hub) refresh(s *subscription) {
	ver := h.db.version.Load()
	v, fp, err := s.eval(context.Background())
	if err != nil {
		log.Error().Err(err).Str("module", "docstore").Msg("live query evaluation failed")
		return
	}
	s.offer(ver, fp, v)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[int64]*subscription)
	h.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}

type pendingSnap struct {
	version int64
	value   any
}

type subscription struct {
	matches func(Path) bool
	eval    func(context.Context) (any, string, error)
	emit    func(any, int64)

	mu        sync.Mutex
	pending   []pendingSnap
	draining  bool
	closed    bool
	lastVer   int64
	lastPrint string
	delivered bool
}

func (s *subscription) offer(ver int64, fp string, v any) {
	s.mu.Lock()
	if s.closed || ver < s.lastVer || (s.delivered && fp == s.lastPrint) {
		if ver > s.lastVer {
			s.lastVer = ver
		}
		s.mu.Unlock()
		return
	}
	s.lastVer, s.lastPrint, s.delivered = ver, fp, true
	s.pending = append(s.pending, pendingSnap{version: ver, value: v})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 && !s.closed {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.emit(next.value, next.version)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
}
