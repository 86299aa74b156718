// Package storetest provides an in-memory store.Dispatch implementation
// for tests: a fake entity store with just enough query, transaction, and
// cursor semantics to exercise every operation in package store without a
// network round trip. It plays the role the ds9 lineage's httptest-backed
// mock server plays, but implements the Dispatch seam directly.
package storetest

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/lodestar-dev/lodestore/store"
)

// Store is an in-memory, single-process fake of the wire service package
// store's Dispatch implementations talk to. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	entities  map[string]store.WireEntity // keyed by keyToken
	nextID    int64
	txs       map[string]*pendingTx
	groupVer  map[string]int64 // entity group key -> version, bumped on every committed write
	cursors   map[string]*cursorState
	conflicts int // remaining Commit calls to fail with WireConcurrentTransaction, for retry tests
}

type pendingTx struct {
	puts    map[string]store.WireEntity
	deletes map[string]bool
	reads   map[string]int64 // entity group -> version observed at first touch
}

type cursorState struct {
	entities []store.WireEntity
	pos      int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entities: make(map[string]store.WireEntity),
		txs:      make(map[string]*pendingTx),
		groupVer: make(map[string]int64),
		cursors:  make(map[string]*cursorState),
	}
}

// ForceConflicts arranges for the next n Commit calls across any
// transaction to fail with WireConcurrentTransaction, regardless of
// whether a real conflict occurred. It exists to drive
// TRANSACTION_RETRIES-exhaustion and retry-then-succeed test scenarios
// deterministically.
func (s *Store) ForceConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

func keyToken(k store.WireKey) string {
	tok := k.App + "|"
	for _, e := range k.Path {
		if e.Name != "" {
			tok += e.Kind + ":" + e.Name + "/"
		} else {
			tok += e.Kind + ":" + strconv.FormatInt(e.ID, 10) + "/"
		}
	}
	return tok
}

func groupToken(k store.WireKey) string {
	if len(k.Path) == 0 {
		return k.App
	}
	return keyToken(store.WireKey{App: k.App, Path: k.Path[:1]})
}

// Put implements store.Dispatch.
func (s *Store) Put(_ context.Context, req store.PutRequest) (store.PutResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := store.PutResponse{Keys: make([]store.WireKey, len(req.Entities))}
	for i, we := range req.Entities {
		key := we.Key
		if len(key.Path) == 0 {
			return store.PutResponse{}, &store.WireError{Code: store.WireBadRequest, Message: "entity has no key"}
		}
		last := &key.Path[len(key.Path)-1]
		if last.ID == 0 && last.Name == "" {
			s.nextID++
			last.ID = s.nextID
		}
		we.Key = key
		tok := keyToken(key)

		if req.TransactionID != "" {
			tx, ok := s.txs[req.TransactionID]
			if !ok {
				return store.PutResponse{}, &store.WireError{Code: store.WireBadRequest, Message: "unknown transaction"}
			}
			s.observe(tx, key)
			tx.puts[tok] = we
			delete(tx.deletes, tok)
		} else {
			s.entities[tok] = we
			s.groupVer[groupToken(key)]++
		}
		resp.Keys[i] = key
	}
	return resp, nil
}

// Get implements store.Dispatch.
func (s *Store) Get(_ context.Context, req store.GetRequest) (store.GetResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tx *pendingTx
	if req.TransactionID != "" {
		var ok bool
		tx, ok = s.txs[req.TransactionID]
		if !ok {
			return store.GetResponse{}, &store.WireError{Code: store.WireBadRequest, Message: "unknown transaction"}
		}
	}

	resp := store.GetResponse{Found: make([]*store.WireEntity, len(req.Keys))}
	for i, k := range req.Keys {
		tok := keyToken(k)
		if tx != nil {
			s.observe(tx, k)
			if tx.deletes[tok] {
				continue
			}
			if we, ok := tx.puts[tok]; ok {
				cp := we
				resp.Found[i] = &cp
				continue
			}
		}
		if we, ok := s.entities[tok]; ok {
			cp := we
			resp.Found[i] = &cp
		}
	}
	return resp, nil
}

// Delete implements store.Dispatch.
func (s *Store) Delete(_ context.Context, req store.DeleteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range req.Keys {
		tok := keyToken(k)
		if req.TransactionID != "" {
			tx, ok := s.txs[req.TransactionID]
			if !ok {
				return &store.WireError{Code: store.WireBadRequest, Message: "unknown transaction"}
			}
			s.observe(tx, k)
			tx.deletes[tok] = true
			delete(tx.puts, tok)
			continue
		}
		delete(s.entities, tok)
		s.groupVer[groupToken(k)]++
	}
	return nil
}

// BeginTransaction implements store.Dispatch.
func (s *Store) BeginTransaction(_ context.Context) (store.BeginTransactionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.txs[id] = &pendingTx{
		puts:    make(map[string]store.WireEntity),
		deletes: make(map[string]bool),
		reads:   make(map[string]int64),
	}
	return store.BeginTransactionResponse{TransactionID: id}, nil
}

// observe records the entity-group version a transaction saw the first
// time it touches a key in that group; must be called with s.mu held.
func (s *Store) observe(tx *pendingTx, k store.WireKey) {
	g := groupToken(k)
	if _, seen := tx.reads[g]; !seen {
		tx.reads[g] = s.groupVer[g]
	}
}

// Commit implements store.Dispatch.
func (s *Store) Commit(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[transactionID]
	if !ok {
		return &store.WireError{Code: store.WireBadRequest, Message: "unknown transaction"}
	}
	delete(s.txs, transactionID)

	if s.conflicts > 0 {
		s.conflicts--
		return &store.WireError{Code: store.WireConcurrentTransaction, Message: "forced conflict"}
	}
	for g, seenVer := range tx.reads {
		if s.groupVer[g] != seenVer {
			return &store.WireError{Code: store.WireConcurrentTransaction, Message: "entity group modified since transaction began"}
		}
	}
	for tok, we := range tx.puts {
		s.entities[tok] = we
		s.groupVer[groupToken(we.Key)]++
	}
	for tok := range tx.deletes {
		if we, ok := s.entities[tok]; ok {
			s.groupVer[groupToken(we.Key)]++
		}
		delete(s.entities, tok)
	}
	return nil
}

// Rollback implements store.Dispatch.
func (s *Store) Rollback(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txs, transactionID)
	return nil
}

// RunQuery implements store.Dispatch.
func (s *Store) RunQuery(_ context.Context, req store.RunQueryRequest) (store.RunQueryResponse, error) {
	s.mu.Lock()
	matches := s.matchAll(req)
	store.SortEntities(matches, req.Orders)
	s.mu.Unlock()

	start := req.Offset
	if start > len(matches) {
		start = len(matches)
	}
	matches = matches[start:]

	limit := req.Limit
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	page := matches[:limit]
	more := store.NoMoreResults
	var cursor string
	if limit < len(matches) {
		more = store.NotFinished
		cursor = uuid.NewString()
		s.mu.Lock()
		s.cursors[cursor] = &cursorState{entities: matches[limit:]}
		s.mu.Unlock()
	}
	return store.RunQueryResponse{Entities: stripIfKeysOnly(page, req.KeysOnly), EndCursor: cursor, MoreResults: more}, nil
}

// Next implements store.Dispatch.
func (s *Store) Next(_ context.Context, req store.NextRequest) (store.NextResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.cursors[req.Cursor]
	if !ok {
		return store.NextResponse{MoreResults: store.NoMoreResults}, nil
	}
	remaining := cs.entities[cs.pos:]
	count := req.Count
	if count <= 0 || count > len(remaining) {
		count = len(remaining)
	}
	page := remaining[:count]
	cs.pos += count

	more := store.NoMoreResults
	newCursor := req.Cursor
	if cs.pos < len(cs.entities) {
		more = store.NotFinished
	} else {
		delete(s.cursors, req.Cursor)
	}
	return store.NextResponse{Entities: page, EndCursor: newCursor, MoreResults: more}, nil
}

// Count implements store.Dispatch.
func (s *Store) Count(_ context.Context, req store.CountRequest) (store.CountResponse, error) {
	s.mu.Lock()
	matches := s.matchAll(store.RunQueryRequest{App: req.App, Kind: req.Kind, Ancestor: req.Ancestor, Filters: req.Filters})
	s.mu.Unlock()
	return store.CountResponse{Count: int64(len(matches))}, nil
}

// matchAll returns every committed entity matching req's kind, app,
// ancestor, and filters, in storage order. Must be called with s.mu held.
func (s *Store) matchAll(req store.RunQueryRequest) []store.WireEntity {
	var out []store.WireEntity
	for _, we := range s.entities {
		if store.EntityMatchesQuery(we, req.App, req.Kind, req.Ancestor, req.Filters) {
			out = append(out, we)
		}
	}
	return out
}

func stripIfKeysOnly(entities []store.WireEntity, keysOnly bool) []store.WireEntity {
	if !keysOnly {
		return entities
	}
	out := make([]store.WireEntity, len(entities))
	for i, e := range entities {
		out[i] = store.WireEntity{Key: e.Key}
	}
	return out
}
