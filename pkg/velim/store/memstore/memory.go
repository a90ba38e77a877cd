package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/store"
)

// Store is an in-memory implementation of store.Store for tests and
// one-shot CLI runs.
type Store struct {
	mu       sync.RWMutex
	networks map[string]store.NetworkMeta
	queries  map[string]store.QueryRecord
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		networks: make(map[string]store.NetworkMeta),
		queries:  make(map[string]store.QueryRecord),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertNetwork inserts or replaces a network, keyed by name.
func (s *Store) UpsertNetwork(ctx context.Context, n store.NetworkMeta) error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("memstore: network without name: %w", internalerr.ErrInvalidInput)
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[n.Name] = n
	return nil
}

// GetNetwork returns the network registered under name.
func (s *Store) GetNetwork(ctx context.Context, name string) (store.NetworkMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.networks[name]
	if !ok {
		return store.NetworkMeta{}, fmt.Errorf("memstore: network %q: %w", name, internalerr.ErrNotFound)
	}
	return n, nil
}

// ListNetworks returns every network ordered by name.
func (s *Store) ListNetworks(ctx context.Context) ([]store.NetworkMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.NetworkMeta, 0, len(s.networks))
	for _, n := range s.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveQuery records an answered query.
func (s *Store) SaveQuery(ctx context.Context, q store.QueryRecord) error {
	if q.ID == "" {
		return fmt.Errorf("memstore: query record without id: %w", internalerr.ErrInvalidInput)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.networks[q.Network]; !ok {
		return fmt.Errorf("memstore: network %q: %w", q.Network, internalerr.ErrNotFound)
	}
	if _, ok := s.queries[q.ID]; ok {
		return fmt.Errorf("memstore: query %s: %w", q.ID, internalerr.ErrDuplicate)
	}
	s.queries[q.ID] = copyRecord(q)
	return nil
}

// GetQuery returns a recorded query by id.
func (s *Store) GetQuery(ctx context.Context, id string) (store.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.queries[id]
	if !ok {
		return store.QueryRecord{}, fmt.Errorf("memstore: query %s: %w", id, internalerr.ErrNotFound)
	}
	return copyRecord(q), nil
}

// ListQueries returns up to limit queries against network, newest first.
func (s *Store) ListQueries(ctx context.Context, network string, limit int) ([]store.QueryRecord, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.QueryRecord
	for _, q := range s.queries {
		if network == "" || q.Network == network {
			out = append(out, copyRecord(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRecord(q store.QueryRecord) store.QueryRecord {
	out := q
	out.Query = append([]string{}, q.Query...)
	out.Order = append([]string{}, q.Order...)
	out.Barren = append([]string{}, q.Barren...)
	out.Evidence = make(map[string]string, len(q.Evidence))
	for k, v := range q.Evidence {
		out.Evidence[k] = v
	}
	out.Outcomes = make([]store.Outcome, len(q.Outcomes))
	for i, o := range q.Outcomes {
		assign := make(map[string]string, len(o.Assignment))
		for k, v := range o.Assignment {
			assign[k] = v
		}
		out.Outcomes[i] = store.Outcome{Assignment: assign, Probability: o.Probability}
	}
	return out
}
