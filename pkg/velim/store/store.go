package store

import (
	"context"
	"time"
)

// Store persists registered networks and the history of answered queries.
type Store interface {
	Close() error

	// Networks
	UpsertNetwork(ctx context.Context, n NetworkMeta) error
	GetNetwork(ctx context.Context, name string) (NetworkMeta, error)
	ListNetworks(ctx context.Context) ([]NetworkMeta, error)

	// Query history
	SaveQuery(ctx context.Context, q QueryRecord) error
	GetQuery(ctx context.Context, id string) (QueryRecord, error)
	ListQueries(ctx context.Context, network string, limit int) ([]QueryRecord, error)
}

// NetworkMeta is a registered network with the description it was loaded from.
type NetworkMeta struct {
	Name      string
	Format    string // codec format of Source, e.g. "bif" or "yaml"
	Source    string
	Variables int
	UpdatedAt time.Time
}

// QueryRecord is one answered query.
type QueryRecord struct {
	ID        string // ULID
	Network   string
	Engine    string
	Query     []string
	Evidence  map[string]string
	Strategy  string // order strategy, e.g. "auto:min-fill" or "explicit"
	Order     []string
	Barren    []string
	Outcomes  []Outcome
	PeakCells int
	CreatedAt time.Time
}

// Outcome is one posterior row.
type Outcome struct {
	Assignment  map[string]string `json:"assignment"`
	Probability float64           `json:"p"`
}

// DefaultListLimit applies when ListQueries is given a non-positive limit.
const DefaultListLimit = 20
