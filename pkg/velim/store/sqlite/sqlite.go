package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/store"
)

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema when missing.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, errors.Join(err, internalerr.ErrStoreUnavailable))
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", errors.Join(err, internalerr.ErrStoreUnavailable))
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", errors.Join(err, internalerr.ErrStoreUnavailable))
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS networks (
	name TEXT PRIMARY KEY,
	format TEXT NOT NULL,
	source TEXT NOT NULL,
	variables INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	network TEXT NOT NULL,
	engine TEXT NOT NULL,
	query TEXT NOT NULL,
	evidence TEXT NOT NULL,
	strategy TEXT,
	elim_order TEXT NOT NULL,
	barren TEXT NOT NULL,
	outcomes TEXT NOT NULL,
	peak_cells INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY(network) REFERENCES networks(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS queries_by_network ON queries(network, created_at);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertNetwork inserts or replaces a network, keyed by name.
func (s *sqliteStore) UpsertNetwork(ctx context.Context, n store.NetworkMeta) error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("sqlite: network without name: %w", internalerr.ErrInvalidInput)
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO networks (name, format, source, variables, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	format=excluded.format,
	source=excluded.source,
	variables=excluded.variables,
	updated_at=excluded.updated_at;
`, n.Name, n.Format, n.Source, n.Variables, n.UpdatedAt.UTC().Format(timeLayout))
	return err
}

// GetNetwork returns the network registered under name.
func (s *sqliteStore) GetNetwork(ctx context.Context, name string) (store.NetworkMeta, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT name, format, source, variables, updated_at FROM networks WHERE name = ?
`, name)
	n, err := scanNetwork(row)
	if err == sql.ErrNoRows {
		return store.NetworkMeta{}, fmt.Errorf("sqlite: network %q: %w", name, internalerr.ErrNotFound)
	}
	return n, err
}

// ListNetworks returns every network ordered by name.
func (s *sqliteStore) ListNetworks(ctx context.Context) ([]store.NetworkMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, format, source, variables, updated_at FROM networks ORDER BY name
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.NetworkMeta
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNetwork(sc scanner) (store.NetworkMeta, error) {
	var n store.NetworkMeta
	var updated string
	if err := sc.Scan(&n.Name, &n.Format, &n.Source, &n.Variables, &updated); err != nil {
		return store.NetworkMeta{}, err
	}
	t, err := time.Parse(timeLayout, updated)
	if err != nil {
		return store.NetworkMeta{}, fmt.Errorf("sqlite: network %s updated_at: %w", n.Name, err)
	}
	n.UpdatedAt = t
	return n, nil
}

// SaveQuery records an answered query. The network must be registered and
// the id unused.
func (s *sqliteStore) SaveQuery(ctx context.Context, q store.QueryRecord) error {
	if q.ID == "" {
		return fmt.Errorf("sqlite: query record without id: %w", internalerr.ErrInvalidInput)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM networks WHERE name = ?`, q.Network).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("sqlite: network %q: %w", q.Network, internalerr.ErrNotFound)
	}
	if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM queries WHERE id = ?`, q.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("sqlite: query %s: %w", q.ID, internalerr.ErrDuplicate)
	}
	if err != sql.ErrNoRows {
		return err
	}

	cols, err := encodeColumns(q)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO queries (id, network, engine, query, evidence, strategy, elim_order, barren, outcomes, peak_cells, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, q.ID, q.Network, q.Engine, cols[0], cols[1], q.Strategy, cols[2], cols[3], cols[4], q.PeakCells,
		q.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetQuery returns a recorded query by id.
func (s *sqliteStore) GetQuery(ctx context.Context, id string) (store.QueryRecord, error) {
	row := s.db.QueryRowContext(ctx, selectQueries+` WHERE id = ?`, id)
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return store.QueryRecord{}, fmt.Errorf("sqlite: query %s: %w", id, internalerr.ErrNotFound)
	}
	return q, err
}

// ListQueries returns up to limit queries against network, newest first.
// An empty network lists every network's queries.
func (s *sqliteStore) ListQueries(ctx context.Context, network string, limit int) ([]store.QueryRecord, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	query := selectQueries
	args := []any{}
	if network != "" {
		query += ` WHERE network = ?`
		args = append(args, network)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.QueryRecord
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const selectQueries = `
SELECT id, network, engine, query, evidence, strategy, elim_order, barren, outcomes, peak_cells, created_at
FROM queries`

// encodeColumns returns the JSON columns query, evidence, elim_order, barren
// and outcomes.
func encodeColumns(q store.QueryRecord) ([5]string, error) {
	var out [5]string
	values := []any{nonNil(q.Query), nonNilMap(q.Evidence), nonNil(q.Order), nonNil(q.Barren), q.Outcomes}
	if q.Outcomes == nil {
		values[4] = []store.Outcome{}
	}
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return out, err
		}
		out[i] = string(b)
	}
	return out, nil
}

func scanQuery(sc scanner) (store.QueryRecord, error) {
	var q store.QueryRecord
	var queryJSON, evidenceJSON, orderJSON, barrenJSON, outcomesJSON, created string
	var strategy sql.NullString
	err := sc.Scan(&q.ID, &q.Network, &q.Engine, &queryJSON, &evidenceJSON, &strategy,
		&orderJSON, &barrenJSON, &outcomesJSON, &q.PeakCells, &created)
	if err != nil {
		return store.QueryRecord{}, err
	}
	q.Strategy = strategy.String

	for _, col := range []struct {
		raw  string
		dest any
	}{
		{queryJSON, &q.Query},
		{evidenceJSON, &q.Evidence},
		{orderJSON, &q.Order},
		{barrenJSON, &q.Barren},
		{outcomesJSON, &q.Outcomes},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dest); err != nil {
			return store.QueryRecord{}, fmt.Errorf("sqlite: query %s: %w", q.ID, err)
		}
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return store.QueryRecord{}, fmt.Errorf("sqlite: query %s created_at: %w", q.ID, err)
	}
	q.CreatedAt = t
	return q, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
