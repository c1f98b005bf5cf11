package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"crisim/internal/model"

	"github.com/c2h5oh/datasize"
	_ "modernc.org/sqlite"
)

type SQLiteOption func(*SQLiteStore)

// WithCacheSize sets the page cache budget of the connection. Zero keeps the
// sqlite default.
func WithCacheSize(size datasize.ByteSize) SQLiteOption {
	return func(s *SQLiteStore) {
		s.cacheSize = size
	}
}

type SQLiteStore struct {
	path      string
	cacheSize datasize.ByteSize

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string, opts ...SQLiteOption) *SQLiteStore {
	s := &SQLiteStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if s.cacheSize > 0 {
		// a negative cache_size is a budget in KiB
		kib := int64(s.cacheSize.KBytes())
		if kib < 1 {
			kib = 1
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA cache_size = -%d", kib)); err != nil {
			_ = db.Close()
			return fmt.Errorf("set cache size: %w", err)
		}
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// CacheSizeKiB reports the page cache budget the connection runs with.
func (s *SQLiteStore) CacheSizeKiB(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var pages int64
	if err := db.QueryRowContext(ctx, `PRAGMA cache_size`).Scan(&pages); err != nil {
		return 0, err
	}
	if pages < 0 {
		return -pages, nil
	}
	var pageSize int64
	if err := db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, err
	}
	return pages * pageSize / 1024, nil
}

func (s *SQLiteStore) SaveNetwork(ctx context.Context, spec model.NetworkSpec) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	spec.VersionedRecord = stamp(spec.VersionedRecord)
	payload, err := EncodeNetwork(spec)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO networks (id, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, spec.ID, spec.SchemaVersion, spec.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetNetwork(ctx context.Context, id string) (model.NetworkSpec, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.NetworkSpec{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM networks WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NetworkSpec{}, false, nil
		}
		return model.NetworkSpec{}, false, err
	}

	spec, err := DecodeNetwork(payload)
	if err != nil {
		return model.NetworkSpec{}, false, fmt.Errorf("decode network %s: %w", id, err)
	}
	return spec, true, nil
}

func (s *SQLiteStore) SaveTrace(ctx context.Context, trace model.Trace) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	trace.VersionedRecord = stamp(trace.VersionedRecord)
	payload, err := EncodeTrace(trace)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO traces (id, network_id, created_at_utc, seed, steps, outputs, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			network_id = excluded.network_id,
			created_at_utc = excluded.created_at_utc,
			seed = excluded.seed,
			steps = excluded.steps,
			outputs = excluded.outputs,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, trace.ID, trace.NetworkID, trace.CreatedAtUTC, trace.Seed, len(trace.Steps), len(trace.Outputs),
		trace.SchemaVersion, trace.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetTrace(ctx context.Context, id string) (model.Trace, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.Trace{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM traces WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Trace{}, false, nil
		}
		return model.Trace{}, false, err
	}

	trace, err := DecodeTrace(payload)
	if err != nil {
		return model.Trace{}, false, fmt.Errorf("decode trace %s: %w", id, err)
	}
	return trace, true, nil
}

func (s *SQLiteStore) ListTraces(ctx context.Context, networkID string) ([]model.TraceSummary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, network_id, created_at_utc, seed, steps, outputs
		FROM traces
		WHERE ? = '' OR network_id = ?
		ORDER BY created_at_utc, id
	`, networkID, networkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TraceSummary, 0)
	for rows.Next() {
		var summary model.TraceSummary
		if err := rows.Scan(&summary.ID, &summary.NetworkID, &summary.CreatedAtUTC, &summary.Seed, &summary.Steps, &summary.Outputs); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteTrace(ctx context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM traces WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: trace %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS networks (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			network_id TEXT NOT NULL,
			created_at_utc TEXT NOT NULL,
			seed INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			outputs INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS traces_network ON traces (network_id, created_at_utc);
	`)
	return err
}
