package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// WatermarkStore persists the point in time up to which new-account
// notifications have been handled.
type WatermarkStore interface {
	// Get returns the watermark, or the zero time when none was stored.
	Get(ctx context.Context) (time.Time, error)
	// Set stores the watermark.
	Set(ctx context.Context, at time.Time) error
}

// MemoryWatermarkStore keeps the watermark in memory.
type MemoryWatermarkStore struct {
	mu sync.Mutex
	at time.Time
}

// NewMemoryWatermarkStore creates an empty in-memory watermark store.
func NewMemoryWatermarkStore() *MemoryWatermarkStore {
	return &MemoryWatermarkStore{}
}

func (s *MemoryWatermarkStore) Get(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.at, nil
}

func (s *MemoryWatermarkStore) Set(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.at = at
	return nil
}

// PostgresWatermarkStore keeps the watermark in a single-row table.
type PostgresWatermarkStore struct {
	db *sql.DB
}

// NewPostgresWatermarkStore wraps an existing database handle.
func NewPostgresWatermarkStore(db *sql.DB) *PostgresWatermarkStore {
	return &PostgresWatermarkStore{db: db}
}

func (s *PostgresWatermarkStore) Get(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT notified_until FROM lifecycle_watermark WHERE id = 1
	`).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	} else if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	return at, nil
}

func (s *PostgresWatermarkStore) Set(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_watermark (id, notified_until)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET notified_until = EXCLUDED.notified_until
	`, at)
	if err != nil {
		return fmt.Errorf("failed to store watermark: %w", err)
	}
	return nil
}
