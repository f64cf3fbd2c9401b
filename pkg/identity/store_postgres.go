package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
)

// PostgresStore implements Store on PostgreSQL. Mappings live in
// identity_mappings with a unique index on (person_id, person_id_type);
// pids live in identity_mapping_pids keyed by (mapping_id, hub_id, pid).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

const mappingColumns = `id, person_id, person_id_type, hub_id, username, last_enrolled, created_at`

func (s *PostgresStore) Find(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM identity_mappings
		WHERE person_id = $1 AND person_id_type = $2
	`, personID, string(personIDType))
	return s.scanWithPids(ctx, row)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Mapping, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM identity_mappings
		WHERE username = $1
	`, username)
	return s.scanWithPids(ctx, row)
}

func (s *PostgresStore) Create(ctx context.Context, mapping *Mapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO identity_mappings (person_id, person_id_type, hub_id, username, last_enrolled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, mapping.PersonID, string(mapping.PersonIDType), mapping.HubID,
		mapping.Username, mapping.LastEnrolled, mapping.CreatedAt).Scan(&mapping.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMapping
		}
		return fmt.Errorf("failed to create mapping: %w", err)
	}

	for _, pid := range mapping.Pids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO identity_mapping_pids (mapping_id, hub_id, pid)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, mapping.ID, pid.HubID, pid.PID); err != nil {
			return fmt.Errorf("failed to insert pid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendPid(ctx context.Context, personID string, personIDType ecsauth.PersonIDType, pid PidRef) error {
	id, err := s.mappingID(ctx, personID, personIDType)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_mapping_pids (mapping_id, hub_id, pid)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, id, pid.HubID, pid.PID); err != nil {
		return fmt.Errorf("failed to append pid: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetLastEnrolled(ctx context.Context, personID string, personIDType ecsauth.PersonIDType, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE identity_mappings SET last_enrolled = $3
		WHERE person_id = $1 AND person_id_type = $2
	`, personID, string(personIDType), at)
	if err != nil {
		return fmt.Errorf("failed to set last enrolled: %w", err)
	}
	return requireOneRow(result)
}

func (s *PostgresStore) Delete(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM identity_mapping_pids
		WHERE mapping_id IN (
			SELECT id FROM identity_mappings WHERE person_id = $1 AND person_id_type = $2
		)
	`, personID, string(personIDType)); err != nil {
		return fmt.Errorf("failed to delete pids: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM identity_mappings
		WHERE person_id = $1 AND person_id_type = $2
	`, personID, string(personIDType))
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if err := requireOneRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNeverEnrolled(ctx context.Context) ([]*Mapping, error) {
	return s.list(ctx, `
		SELECT `+mappingColumns+`
		FROM identity_mappings
		WHERE last_enrolled IS NULL
		ORDER BY id
	`)
}

func (s *PostgresStore) ListEnrolledBefore(ctx context.Context, hubID string, cutoff time.Time) ([]*Mapping, error) {
	return s.list(ctx, `
		SELECT `+mappingColumns+`
		FROM identity_mappings
		WHERE hub_id = $1 AND last_enrolled IS NOT NULL AND last_enrolled < $2
		ORDER BY id
	`, hubID, cutoff)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Mapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}
	return mappings, rows.Err()
}

func (s *PostgresStore) mappingID(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM identity_mappings
		WHERE person_id = $1 AND person_id_type = $2
	`, personID, string(personIDType)).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrMappingNotFound
	} else if err != nil {
		return 0, fmt.Errorf("failed to look up mapping: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) scanWithPids(ctx context.Context, row *sql.Row) (*Mapping, error) {
	mapping, err := scanMapping(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hub_id, pid FROM identity_mapping_pids
		WHERE mapping_id = $1
		ORDER BY hub_id, pid
	`, mapping.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid PidRef
		if err := rows.Scan(&pid.HubID, &pid.PID); err != nil {
			return nil, fmt.Errorf("failed to scan pid: %w", err)
		}
		mapping.Pids = append(mapping.Pids, pid)
	}
	return mapping, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*Mapping, error) {
	mapping := &Mapping{}
	var personIDType string
	var lastEnrolled sql.NullTime
	err := row.Scan(&mapping.ID, &mapping.PersonID, &personIDType,
		&mapping.HubID, &mapping.Username, &lastEnrolled, &mapping.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMappingNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan mapping: %w", err)
	}
	mapping.PersonIDType = ecsauth.PersonIDType(personIDType)
	if lastEnrolled.Valid {
		mapping.LastEnrolled = &lastEnrolled.Time
	}
	return mapping, nil
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
