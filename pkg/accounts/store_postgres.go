package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to PostgreSQL and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// searchColumns are the profile fields stored as real columns. Anything
// else is looked up in the custom JSONB document.
var searchColumns = map[string]string{
	"username":  "username",
	"email":     "email",
	"idnumber":  "id_number",
	"firstname": "first_name",
	"lastname":  "last_name",
}

const accountColumns = `id, username, auth_method, institution, first_name, last_name,
		email, id_number, custom, suspended, deleted, created_at, last_login_at`

func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	custom, err := json.Marshal(account.Custom)
	if err != nil {
		return fmt.Errorf("failed to encode custom fields: %w", err)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (username, auth_method, institution, first_name, last_name,
			email, id_number, custom, suspended, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, false, $9)
		RETURNING id
	`, account.Username, account.AuthMethod, account.Institution,
		account.FirstName, account.LastName, account.Email, account.IDNumber,
		custom, account.CreatedAt).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1 AND NOT deleted
	`, username)
	return scanAccount(row)
}

func (s *PostgresStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)
	`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SearchByField(ctx context.Context, field, value string) ([]*Account, error) {
	if value == "" {
		return nil, nil
	}

	var rows *sql.Rows
	var err error
	if column, ok := searchColumns[field]; ok {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+accountColumns+`
			FROM accounts
			WHERE `+column+` = $1 AND NOT deleted
			ORDER BY id
		`, value)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+accountColumns+`
			FROM accounts
			WHERE custom->>$1 = $2 AND NOT deleted
			ORDER BY id
		`, field, value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) ListByAuthMethodCreatedSince(ctx context.Context, authMethod string, since time.Time) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE auth_method = $1 AND created_at > $2 AND NOT deleted
		ORDER BY id
	`, authMethod, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *PostgresStore) Suspend(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET suspended = true
		WHERE username = $1 AND NOT deleted
	`, username)
	if err != nil {
		return fmt.Errorf("failed to suspend account: %w", err)
	}
	return requireOneRow(result)
}

func (s *PostgresStore) ScrubAndDelete(ctx context.Context, username string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM account_events WHERE username = $1
	`, username); err != nil {
		return fmt.Errorf("failed to drop account events: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET first_name = '', last_name = '', email = '', id_number = '',
			custom = '{}', suspended = true, deleted = true
		WHERE username = $1 AND NOT deleted
	`, username)
	if err != nil {
		return fmt.Errorf("failed to scrub account: %w", err)
	}
	if err := requireOneRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, username string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET last_login_at = $2
		WHERE username = $1 AND NOT deleted
	`, username, at)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return requireOneRow(result)
}

func (s *PostgresStore) LogEvent(ctx context.Context, username, kind string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_events (username, kind, created_at)
		VALUES ($1, $2, NOW())
	`, username, kind)
	if err != nil {
		return fmt.Errorf("failed to log account event: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	account := &Account{}
	var custom []byte
	var lastLogin sql.NullTime
	err := row.Scan(&account.ID, &account.Username, &account.AuthMethod,
		&account.Institution, &account.FirstName, &account.LastName,
		&account.Email, &account.IDNumber, &custom,
		&account.Suspended, &account.Deleted, &account.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &account.Custom); err != nil {
			return nil, fmt.Errorf("failed to decode custom fields: %w", err)
		}
	}
	if lastLogin.Valid {
		account.LastLoginAt = &lastLogin.Time
	}
	return account, nil
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
