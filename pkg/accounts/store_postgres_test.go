package accounts

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs("unia_bob", AuthMethodCampusConnect, "Uni A", "Bob", "Builder",
			"unia_bob@unia.example.edu", "id-unia_bob", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	account := newAccount("unia_bob")
	require.NoError(t, store.Create(context.Background(), account))
	assert.Equal(t, int64(12), account.ID)
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Create(context.Background(), newAccount("unia_bob"))
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "auth_method", "institution", "first_name", "last_name",
		"email", "id_number", "custom", "suspended", "deleted", "created_at", "last_login_at",
	})
}

func TestPostgresStore_FindByUsername(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM accounts`).
		WithArgs("unia_bob").
		WillReturnRows(accountRows().AddRow(
			int64(12), "unia_bob", AuthMethodCampusConnect, "Uni A", "Bob", "Builder",
			"unia_bob@unia.example.edu", "", []byte(`{"department":"physics"}`),
			false, false, created, nil))

	account, err := store.FindByUsername(context.Background(), "unia_bob")
	require.NoError(t, err)
	assert.Equal(t, int64(12), account.ID)
	assert.Equal(t, map[string]string{"department": "physics"}, account.Custom)
	assert.Nil(t, account.LastLoginAt)
}

func TestPostgresStore_FindByUsernameMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM accounts`).
		WithArgs("nobody").
		WillReturnRows(accountRows())

	_, err := store.FindByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostgresStore_SearchByCustomField(t *testing.T) {
	store, mock := newMockStore(t)

	// Unknown field names must go through the JSONB document, never into
	// SQL identifiers.
	mock.ExpectQuery(`custom->>\$1`).
		WithArgs("department", "physics").
		WillReturnRows(accountRows().AddRow(
			int64(12), "unia_bob", AuthMethodCampusConnect, "Uni A", "Bob", "Builder",
			"unia_bob@unia.example.edu", "", []byte(`{}`),
			false, false, time.Now(), nil))

	matches, err := store.SearchByField(context.Background(), "department", "physics")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "unia_bob", matches[0].Username)
}

func TestPostgresStore_ScrubAndDelete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM account_events`).
		WithArgs("unia_bob").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("unia_bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.ScrubAndDelete(context.Background(), "unia_bob"))
}

func TestPostgresStore_SuspendMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE accounts SET suspended`).
		WithArgs("nobody").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Suspend(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
