package lifecycle

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWatermarkStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWatermarkStore()

	mark, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, mark.IsZero())

	at := time.Date(2026, 8, 28, 3, 29, 59, 0, time.UTC)
	require.NoError(t, store.Set(ctx, at))

	mark, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, at, mark)
}

func TestPostgresWatermarkStore(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresWatermarkStore(db)
	ctx := context.Background()

	t.Run("unset watermark is the zero time", func(t *testing.T) {
		mock.ExpectQuery(`SELECT notified_until FROM lifecycle_watermark`).
			WillReturnRows(sqlmock.NewRows([]string{"notified_until"}))

		mark, err := store.Get(ctx)
		require.NoError(t, err)
		assert.True(t, mark.IsZero())
	})

	t.Run("set upserts the single row", func(t *testing.T) {
		at := time.Date(2026, 8, 28, 3, 29, 59, 0, time.UTC)
		mock.ExpectExec(`INSERT INTO lifecycle_watermark`).
			WithArgs(at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Set(ctx, at))
	})

	t.Run("get returns the stored time", func(t *testing.T) {
		at := time.Date(2026, 8, 28, 3, 29, 59, 0, time.UTC)
		mock.ExpectQuery(`SELECT notified_until FROM lifecycle_watermark`).
			WillReturnRows(sqlmock.NewRows([]string{"notified_until"}).AddRow(at))

		mark, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, at, mark)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
