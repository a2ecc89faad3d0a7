package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS prediction_history").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord(t *testing.T) {
	store, mock := newMock(t)
	created := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO prediction_history").
		WithArgs(sqlmock.AnyArg(), KindWeatherRisk, "rice", "Thanjavur", "rice_blast", "high", 0.85, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	e := &Entry{
		Kind:       KindWeatherRisk,
		Crop:       "rice",
		District:   "Thanjavur",
		TopDisease: "rice_blast",
		TopLevel:   "high",
		Confidence: 0.85,
		Diseases:   pq.StringArray{"rice_blast", "rice_brown_spot"},
	}
	require.NoError(t, store.Record(context.Background(), e))

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, created, e.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO prediction_history").WillReturnError(sql.ErrConnDone)

	err := store.Record(context.Background(), &Entry{Kind: KindImage, Crop: "tomato"})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestRecent(t *testing.T) {
	store, mock := newMock(t)
	id := uuid.New()
	created := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "kind", "crop", "district", "top_disease", "top_level", "confidence", "diseases", "created_at",
	}).AddRow(id.String(), KindWeatherRisk, "rice", "Thanjavur", "rice_blast", "high", 0.85, "{rice_blast,rice_brown_spot}", created)

	mock.ExpectQuery("SELECT (.+) FROM prediction_history").
		WithArgs("rice", 5).
		WillReturnRows(rows)

	entries, err := store.Recent(context.Background(), "rice", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, []string{"rice_blast", "rice_brown_spot"}, []string(entries[0].Diseases))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentClampsLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{7, 7},
		{500, MaxLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.in))
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	require.NoError(t, r.Record(context.Background(), &Entry{}))
	entries, err := r.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
