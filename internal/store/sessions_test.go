package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func TestSessionStore_Insert(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "player_sessions"`)).
		WithArgs("Alice", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Insert(context.Background(), "Alice", now, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_TouchAll(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "player_sessions" SET "end_time"=$1 WHERE entity_id = $2 AND start_time = $3`)).
		WithArgs(now, "Alice", start).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.TouchAll(context.Background(), map[string]time.Time{"Alice": start}, now)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_TouchAllEmptySkipsTransaction(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")

	err := s.TouchAll(context.Background(), nil, time.Now())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_OpenSince(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")
	notBefore := time.Date(2024, 3, 1, 11, 15, 0, 0, time.UTC)
	early := notBefore.Add(-2 * time.Hour)
	late := notBefore.Add(30 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "player_sessions" WHERE entity_id IN ($1) AND end_time > $2`)).
		WithArgs("Alice", notBefore).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "start_time", "end_time"}).
			AddRow("Alice", early, notBefore.Add(time.Minute)).
			AddRow("Alice", late, late.Add(time.Minute)))

	open, err := s.OpenSince(context.Background(), []string{"Alice"}, notBefore)
	require.NoError(t, err)
	// The latest qualifying interval wins.
	assert.Equal(t, map[string]time.Time{"Alice": late}, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_OpenSinceEmptyInput(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")

	open, err := s.OpenSince(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_MostActive(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "player_sessions" WHERE start_time >= $1 AND start_time < $2`)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "start_time", "end_time"}).
			AddRow("Alice", from, from.Add(time.Hour)).
			AddRow("Bob", from, from.Add(3*time.Hour)).
			AddRow("Alice", from.Add(4*time.Hour), from.Add(5*time.Hour)))

	activity, err := s.MostActive(context.Background(), from, to, 10)
	require.NoError(t, err)
	// Intervals per entity are summed and sorted by total hours.
	assert.Equal(t, []EntityActivity{
		{EntityID: "Bob", Hours: 3},
		{EntityID: "Alice", Hours: 2},
	}, activity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_MostActiveAppliesLimit(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewSessionStore(gormDB, "player_sessions")
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "player_sessions"`)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "start_time", "end_time"}).
			AddRow("Alice", from, from.Add(time.Hour)).
			AddRow("Bob", from, from.Add(2*time.Hour)).
			AddRow("Carol", from, from.Add(3*time.Hour)))

	activity, err := s.MostActive(context.Background(), from, to, 2)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "Carol", activity[0].EntityID)
	assert.Equal(t, "Bob", activity[1].EntityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
