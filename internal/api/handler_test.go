package api

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"server-presence-backend/internal/model"
	"server-presence-backend/internal/report"
	"server-presence-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

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

type fakeSessionStore struct {
	mostActive []store.EntityActivity
}

func (f *fakeSessionStore) Insert(ctx context.Context, entityID string, start, end time.Time) error {
	return nil
}

func (f *fakeSessionStore) TouchAll(ctx context.Context, open map[string]time.Time, now time.Time) error {
	return nil
}

func (f *fakeSessionStore) OpenSince(ctx context.Context, entityIDs []string, notBefore time.Time) (map[string]time.Time, error) {
	return nil, nil
}

func (f *fakeSessionStore) Sessions(ctx context.Context, from, to time.Time) ([]model.Session, error) {
	return nil, nil
}

func (f *fakeSessionStore) MostActive(ctx context.Context, from, to time.Time, limit int) ([]store.EntityActivity, error) {
	return f.mostActive, nil
}

type fakeSampleStore struct {
	peak   int
	recent []model.OnlineSample
}

func (f *fakeSampleStore) Insert(ctx context.Context, count int, at time.Time) error { return nil }

func (f *fakeSampleStore) Peak(ctx context.Context, from, to time.Time) (int, error) {
	return f.peak, nil
}

func (f *fakeSampleStore) Recent(ctx context.Context, limit int) ([]model.OnlineSample, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

type fakeWorldStatusStore struct {
	latest []model.WorldStatus
}

func (f *fakeWorldStatusStore) Record(ctx context.Context, statuses []model.WorldStatus) error {
	return nil
}

func (f *fakeWorldStatusStore) Latest(ctx context.Context, since time.Time) ([]model.WorldStatus, error) {
	return f.latest, nil
}

func (f *fakeWorldStatusStore) Between(ctx context.Context, from, to time.Time) ([]model.WorldStatus, error) {
	return nil, nil
}

type handlerFixture struct {
	handler  *Handler
	players  *fakeSessionStore
	worlds   *fakeSessionStore
	samples  *fakeSampleStore
	statuses *fakeWorldStatusStore
}

func newHandlerFixture(db *gorm.DB) *handlerFixture {
	players := &fakeSessionStore{}
	worlds := &fakeSessionStore{}
	playerSamples := &fakeSampleStore{}
	worldSamples := &fakeSampleStore{}
	statuses := &fakeWorldStatusStore{}
	generator := report.NewGenerator(players, worlds, playerSamples, statuses, zerolog.Nop())
	handler := NewHandler(
		db,
		players, worlds,
		playerSamples, worldSamples,
		statuses,
		generator,
		&webpush.Options{VAPIDPublicKey: "test-public-key", Subscriber: "mailto:ops@example.com"},
	)
	return &handlerFixture{
		handler:  handler,
		players:  players,
		worlds:   worlds,
		samples:  playerSamples,
		statuses: statuses,
	}
}
