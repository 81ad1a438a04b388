package api

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupSubscriptionRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	f := newHandlerFixture(db)
	r.GET("/api/subscriptions", f.handler.GetSubscription)
	r.PUT("/api/subscriptions", f.handler.PutSubscription)
	r.DELETE("/api/subscriptions", f.handler.DeleteSubscription)
	return r
}

func TestPutSubscriptionRejectsInvalidBody(t *testing.T) {
	router := setupSubscriptionRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSubscriptionRejectsUnknownWatchKind(t *testing.T) {
	router := setupSubscriptionRouter(nil)

	body := `{
		"endpoint": "https://example.com/push",
		"p256dh": "key",
		"auth": "auth",
		"watches": [{"kind": "machines", "entityId": "Alice"}]
	}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", strings.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "players or worlds")
}

func TestPutSubscriptionRejectsEmptyEntity(t *testing.T) {
	router := setupSubscriptionRouter(nil)

	// Markup-only names strip down to nothing.
	body := `{
		"endpoint": "https://example.com/push",
		"p256dh": "key",
		"auth": "auth",
		"watches": [{"kind": "players", "entityId": "{ff0000}"}]
	}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", strings.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSubscriptionUpsertsAndReplacesWatches(t *testing.T) {
	db, mock := newTestDB(t)
	router := setupSubscriptionRouter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "push_subscriptions"`)).
		WithArgs("https://example.com/push", "key", "auth", Any{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "watches" WHERE subscription_endpoint = $1`)).
		WithArgs("https://example.com/push").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "watches"`)).
		WithArgs("https://example.com/push", "players", "Alice", "https://example.com/push", "worlds", "Skyblock").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	body := `{
		"endpoint": "https://example.com/push",
		"p256dh": "key",
		"auth": "auth",
		"watches": [
			{"kind": "players", "entityId": "{ff0000}Alice"},
			{"kind": "worlds", "entityId": "Skyblock"}
		]
	}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", strings.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriptionRequiresEndpoint(t *testing.T) {
	router := setupSubscriptionRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubscriptionReturnsWatches(t *testing.T) {
	db, mock := newTestDB(t)
	router := setupSubscriptionRouter(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "push_subscriptions" WHERE endpoint = $1`)).
		WithArgs("https://example.com/push", 1).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
			AddRow("https://example.com/push", "key", "auth", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "watches" WHERE "watches"."subscription_endpoint" = $1`)).
		WithArgs("https://example.com/push").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_endpoint", "kind", "entity_id"}).
			AddRow("https://example.com/push", "players", "Alice"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions?endpoint=https://example.com/push", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriptionNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	router := setupSubscriptionRouter(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "push_subscriptions"`)).
		WithArgs("https://example.com/missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions?endpoint=https://example.com/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSubscription(t *testing.T) {
	db, mock := newTestDB(t)
	router := setupSubscriptionRouter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "watches" WHERE subscription_endpoint = $1`)).
		WithArgs("https://example.com/push").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = $1`)).
		WithArgs("https://example.com/push").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/subscriptions", strings.NewReader(`{"endpoint":"https://example.com/push"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
