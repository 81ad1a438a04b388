package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"server-presence-backend/internal/report"
	"server-presence-backend/internal/session"
	"server-presence-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	db             *gorm.DB
	playerSessions store.SessionStore
	worldSessions  store.SessionStore
	playerSamples  store.SampleStore
	worldSamples   store.SampleStore
	worldStatuses  store.WorldStatusStore
	generator      *report.Generator
	webpush        *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(
	db *gorm.DB,
	playerSessions, worldSessions store.SessionStore,
	playerSamples, worldSamples store.SampleStore,
	worldStatuses store.WorldStatusStore,
	generator *report.Generator,
	webpushOptions *webpush.Options,
) *Handler {
	return &Handler{
		db:             db,
		playerSessions: playerSessions,
		worldSessions:  worldSessions,
		playerSamples:  playerSamples,
		worldSamples:   worldSamples,
		worldStatuses:  worldStatuses,
		generator:      generator,
		webpush:        webpushOptions,
	}
}

func (h *Handler) sessionStoreFor(kind string) (store.SessionStore, error) {
	switch kind {
	case session.KindPlayers, "":
		return h.playerSessions, nil
	case session.KindWorlds:
		return h.worldSessions, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func (h *Handler) sampleStoreFor(kind string) (store.SampleStore, error) {
	switch kind {
	case session.KindPlayers, "":
		return h.playerSamples, nil
	case session.KindWorlds:
		return h.worldSamples, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// windowParams resolves the range/date query parameters into [from, to).
// date defaults to today (UTC), range to day.
func windowParams(c *gin.Context) (report.Range, time.Time, time.Time, error) {
	r := report.RangeDay
	if rangeParam := c.Query("range"); rangeParam != "" {
		parsed, err := report.ParseRange(rangeParam)
		if err != nil {
			return "", time.Time{}, time.Time{}, err
		}
		r = parsed
	}

	ref := time.Now().UTC()
	if dateParam := c.Query("date"); dateParam != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateParam, time.UTC)
		if err != nil {
			return "", time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", dateParam)
		}
		ref = parsed
	}

	from, to := report.DateRange(r, ref)
	return r, from, to, nil
}

// GetVAPIDPublicKey returns the push credentials a client needs before it
// can subscribe to watch notifications.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_key": h.webpush.VAPIDPublicKey,
		"subject":    h.webpush.Subscriber,
	})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
