package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const topSessionsLimit = 10

// GetTopSessions handles GET /api/sessions/top?kind=&range=&date=.
func (h *Handler) GetTopSessions(c *gin.Context) {
	sessions, err := h.sessionStoreFor(c.Query("kind"))
	if err != nil {
		badRequest(c, err)
		return
	}
	r, from, to, err := windowParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	activity, err := sessions.MostActive(c.Request.Context(), from, to, topSessionsLimit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"range": r,
		"from":  from,
		"to":    to,
		"top":   activity,
	})
}

// GetPeakOnline handles GET /api/online/peak?kind=&range=&date=.
func (h *Handler) GetPeakOnline(c *gin.Context) {
	samples, err := h.sampleStoreFor(c.Query("kind"))
	if err != nil {
		badRequest(c, err)
		return
	}
	r, from, to, err := windowParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	peak, err := samples.Peak(c.Request.Context(), from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to query peak online"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"range": r,
		"from":  from,
		"to":    to,
		"peak":  peak,
	})
}

// GetRecentOnline handles GET /api/online?kind=&limit=.
func (h *Handler) GetRecentOnline(c *gin.Context) {
	samples, err := h.sampleStoreFor(c.Query("kind"))
	if err != nil {
		badRequest(c, err)
		return
	}

	limit := 100
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 || parsed > 1000 {
			badRequest(c, errInvalidLimit)
			return
		}
		limit = parsed
	}

	rows, err := samples.Recent(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to query samples"})
		return
	}

	c.JSON(http.StatusOK, rows)
}
