package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var errInvalidLimit = errors.New("limit must be between 1 and 1000")

// worldStatusMaxAge bounds how far back the "current" world list may reach.
const worldStatusMaxAge = 24 * time.Hour

// GetWorlds handles GET /api/worlds: the most recent observation per world
// seen in the last day.
func (h *Handler) GetWorlds(c *gin.Context) {
	since := time.Now().UTC().Add(-worldStatusMaxAge)
	worlds, err := h.worldStatuses.Latest(c.Request.Context(), since)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to query world statuses"})
		return
	}
	c.JSON(http.StatusOK, worlds)
}

// GetDigest handles GET /api/digest?range=&date=.
func (h *Handler) GetDigest(c *gin.Context) {
	r, from, to, err := windowParams(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	digest, err := h.generator.Generate(c.Request.Context(), r, from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate digest"})
		return
	}

	c.JSON(http.StatusOK, digest)
}
