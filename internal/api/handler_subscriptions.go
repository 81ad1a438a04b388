package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"server-presence-backend/internal/model"
	"server-presence-backend/internal/parse"
	"server-presence-backend/internal/session"
)

type watchRequest struct {
	Kind     string `json:"kind" binding:"required"`
	EntityID string `json:"entityId" binding:"required"`
}

type putSubscriptionRequest struct {
	Endpoint string         `json:"endpoint" binding:"required"`
	P256DH   string         `json:"p256dh" binding:"required"`
	Auth     string         `json:"auth" binding:"required"`
	Watches  []watchRequest `json:"watches"`
}

// PutSubscription handles the creation or replacement of a subscription and
// its watched entities.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	watches := make([]model.Watch, 0, len(req.Watches))
	for _, w := range req.Watches {
		if w.Kind != session.KindPlayers && w.Kind != session.KindWorlds {
			c.JSON(http.StatusBadRequest, gin.H{"error": "watch kind must be players or worlds"})
			return
		}
		entityID := parse.StripMarkup(w.EntityID)
		if entityID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "watch entityId must not be empty"})
			return
		}
		watches = append(watches, model.Watch{
			SubscriptionEndpoint: req.Endpoint,
			Kind:                 w.Kind,
			EntityID:             entityID,
		})
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&subscription).Error; err != nil {
			return err
		}

		if err := tx.Where("subscription_endpoint = ?", req.Endpoint).
			Delete(&model.Watch{}).Error; err != nil {
			return err
		}
		if len(watches) == 0 {
			return nil
		}
		return tx.Create(&watches).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_endpoint = ?", req.Endpoint).
			Delete(&model.Watch{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription handles the retrieval of a subscription's watches.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	var subscription model.PushSubscription
	if err := h.db.Preload("Watches").First(&subscription, "endpoint = ?", endpoint).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"watches": subscription.Watches})
}
