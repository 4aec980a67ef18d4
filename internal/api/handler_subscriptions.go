package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"babylog-backend/internal/model"
)

type subscriptionKeys struct {
	P256DH string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type registerSubscriptionRequest struct {
	Endpoint    string           `json:"endpoint" binding:"required"`
	Keys        subscriptionKeys `json:"keys" binding:"required"`
	DeviceLabel string           `json:"device_label"`
	UserAgent   string           `json:"user_agent"`
	FamilyID    int64            `json:"family_id" binding:"required"`
}

// RegisterSubscription handles the registration handshake: it creates or
// refreshes the subscription row keyed on the endpoint, seeds default
// preference rows for the family's children, and returns the assigned
// subscription id.
func (h *Handler) RegisterSubscription(c *gin.Context) {
	var req registerSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := model.PushSubscription{
		FamilyID:    req.FamilyID,
		Endpoint:    req.Endpoint,
		P256DH:      req.Keys.P256DH,
		Auth:        req.Keys.Auth,
		DeviceLabel: req.DeviceLabel,
		UserAgent:   req.UserAgent,
	}

	ctx := c.Request.Context()
	if err := h.store.UpsertSubscription(ctx, &sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The registration itself succeeded; missing default preference rows
	// only degrade the settings UI until the next registration.
	if err := h.store.EnsureDefaultPreferences(ctx, sub.ID, sub.FamilyID); err != nil {
		log.Printf("failed to seed preferences for subscription %d: %v", sub.ID, err)
	}

	c.JSON(http.StatusCreated, gin.H{"id": sub.ID})
}

// rawQueryParam extracts a query parameter without URL decoding; push
// endpoints contain characters that must round-trip exactly.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

type preferenceSummary struct {
	ChildID               int64  `json:"child_id"`
	EventType             string `json:"event_type"`
	Enabled               bool   `json:"enabled"`
	RepeatIntervalMinutes *int   `json:"repeat_interval_minutes"`
}

// GetSubscription returns the stored subscription id and its preference
// rows for the given endpoint.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	sub, err := h.store.GetSubscriptionByEndpoint(c.Request.Context(), endpoint)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	prefs := make([]preferenceSummary, len(sub.Preferences))
	for i, p := range sub.Preferences {
		prefs[i] = preferenceSummary{
			ChildID:               p.ChildID,
			EventType:             p.EventType,
			Enabled:               p.Enabled,
			RepeatIntervalMinutes: p.RepeatIntervalMinutes,
		}
	}

	c.JSON(http.StatusOK, gin.H{"id": sub.ID, "preferences": prefs})
}

// DeleteSubscription handles unregistration. Deleting an endpoint the
// server no longer knows is not an error; the flow is idempotent.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	endpoint, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	if err := h.store.DeleteSubscriptionByEndpoint(c.Request.Context(), endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
