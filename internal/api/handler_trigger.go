package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type runSummary struct {
	NotificationsSent    int   `json:"notifications_sent"`
	SubscriptionsCleaned int64 `json:"subscriptions_cleaned"`
	LogsCleaned          int64 `json:"logs_cleaned"`
}

// RunNotifications is the external scheduler's entry point: it runs one
// notification cycle plus both retention sweeps and reports the counts.
// The trigger is authenticated by exact comparison against the configured
// bearer secret.
func (h *Handler) RunNotifications(c *gin.Context) {
	if !h.enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications are disabled"})
		return
	}

	token, isBearer := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !isBearer || h.notifier.TriggerToken == "" || token != h.notifier.TriggerToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid trigger token"})
		return
	}

	ctx := c.Request.Context()
	sent := h.engine.RunCycle(ctx)
	subs, logs := h.cleanup.Run(ctx)

	c.JSON(http.StatusOK, runSummary{
		NotificationsSent:    sent,
		SubscriptionsCleaned: subs,
		LogsCleaned:          logs,
	})
}
