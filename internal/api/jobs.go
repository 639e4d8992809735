package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// authorizeJob checks the bearer token on scheduled-job endpoints. In
// development the check is skipped unless enforceInDev is set and a secret
// exists.
func (h *Handler) authorizeJob(c *gin.Context, enforceInDev bool) bool {
	if h.cfg.Development && (!enforceInDev || h.cfg.CronSecret == "") {
		return true
	}

	if h.cfg.CronSecret == "" {
		h.logger.Error("CRON_SECRET is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cron secret not configured"})
		return false
	}

	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.CronSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	return true
}

// reconcilePayments runs one reconciliation sweep
func (h *Handler) reconcilePayments(c *gin.Context) {
	if !h.authorizeJob(c, false) {
		return
	}

	summary, err := h.deps.Reconciler.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("Reconciliation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Reconciliation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"scanned":   summary.Scanned,
		"recovered": summary.Recovered,
		"failed":    summary.Failed,
		"details":   summary.Details,
	})
}

// processEvents drains one batch of pending events
func (h *Handler) processEvents(c *gin.Context) {
	if !h.authorizeJob(c, true) {
		return
	}

	results, err := h.deps.Events.ProcessPending(c.Request.Context())
	if err != nil {
		h.logger.Error("Event processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}

	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No pending events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": len(results),
		"details":   results,
	})
}
