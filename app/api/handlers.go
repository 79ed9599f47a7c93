package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/newsdigest/app/database"
	"github.com/lysyi3m/newsdigest/app/sources"
)

func NewHandler(sourcesCache *sources.Cache, itemRepo database.ItemRepository,
	cycleRepo database.CycleRepository, digestRepo database.DigestRepository,
	deliverer DelivererInterface) *Handler {
	return &Handler{
		sourcesCache: sourcesCache,
		itemRepo:     itemRepo,
		cycleRepo:    cycleRepo,
		digestRepo:   digestRepo,
		deliverer:    deliverer,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	health["loaded_sources"] = h.sourcesCache.GetConfigCount()

	if itemCount, err := h.itemRepo.GetItemCount(); err == nil {
		health["items"] = itemCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"loaded_sources":  h.sourcesCache.GetConfigCount(),
		"enabled_sources": len(h.sourcesCache.GetEnabledConfigs()),
	}

	if itemCount, err := h.itemRepo.GetItemCount(); err == nil {
		stats["items"] = itemCount
	}
	if cycleCount, err := h.cycleRepo.GetCycleCount(); err == nil {
		stats["cycles"] = cycleCount
	}
	if digestCount, err := h.digestRepo.GetDigestCount(); err == nil {
		stats["digests"] = digestCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.sourcesCache.GetEnabledConfigs()

	list := make([]map[string]interface{}, 0, len(configs))

	for _, config := range configs {
		sourceInfo := map[string]interface{}{
			"id":        config.ID,
			"kind":      string(config.Kind),
			"label":     config.Label,
			"enabled":   config.Settings.Enabled,
			"max_items": config.Settings.MaxItems,
		}

		if checkpoint, err := h.itemRepo.LatestCheckpoint(config.ID); err == nil && checkpoint != nil {
			sourceInfo["checkpoint"] = checkpoint.Format(time.RFC3339)
		}

		list = append(list, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) APIListCycles(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	cycles, err := h.cycleRepo.GetRecentCycles(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_cycles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(cycles))
	for _, cycle := range cycles {
		cycleInfo := map[string]interface{}{
			"id":                cycle.ID,
			"started_at":        cycle.StartedAt,
			"finished_at":       cycle.FinishedAt,
			"status":            string(cycle.Status),
			"sources_attempted": cycle.SourcesAttempted,
			"items_new":         cycle.ItemsNew,
			"digest_id":         cycle.DigestID,
			"delivery_status":   string(cycle.DeliveryStatus),
		}

		if failures, err := h.cycleRepo.GetSourceFailures(cycle.ID); err == nil && len(failures) > 0 {
			failureList := make([]map[string]string, 0, len(failures))
			for _, f := range failures {
				failureList = append(failureList, map[string]string{"source": f.SourceID, "error": f.Error})
			}
			cycleInfo["failures"] = failureList
		}

		list = append(list, cycleInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"cycles": list,
		"total":  len(list),
	})
}

func (h *Handler) APIGetDigest(c *gin.Context) {
	id := c.Param("id")

	digest, err := h.digestRepo.GetDigest(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		return
	}

	details := map[string]interface{}{
		"id":           digest.ID,
		"cycle_id":     digest.CycleID,
		"generated_at": digest.GeneratedAt,
		"subject":      digest.Subject,
		"body":         digest.Body,
		"item_count":   digest.ItemCount,
	}

	if attempts, err := h.digestRepo.GetDeliveryAttempts(id); err == nil {
		attemptList := make([]map[string]interface{}, 0, len(attempts))
		for _, a := range attempts {
			attemptList = append(attemptList, map[string]interface{}{
				"attempt":      a.Attempt,
				"attempted_at": a.AttemptedAt,
				"success":      a.Success,
				"error":        a.Error,
			})
		}
		details["delivery_attempts"] = attemptList
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIResendDigest(c *gin.Context) {
	id := c.Param("id")

	digest, err := h.digestRepo.GetDigest(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		return
	}

	if err := h.deliverer.Deliver(c.Request.Context(), digest); err != nil {
		slog.Error("Digest resend failed", "digest_id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Delivery failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Digest resent successfully",
		"digest": gin.H{
			"id":      digest.ID,
			"subject": digest.Subject,
		},
	})
}
