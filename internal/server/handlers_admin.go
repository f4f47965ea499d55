package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleAdminLog(c *gin.Context) {
	lines, err := h.library.ReadTransactionLog(sessionFrom(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (h *httpHandler) handleAdminRebuild(c *gin.Context) {
	result, err := h.library.Rebuild(sessionFrom(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"inserts":    result.Inserts,
		"modifies":   result.Modifies,
		"deletes":    result.Deletes,
		"errors":     result.Errors,
		"totalLines": result.TotalLines,
	})
}

func (h *httpHandler) handleAdminStats(c *gin.Context) {
	stats, err := h.library.StorageStats(sessionFrom(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) handleAdminAnalytics(c *gin.Context) {
	session := sessionFrom(c)

	top := 10
	if raw := c.Query("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		top = parsed
	}
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		days = parsed
	}

	queries, err := h.library.TopSearchQueries(session, top)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	perDay, err := h.library.RecordsPerDay(session)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	active, err := h.library.ActiveUsers(session, days)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"topSearchQueries": queries,
		"recordsPerDay":    perDay,
		"activeUsers":      active,
	})
}
