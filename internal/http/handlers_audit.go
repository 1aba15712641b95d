package http

import (
	"net/http"
	"strconv"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"

	"github.com/gin-gonic/gin"
)

type auditEntryResponse struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	ActionType     string         `json:"action_type"`
	Actor          string         `json:"actor"`
	TargetID       string         `json:"target_id,omitempty"`
	TargetType     string         `json:"target_type,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	Detail         string         `json:"detail,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Status         string         `json:"status"`
	Severity       string         `json:"severity"`
	Category       string         `json:"category"`
	IsSystemAction bool           `json:"is_system_action"`
	CreatedAt      time.Time      `json:"created_at"`
	RetentionDate  time.Time      `json:"retention_date"`
	IsArchived     bool           `json:"is_archived"`
	Anonymized     bool           `json:"anonymized"`
}

func toAuditEntryResponse(entry domain.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:             entry.ID,
		Action:         entry.Action,
		ActionType:     string(entry.ActionType),
		Actor:          entry.Actor,
		TargetID:       entry.TargetID,
		TargetType:     entry.TargetType,
		IPAddress:      entry.IPAddress,
		Detail:         entry.Detail,
		Metadata:       entry.Metadata,
		Status:         string(entry.Status),
		Severity:       string(entry.Severity),
		Category:       string(entry.Category),
		IsSystemAction: entry.IsSystemAction,
		CreatedAt:      entry.CreatedAt,
		RetentionDate:  entry.RetentionDate,
		IsArchived:     entry.IsArchived,
		Anonymized:     entry.Anonymized,
	}
}

func (s *Server) handleListAudit(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	filter := usecase.AuditListFilter{
		TargetID: c.Query("target_id"),
		Category: domain.AuditCategory(c.Query("category")),
		Severity: domain.AuditSeverity(c.Query("severity")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if c.Query("include_archived") == "true" {
		filter.IncludeArchived = true
	}
	entries, err := s.audit.List(c.Request.Context(), filter)
	if err != nil {
		WriteError(c, err)
		return
	}
	out := make([]auditEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = toAuditEntryResponse(entry)
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "count": len(out)})
}

func (s *Server) handleAuditStatistics(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	windowDays := 30
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "window_days must be an integer")
			return
		}
		windowDays = parsed
	}
	stats, err := s.audit.Statistics(c.Request.Context(), windowDays)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

func (s *Server) handleArchiveAudit(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	var req struct {
		OlderThanDays int `json:"older_than_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	count, err := s.audit.ArchiveOlderThan(c.Request.Context(), req.OlderThanDays)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": count})
}

func (s *Server) handleAnonymizeAudit(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		return
	}
	if err := s.audit.Anonymize(c.Request.Context(), c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"anonymized": true})
}
