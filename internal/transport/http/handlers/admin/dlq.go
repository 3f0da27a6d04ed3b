// Package admin exposes operator-facing actions for the telemetry engine:
// inspecting and replaying dead-lettered events.
package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	domain "signalcore/internal/core/domain/telemetry"
	appErrors "signalcore/pkg/errors"
	"signalcore/pkg/response"
)

// DLQHandler exposes the dead-letter queue's list/replay operator actions.
type DLQHandler struct {
	dlq    domain.DLQRepository
	logger *logrus.Logger
}

// NewDLQHandler returns the DLQ admin handler.
func NewDLQHandler(dlq domain.DLQRepository, logger *logrus.Logger) *DLQHandler {
	return &DLQHandler{dlq: dlq, logger: logger}
}

// dlqEntryResponse is the wire shape of one listed DLQ entry.
type dlqEntryResponse struct {
	EventID      string `json:"event_id"`
	Platform     string `json:"platform"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Reason       string `json:"reason"`
	MovedAt      string `json:"moved_at"`
}

// List handles GET /admin/dlq?limit=100.
func (h *DLQHandler) List(c *gin.Context) {
	limit := int64(100)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.BadRequest(c, "limit must be a positive integer", "")
			return
		}
		limit = parsed
	}

	entries, err := h.dlq.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list dlq entries")
		response.InternalServerError(c, "failed to list dlq entries")
		return
	}

	out := make([]dlqEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = dlqEntryResponse{
			EventID:      e.Event.EventID.String(),
			Platform:     string(e.Event.Platform),
			ErrorCode:    e.ErrorCode,
			ErrorMessage: appErrors.GetErrorMessage(e.ErrorCode),
			Reason:       e.Reason,
			MovedAt:      e.MovedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	response.Success(c, gin.H{"entries": out})
}

// replayRequest narrows a POST /admin/dlq/replay to matching entries; an
// empty body replays everything up to the default limit.
type replayRequest struct {
	Platform  string `json:"platform"`
	ErrorCode string `json:"error_code"`
	Limit     int64  `json:"limit"`
}

// Replay handles POST /admin/dlq/replay.
func (h *DLQHandler) Replay(c *gin.Context) {
	var req replayRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body", err.Error())
			return
		}
	}

	filter := domain.DLQFilter{
		Platform:  domain.Platform(req.Platform),
		ErrorCode: req.ErrorCode,
		Limit:     req.Limit,
	}

	n, err := h.dlq.Replay(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("failed to replay dlq entries")
		response.InternalServerError(c, "failed to replay dlq entries")
		return
	}

	h.logger.WithField("count", n).Info("operator replayed dlq entries")
	response.Success(c, gin.H{"replayed": n})
}
