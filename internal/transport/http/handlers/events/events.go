// Package events implements the POST /events intake surface: the only
// externally-reachable mutation in the pipeline. Everything past Append
// happens asynchronously on the fast/slow paths.
package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"signalcore/internal/config"
	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/pkg/response"
	"signalcore/pkg/ulid"
)

// Handler accepts capture-agent event batches and appends them to the
// durable queue. It does not itself validate payload schema — that's the
// fast-path ingestor's job once the batch is dequeued — only the envelope
// fields required to route and dedupe the event.
type Handler struct {
	queue  domain.Queue
	cfg    *config.Config
	logger *logrus.Logger
}

// NewHandler returns the events intake handler.
func NewHandler(queue domain.Queue, cfg *config.Config, logger *logrus.Logger) *Handler {
	return &Handler{queue: queue, cfg: cfg, logger: logger}
}

// eventRequest is the wire shape of one event in a POST /events body.
type eventRequest struct {
	Platform          string                 `json:"platform" binding:"required"`
	ExternalSessionID string                 `json:"external_session_id" binding:"required"`
	HookType          string                 `json:"hook_type"`
	EventType         string                 `json:"event_type" binding:"required"`
	Timestamp         time.Time              `json:"timestamp" binding:"required"`
	Payload           map[string]interface{} `json:"payload"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// ingestRequest is the POST /events body: a batch of one or more events.
type ingestRequest struct {
	Events []eventRequest `json:"events" binding:"required,min=1,dive"`
}

type ingestResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// Ingest handles POST /events. Each event is appended to the queue and the
// call returns 202 once every append has been attempted; a failed append is
// reported per-item rather than failing the whole batch, since a capture
// agent batches events from several sessions at once. A body that does not
// parse, or in which any event lacks a required envelope field, is rejected
// whole with 400; 503 is returned when no event could be appended.
func (h *Handler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	ctx := c.Request.Context()
	var rejected []string
	accepted := 0

	for _, er := range req.Events {
		event := domain.Event{
			EventID:           ulid.New(),
			EnqueuedAt:        time.Now().UTC(),
			Platform:          domain.Platform(er.Platform),
			ExternalSessionID: er.ExternalSessionID,
			HookType:          er.HookType,
			EventType:         domain.EventType(er.EventType),
			Timestamp:         er.Timestamp,
			Payload:           er.Payload,
			Metadata:          er.Metadata,
		}

		if _, err := h.queue.Append(ctx, h.cfg.Queue.MainStream, &event); err != nil {
			h.logger.WithError(err).WithField("session_id", event.SessionID()).Error("failed to enqueue event")
			rejected = append(rejected, err.Error())
			continue
		}
		accepted++
	}

	resp := ingestResponse{
		Accepted: accepted,
		Rejected: len(rejected),
		Errors:   rejected,
	}

	if accepted == 0 && len(req.Events) > 0 {
		response.ServiceUnavailable(c, "no events could be enqueued")
		return
	}

	response.Accepted(c, resp)
}
