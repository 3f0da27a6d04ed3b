package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domain "signalcore/internal/core/domain/telemetry"
)

// derivationService implements the slow path's per-record work: read the
// raw blob, advance conversation state for its session (skipping work
// already applied), and derive metric points from the decoded event.
type derivationService struct {
	rawStore     domain.RawStoreRepository
	derivedStore domain.DerivedStoreRepository
	metrics      domain.MetricsStoreRepository
	sharedState  domain.SharedStateRepository
	transactor   domain.Transactor
	codec        domain.Codec
	logger       *slog.Logger
}

// NewDerivationService returns the slow-path DerivationService.
func NewDerivationService(
	rawStore domain.RawStoreRepository,
	derivedStore domain.DerivedStoreRepository,
	metrics domain.MetricsStoreRepository,
	sharedState domain.SharedStateRepository,
	transactor domain.Transactor,
	codec domain.Codec,
	logger *slog.Logger,
) domain.DerivationService {
	return &derivationService{
		rawStore:     rawStore,
		derivedStore: derivedStore,
		metrics:      metrics,
		sharedState:  sharedState,
		transactor:   transactor,
		codec:        codec,
		logger:       logger,
	}
}

// ApplyRecord reads the raw row the CDC record points at, advances the
// session's Conversation only if this row hasn't been applied yet, appends
// a shape-only Turn, and records the derived metric points. A row that has
// already been trimmed from the raw store is logged and skipped rather than
// failing the whole worker — the CDC stream is allowed to run ahead of raw
// retention by design.
func (s *derivationService) ApplyRecord(ctx context.Context, record *domain.CDCRecord) error {
	raw, err := s.rawStore.GetByRowID(ctx, record.Platform, record.RawRowID)
	if err != nil {
		if err == domain.ErrRawRowTrimmed {
			s.logger.Warn("raw row trimmed before derivation", "raw_row_id", record.RawRowID)
			return nil
		}
		return fmt.Errorf("derivation: get raw row %d: %w", record.RawRowID, err)
	}

	event, err := s.codec.Decode(raw.EventData)
	if err != nil {
		return fmt.Errorf("derivation: decode raw row %d: %w", record.RawRowID, err)
	}

	return s.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		conv, err := s.derivedStore.GetConversation(txCtx, raw.SessionID)
		if err != nil {
			return err
		}
		if conv == nil {
			conv = &domain.Conversation{
				SessionID: raw.SessionID,
				Platform:  raw.Platform,
				StartedAt: event.Timestamp,
			}
		}

		// Idempotence: a CDC record can be redelivered; only advance state
		// for rows strictly newer than the last one this session applied.
		if raw.RowID <= conv.LastProcessedRowID {
			return nil
		}

		applyEventToConversation(conv, event)
		conv.LastActivityAt = event.Timestamp
		conv.LastProcessedRowID = raw.RowID
		if err := s.derivedStore.UpsertConversation(txCtx, conv); err != nil {
			return err
		}

		// Tool events do not advance TurnCount, so the index counts every
		// turn-producing event; otherwise a tool turn would reuse the
		// preceding user turn's index and be dropped by AppendTurn.
		if turn := turnForEvent(raw.SessionID, conv.TurnCount+conv.ToolInvocationsCount, event); turn != nil {
			if err := s.derivedStore.AppendTurn(txCtx, turn); err != nil {
				return err
			}
		}

		agg := &domain.SessionAggregate{
			SessionID:      raw.SessionID,
			Platform:       raw.Platform,
			LastActivityAt: event.Timestamp,
			EventCount:     conv.TurnCount + conv.ToolInvocationsCount,
		}
		if err := s.derivedStore.UpsertSessionAggregate(txCtx, agg); err != nil {
			return err
		}

		points := metricPointsForEvent(raw.SessionID, event)
		if len(points) > 0 {
			if err := s.metrics.RecordBatch(txCtx, points); err != nil {
				return err
			}
		}

		return s.bumpSharedCounters(txCtx, raw.SessionID, event)
	})
}

// applyEventToConversation mutates conv's running counters in place based
// on event's type; this is the only place conversation-state derivation
// rules live.
func applyEventToConversation(conv *domain.Conversation, event *domain.Event) {
	switch event.EventType {
	case domain.EventTypeUserPromptSubmit:
		conv.UserMessageCount++
		conv.TurnCount++
		conv.InputTokens += tokenEstimate(event.Payload, "prompt")
	case domain.EventTypeAssistantReply:
		conv.AssistantMessageCount++
		conv.TurnCount++
		conv.OutputTokens += tokenEstimate(event.Payload, "response")
	case domain.EventTypePreToolUse, domain.EventTypePostToolUse:
		conv.ToolInvocationsCount++
	}
}

// turnForEvent returns the shape-only Turn record for event, or nil for
// event types that don't correspond to a conversational turn.
func turnForEvent(sessionID string, turnIndex int64, event *domain.Event) *domain.Turn {
	var role domain.Role
	switch event.EventType {
	case domain.EventTypeUserPromptSubmit:
		role = domain.RoleUser
	case domain.EventTypeAssistantReply:
		role = domain.RoleAssistant
	case domain.EventTypePreToolUse, domain.EventTypePostToolUse:
		role = domain.RoleTool
	default:
		return nil
	}

	turn := &domain.Turn{
		SessionID:   sessionID,
		TurnIndex:   turnIndex,
		Role:        role,
		Timestamp:   event.Timestamp,
		LengthChars: payloadLength(event.Payload),
	}
	if name, ok := event.Payload["tool_name"].(string); ok {
		turn.ToolName = &name
	}
	return turn
}

// metricPointsForEvent derives the per-event metric samples: a per-tool
// invocation counter named after the tool, a prompt-length sample off
// user_prompt_submit, and token counters per prompt/reply.
func metricPointsForEvent(sessionID string, event *domain.Event) []*domain.MetricPoint {
	sid := sessionID
	switch event.EventType {
	case domain.EventTypePreToolUse, domain.EventTypePostToolUse:
		toolName, _ := event.Payload["tool_name"].(string)
		if toolName == "" {
			return nil
		}
		return []*domain.MetricPoint{{
			Category:  domain.MetricCategoryTools,
			Name:      strings.ToLower(toolName),
			SessionID: &sid,
			Value:     1,
			Timestamp: event.Timestamp,
		}}
	case domain.EventTypeUserPromptSubmit:
		points := []*domain.MetricPoint{{
			Category:  domain.MetricCategoryTokens,
			Name:      "input_tokens",
			SessionID: &sid,
			Value:     float64(tokenEstimate(event.Payload, "prompt")),
			Timestamp: event.Timestamp,
		}}
		if length, ok := event.Payload["prompt_length"].(float64); ok {
			points = append(points, &domain.MetricPoint{
				Category:  domain.MetricCategoryPrompting,
				Name:      "length",
				SessionID: &sid,
				Value:     length,
				Timestamp: event.Timestamp,
			})
		}
		return points
	case domain.EventTypeAssistantReply:
		return []*domain.MetricPoint{{
			Category:  domain.MetricCategoryTokens,
			Name:      "output_tokens",
			SessionID: &sid,
			Value:     float64(tokenEstimate(event.Payload, "response")),
			Timestamp: event.Timestamp,
		}}
	default:
		return nil
	}
}

// bumpSharedCounters advances both the per-session running counters (kept
// for future per-session/per-platform breakdowns) and the global running
// counters the composite updater reads directly, so that job's cost stays
// fixed regardless of how many sessions exist.
func (s *derivationService) bumpSharedCounters(ctx context.Context, sessionID string, event *domain.Event) error {
	switch event.EventType {
	case domain.EventTypePostToolUse:
		if _, err := s.sharedState.IncrCounter(ctx, domain.SessionCounterKey(sessionID, "tool_invocations"), 1); err != nil {
			return err
		}
		if _, err := s.sharedState.IncrCounter(ctx, domain.GlobalKeyToolInvocations, 1); err != nil {
			return err
		}
		if accepted, ok := event.Payload["accepted"].(bool); ok && accepted {
			if _, err := s.sharedState.IncrCounter(ctx, domain.SessionCounterKey(sessionID, "tool_acceptances"), 1); err != nil {
				return err
			}
			if _, err := s.sharedState.IncrCounter(ctx, domain.GlobalKeyToolAcceptances, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// tokenEstimate reads a pre-computed token count off payload if the capture
// agent supplied one, falling back to a character-based estimate (roughly
// 4 characters per token) so the counters are populated even for agents
// that don't report token counts directly.
func tokenEstimate(payload map[string]interface{}, field string) int64 {
	if v, ok := payload[field+"_tokens"].(float64); ok {
		return int64(v)
	}
	if text, ok := payload[field].(string); ok {
		return int64(len(text)/4) + 1
	}
	return 0
}

func payloadLength(payload map[string]interface{}) int {
	for _, key := range []string{"prompt", "response", "text"} {
		if text, ok := payload[key].(string); ok {
			return len(text)
		}
	}
	return 0
}
