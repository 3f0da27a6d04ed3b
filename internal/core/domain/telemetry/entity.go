// Package telemetry defines the core domain types of the local telemetry
// pipeline: the wire Event, the compressed RawTrace row, the CDC record that
// couples the fast and slow paths, and the derived Conversation/Turn/MetricPoint
// records consumers read.
package telemetry

import (
	"time"

	"signalcore/pkg/ulid"
)

// Platform identifies the capture agent that produced an event.
type Platform string

const (
	PlatformClaude  Platform = "claude"
	PlatformCursor  Platform = "cursor"
	PlatformUnknown Platform = "unknown"
)

// EventType is an open enum: unknown values are accepted and stored,
// only downstream derivation may choose to ignore them.
type EventType string

const (
	EventTypeUserPromptSubmit EventType = "user_prompt_submit"
	EventTypeAssistantReply   EventType = "assistant_reply"
	EventTypePreToolUse       EventType = "pre_tool_use"
	EventTypePostToolUse      EventType = "post_tool_use"
	EventTypeSessionStart     EventType = "session_start"
	EventTypeSessionEnd       EventType = "session_end"
)

// Event is the wire shape emitted by capture agents.
// event_id is client-assigned and must be idempotent across retries.
type Event struct {
	EventID           ulid.ULID              `json:"event_id"`
	EnqueuedAt        time.Time              `json:"enqueued_at"`
	RetryCount        int                    `json:"retry_count"`
	Platform          Platform               `json:"platform"`
	ExternalSessionID string                 `json:"external_session_id"`
	HookType          string                 `json:"hook_type"`
	EventType         EventType              `json:"event_type"`
	Timestamp         time.Time              `json:"timestamp"`
	Payload           map[string]interface{} `json:"payload"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// SessionID derives the internal session key from platform + external id,
// keeping workspace_hash/session identifiers opaque and comparable only
// within one platform per the source's open question.
func (e *Event) SessionID() string {
	return string(e.Platform) + ":" + e.ExternalSessionID
}

// RawTrace is one append-only, never-mutated row. Rows for different
// platforms live in different tables (see RawTraceTableName); Platform is
// still carried as a column so a decoded row is self-describing.
type RawTrace struct {
	RowID         int64     `json:"row_id" gorm:"column:row_id;primaryKey;autoIncrement"`
	EventID       ulid.ULID `json:"event_id" gorm:"column:event_id;uniqueIndex;type:text"`
	Platform      Platform  `json:"platform" gorm:"column:platform;index"`
	SessionID     string    `json:"session_id" gorm:"column:session_id;index"`
	WorkspaceHash string    `json:"workspace_hash" gorm:"column:workspace_hash"`
	EventType     EventType `json:"event_type" gorm:"column:event_type"`
	ItemKey       *string   `json:"item_key,omitempty" gorm:"column:item_key"`
	Timestamp     time.Time `json:"timestamp" gorm:"column:timestamp;index"`
	EventData     []byte    `json:"-" gorm:"column:event_data"`
	Compression   string    `json:"compression" gorm:"column:compression"`
	ByteSize      int       `json:"byte_size" gorm:"column:byte_size"`
}

// RawTraceTableName returns the raw-store table backing one platform, e.g.
// "claude_raw_traces". RawTrace carries no fixed TableName(): row_id is
// per-platform monotonic, so every repository call is scoped to a single
// platform's table rather than a shared one.
func RawTraceTableName(platform Platform) string {
	return string(platform) + "_raw_traces"
}

// CDCRecord is emitted after a raw row is durably committed.
// Every committed raw row produces exactly one CDC record; consumers must
// dedupe on RawRowID since redelivery at the queue layer is at-least-once.
type CDCRecord struct {
	RawRowID  int64     `json:"raw_row_id"`
	Platform  Platform  `json:"platform"`
	SessionID string    `json:"session_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-session aggregate derived by the slow path.
// LastProcessedRowID is monotonic; counters are sums over all rows it has
// consumed for this session.
type Conversation struct {
	SessionID             string    `json:"session_id" gorm:"column:session_id;primaryKey"`
	Platform              Platform  `json:"platform" gorm:"column:platform"`
	WorkspaceHash         string    `json:"workspace_hash" gorm:"column:workspace_hash"`
	StartedAt             time.Time `json:"started_at" gorm:"column:started_at"`
	LastActivityAt        time.Time `json:"last_activity_at" gorm:"column:last_activity_at;index"`
	TurnCount             int64     `json:"turn_count" gorm:"column:turn_count"`
	UserMessageCount      int64     `json:"user_message_count" gorm:"column:user_message_count"`
	AssistantMessageCount int64     `json:"assistant_message_count" gorm:"column:assistant_message_count"`
	InputTokens           int64     `json:"input_tokens" gorm:"column:input_tokens"`
	OutputTokens          int64     `json:"output_tokens" gorm:"column:output_tokens"`
	ToolInvocationsCount  int64     `json:"tool_invocations_count" gorm:"column:tool_invocations_count"`
	LastProcessedRowID    int64     `json:"last_processed_row_id" gorm:"column:last_processed_row_id"`
}

func (Conversation) TableName() string { return "conversations" }

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single shape-only record of one conversational exchange — no
// message text is stored, only shape.
type Turn struct {
	SessionID   string    `json:"session_id" gorm:"column:session_id;primaryKey;index"`
	TurnIndex   int64     `json:"turn_index" gorm:"column:turn_index;primaryKey"`
	Role        Role      `json:"role" gorm:"column:role"`
	Timestamp   time.Time `json:"timestamp" gorm:"column:timestamp"`
	LengthChars int       `json:"length_chars" gorm:"column:length_chars"`
	TokensIn    int64     `json:"tokens_in" gorm:"column:tokens_in"`
	TokensOut   int64     `json:"tokens_out" gorm:"column:tokens_out"`
	ToolName    *string   `json:"tool_name,omitempty" gorm:"column:tool_name"`
}

func (Turn) TableName() string { return "turns" }

// MetricCategory groups metric points for retention policy purposes.
type MetricCategory string

const (
	MetricCategoryPrompting MetricCategory = "prompting"
	MetricCategoryTools     MetricCategory = "tools"
	MetricCategoryTokens    MetricCategory = "tokens"
	MetricCategoryComposite MetricCategory = "composite"
)

// MetricPoint is one time-series sample.
type MetricPoint struct {
	ID        int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Category  MetricCategory `json:"category" gorm:"column:category;index:idx_metric_lookup;uniqueIndex:idx_metric_point_key"`
	Name      string         `json:"name" gorm:"column:name;index:idx_metric_lookup;uniqueIndex:idx_metric_point_key"`
	SessionID *string        `json:"session_id,omitempty" gorm:"column:session_id;index:idx_metric_lookup;uniqueIndex:idx_metric_point_key"`
	Value     float64        `json:"value" gorm:"column:value"`
	Timestamp time.Time      `json:"timestamp" gorm:"column:timestamp;index;uniqueIndex:idx_metric_point_key"`
}

func (MetricPoint) TableName() string { return "metric_points" }

// SessionAggregate snapshots coarse per-session counters for fast listing
// (derived store reader index on (platform, last_activity_at)).
type SessionAggregate struct {
	SessionID      string    `json:"session_id" gorm:"column:session_id;primaryKey"`
	Platform       Platform  `json:"platform" gorm:"column:platform;index:idx_platform_activity"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"column:last_activity_at;index:idx_platform_activity"`
	EventCount     int64     `json:"event_count" gorm:"column:event_count"`
}

func (SessionAggregate) TableName() string { return "session_aggregates" }

// Shared state key names, process-wide. Per-session counter keys are
// formatted with SessionCounterKey.
const (
	SharedKeyLastCompositeCalcAt = "signalcore:last_composite_calc_at"
	SharedKeyCompositeLock       = "signalcore:lock:composite"

	// Global running counters the slow path bumps alongside the per-session
	// ones, so the composite updater can read a fixed, O(1) set of keys
	// instead of scanning every session.
	GlobalKeyToolInvocations = "signalcore:global:tool_invocations"
	GlobalKeyToolAcceptances = "signalcore:global:tool_acceptances"
)

// SessionCounterKey formats the shared-state key for a per-session running
// counter (success, acceptance, tool invocations).
func SessionCounterKey(sessionID, counter string) string {
	return "signalcore:session:" + sessionID + ":" + counter
}
