package domain

// Client is a firm client tracked for per-period completion.
type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Agent is a person performing scheduled work.
type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role" enum:"admin,partner,agent"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// GroupAssignment maps an agent to the clients they cover for an obligation.
type GroupAssignment struct {
	AgentID   string   `json:"agent_id"`
	ClientIDs []string `json:"client_ids"`
}

// Obligation is a recurring duty tracked for completion across assigned
// clients. The next occurrence is derived from StartDate, Pattern and today;
// it is never stored authoritatively.
type Obligation struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Pattern          string            `json:"pattern" enum:"monthly,quarterly,half-yearly,yearly"`
	StartDate        string            `json:"start_date" format:"date"`
	DirectClientIDs  []string          `json:"direct_client_ids,omitempty"`
	GroupAssignments []GroupAssignment `json:"group_assignments,omitempty"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
	UpdatedAt        string            `json:"updated_at" format:"date-time"`
}

// CompletionCell is one (obligation, client, period) checkbox. Cells are
// created lazily on first toggle; a missing cell reads as false.
type CompletionCell struct {
	ObligationID string `json:"obligation_id"`
	ClientID     string `json:"client_id"`
	PeriodKey    string `json:"period_key"`
	Done         bool   `json:"done"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

// ScheduleEntry is a date-ranged piece of planned work. The start/end range is
// the single source of truth for month membership; no month tag is stored.
type ScheduleEntry struct {
	ID        string  `json:"id"`
	AgentID   string  `json:"agent_id"`
	ClientID  *string `json:"client_id,omitempty"`
	Label     string  `json:"label"`
	Kind      string  `json:"kind" enum:"single-assignment,multi-day-activity"`
	StartAt   string  `json:"start_at" format:"date-time"`
	EndAt     string  `json:"end_at" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
