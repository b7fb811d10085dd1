package server

import (
	"dutydesk/internal/domain"
	"dutydesk/internal/engine"
	"dutydesk/internal/schedule"
)

// Request payloads

type CreateClientRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type CreateAgentRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
	Role string  `json:"role,omitempty" enum:"admin,partner,agent"`
}

type GroupAssignmentRequest struct {
	AgentID   string   `json:"agent_id"`
	ClientIDs []string `json:"client_ids"`
}

type CreateObligationRequest struct {
	ID               *string                  `json:"id,omitempty"`
	Title            string                   `json:"title"`
	Pattern          string                   `json:"pattern" enum:"monthly,quarterly,half-yearly,yearly"`
	StartDate        string                   `json:"start_date" format:"date"`
	ClientIDs        []string                 `json:"client_ids,omitempty"`
	GroupAssignments []GroupAssignmentRequest `json:"group_assignments,omitempty"`
}

type UpdateObligationRequest struct {
	Title            *string                  `json:"title,omitempty"`
	Pattern          *string                  `json:"pattern,omitempty" enum:"monthly,quarterly,half-yearly,yearly"`
	StartDate        *string                  `json:"start_date,omitempty" format:"date"`
	ClientIDs        []string                 `json:"client_ids,omitempty"`
	GroupAssignments []GroupAssignmentRequest `json:"group_assignments,omitempty"`
}

type ToggleCellRequest struct {
	Done bool `json:"done"`
}

type CreateScheduleEntryRequest struct {
	ID       *string `json:"id,omitempty"`
	AgentID  string  `json:"agent_id"`
	ClientID *string `json:"client_id,omitempty"`
	Label    string  `json:"label"`
	Kind     string  `json:"kind,omitempty" enum:"single-assignment,multi-day-activity"`
	StartAt  string  `json:"start_at" format:"date-time"`
	EndAt    string  `json:"end_at" format:"date-time"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty" enum:"admin,partner,agent"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type ObligationResponse struct {
	ID               string                   `json:"id"`
	Title            string                   `json:"title"`
	Pattern          string                   `json:"pattern" enum:"monthly,quarterly,half-yearly,yearly"`
	StartDate        string                   `json:"start_date" format:"date"`
	ClientIDs        []string                 `json:"client_ids"`
	GroupAssignments []GroupAssignmentRequest `json:"group_assignments"`
	CreatedAt        string                   `json:"created_at" format:"date-time"`
	UpdatedAt        string                   `json:"updated_at" format:"date-time"`
}

type NextOccurrenceResponse struct {
	ObligationID string `json:"obligation_id"`
	On           string `json:"on" format:"date"`
	NextDue      string `json:"next_due" format:"date"`
}

type PeriodResponse struct {
	Key       string `json:"key"`
	IsPast    bool   `json:"is_past"`
	IsCurrent bool   `json:"is_current"`
	IsFuture  bool   `json:"is_future"`
}

type MatrixResponse struct {
	ObligationID string           `json:"obligation_id"`
	Title        string           `json:"title"`
	Pattern      string           `json:"pattern"`
	ClientIDs    []string         `json:"client_ids"`
	Periods      []PeriodResponse `json:"periods"`
	Cells        map[string]bool  `json:"cells"`
	Rate         float64          `json:"rate"`
}

type RosterEntryResponse struct {
	domain.ScheduleEntry
	DisplayStartDay int `json:"display_start_day"`
	DisplayEndDay   int `json:"display_end_day"`
}

type WorkloadDayResponse struct {
	Day   int `json:"day"`
	Long  int `json:"long"`
	Short int `json:"short"`
	None  int `json:"none"`
}

type MeResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
	Source  string `json:"source"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func obligationResponse(o domain.Obligation) ObligationResponse {
	groups := make([]GroupAssignmentRequest, 0, len(o.GroupAssignments))
	for _, g := range o.GroupAssignments {
		groups = append(groups, GroupAssignmentRequest{AgentID: g.AgentID, ClientIDs: nonNilSlice(g.ClientIDs)})
	}
	return ObligationResponse{
		ID:               o.ID,
		Title:            o.Title,
		Pattern:          o.Pattern,
		StartDate:        o.StartDate,
		ClientIDs:        nonNilSlice(o.DirectClientIDs),
		GroupAssignments: groups,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func mapObligations(items []domain.Obligation) []ObligationResponse {
	res := make([]ObligationResponse, 0, len(items))
	for _, o := range items {
		res = append(res, obligationResponse(o))
	}
	return res
}

func periodResponses(periods []schedule.Period) []PeriodResponse {
	res := make([]PeriodResponse, 0, len(periods))
	for _, p := range periods {
		res = append(res, PeriodResponse{
			Key:       p.Key,
			IsPast:    p.IsPast,
			IsCurrent: p.IsCurrent,
			IsFuture:  p.IsFuture,
		})
	}
	return res
}

func matrixResponse(m engine.MatrixView) MatrixResponse {
	return MatrixResponse{
		ObligationID: m.ObligationID,
		Title:        m.Title,
		Pattern:      m.Pattern,
		ClientIDs:    nonNilSlice(m.ClientIDs),
		Periods:      periodResponses(m.Periods),
		Cells:        m.Cells,
		Rate:         m.Rate,
	}
}

func rosterEntryResponses(items []engine.RosterEntry) []RosterEntryResponse {
	res := make([]RosterEntryResponse, 0, len(items))
	for _, it := range items {
		res = append(res, RosterEntryResponse{
			ScheduleEntry:   it.ScheduleEntry,
			DisplayStartDay: it.Display.StartDay,
			DisplayEndDay:   it.Display.EndDay,
		})
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    e.Payload,
	}
}

func groupAssignments(in []GroupAssignmentRequest) []domain.GroupAssignment {
	if in == nil {
		return nil
	}
	out := make([]domain.GroupAssignment, 0, len(in))
	for _, g := range in {
		out = append(out, domain.GroupAssignment{AgentID: g.AgentID, ClientIDs: g.ClientIDs})
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
