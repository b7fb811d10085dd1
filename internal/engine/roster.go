package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dutydesk/internal/domain"
	"dutydesk/internal/events"
	"dutydesk/internal/schedule"
)

// ScheduleEntryCreateOptions are parameters for planning a piece of work.
type ScheduleEntryCreateOptions struct {
	ID       string
	AgentID  string
	ClientID string
	Label    string
	Kind     string
	StartAt  string
	EndAt    string
	ActorID  string
}

func (e Engine) CreateScheduleEntry(ctx context.Context, opts ScheduleEntryCreateOptions) (domain.ScheduleEntry, error) {
	if opts.AgentID == "" {
		return domain.ScheduleEntry{}, errors.New("agent_id is required")
	}
	if opts.Label == "" {
		return domain.ScheduleEntry{}, errors.New("label is required")
	}
	if opts.Kind == "" {
		opts.Kind = "single-assignment"
	}
	if opts.Kind != "single-assignment" && opts.Kind != "multi-day-activity" {
		return domain.ScheduleEntry{}, fmt.Errorf("invalid entry kind %q", opts.Kind)
	}
	if _, err := e.Repo.GetAgent(ctx, opts.AgentID); err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("agent %s: %w", opts.AgentID, err)
	}
	start, err := time.Parse(time.RFC3339, opts.StartAt)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("invalid start_at %q: %w", opts.StartAt, err)
	}
	end, err := time.Parse(time.RFC3339, opts.EndAt)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("invalid end_at %q: %w", opts.EndAt, err)
	}
	if end.Before(start) {
		return domain.ScheduleEntry{}, ErrInvalidDateRange
	}
	var clientID *string
	if opts.ClientID != "" {
		if _, err := e.Repo.GetClient(ctx, opts.ClientID); err != nil {
			return domain.ScheduleEntry{}, fmt.Errorf("client %s: %w", opts.ClientID, err)
		}
		clientID = &opts.ClientID
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	entry := domain.ScheduleEntry{
		ID:        id,
		AgentID:   opts.AgentID,
		ClientID:  clientID,
		Label:     opts.Label,
		Kind:      opts.Kind,
		StartAt:   start.UTC().Format(time.RFC3339),
		EndAt:     end.UTC().Format(time.RFC3339),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ScheduleEntry{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertScheduleEntry(ctx, tx, entry); err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("insert schedule entry: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "roster.entry.created", "schedule_entry", entry.ID, opts.ActorID, events.EventPayload{
		"agent_id": entry.AgentID,
		"label":    entry.Label,
	}); err != nil {
		return domain.ScheduleEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ScheduleEntry{}, err
	}
	return e.Repo.GetScheduleEntry(ctx, entry.ID)
}

// AgentSchedule lists one agent's entries in start order, across all months.
func (e Engine) AgentSchedule(ctx context.Context, agentID string) ([]domain.ScheduleEntry, error) {
	if _, err := e.Repo.GetAgent(ctx, agentID); err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}
	return e.Repo.ListEntriesForAgent(ctx, agentID)
}

// RosterEntry pairs a schedule entry with its clamped display range inside
// the queried month.
type RosterEntry struct {
	domain.ScheduleEntry
	Display schedule.DayRange `json:"display"`
}

// MonthlyRoster returns every entry overlapping the month, with display
// ranges clamped to it. Membership is computed from the date range alone.
func (e Engine) MonthlyRoster(ctx context.Context, year int, month time.Month) ([]RosterEntry, error) {
	monthStart, monthEnd := schedule.MonthBounds(year, month)
	entries, err := e.Repo.ListEntriesOverlapping(ctx, monthStart.Format(time.RFC3339), monthEnd.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	var res []RosterEntry
	for _, entry := range entries {
		start, end, err := parseEntryRange(entry)
		if err != nil {
			return nil, err
		}
		if !schedule.Overlaps(start, end, monthStart, monthEnd) {
			continue
		}
		res = append(res, RosterEntry{
			ScheduleEntry: entry,
			Display:       schedule.DisplayRange(start, end, year, month),
		})
	}
	return res, nil
}

// DailyWorkload aggregates per-day severity counts across the whole agent
// roster for the queried month.
func (e Engine) DailyWorkload(ctx context.Context, year int, month time.Month) (map[int]schedule.DayCounts, error) {
	agentIDs, err := e.Repo.AgentIDs(ctx)
	if err != nil {
		return nil, err
	}
	monthStart, monthEnd := schedule.MonthBounds(year, month)
	entries, err := e.Repo.ListEntriesOverlapping(ctx, monthStart.Format(time.RFC3339), monthEnd.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	spans := make([]schedule.WorkSpan, 0, len(entries))
	for _, entry := range entries {
		start, end, err := parseEntryRange(entry)
		if err != nil {
			return nil, err
		}
		spans = append(spans, schedule.WorkSpan{AgentID: entry.AgentID, Start: start, End: end})
	}
	return schedule.AggregateMonth(spans, agentIDs, year, month, e.Config.LongDay()), nil
}

func parseEntryRange(entry domain.ScheduleEntry) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, entry.StartAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("entry %s: invalid start_at: %w", entry.ID, err)
	}
	end, err := time.Parse(time.RFC3339, entry.EndAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("entry %s: invalid end_at: %w", entry.ID, err)
	}
	return start, end, nil
}
