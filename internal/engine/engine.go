package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dutydesk/internal/config"
	"dutydesk/internal/domain"
	"dutydesk/internal/events"
	"dutydesk/internal/repo"
	"dutydesk/internal/schedule"
)

const dateLayout = "2006-01-02"

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) CreateClient(ctx context.Context, id, name, actorID string) (domain.Client, error) {
	if name == "" {
		return domain.Client{}, errors.New("name is required")
	}
	if id == "" {
		id = uuid.New().String()
	}
	c := domain.Client{
		ID:        id,
		Name:      name,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertClient(ctx, tx, c); err != nil {
		return domain.Client{}, fmt.Errorf("insert client: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "client.created", "client", c.ID, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (e Engine) CreateAgent(ctx context.Context, id, name, role, actorID string) (domain.Agent, error) {
	if name == "" {
		return domain.Agent{}, errors.New("name is required")
	}
	if role == "" {
		role = "agent"
	}
	if id == "" {
		id = uuid.New().String()
	}
	a := domain.Agent{
		ID:        id,
		Name:      name,
		Role:      role,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Agent{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAgent(ctx, tx, a); err != nil {
		return domain.Agent{}, fmt.Errorf("insert agent: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "agent.created", "agent", a.ID, actorID, events.EventPayload{"name": a.Name, "role": a.Role}); err != nil {
		return domain.Agent{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Agent{}, err
	}
	return a, nil
}

// ObligationCreateOptions are parameters for creating a recurring obligation.
type ObligationCreateOptions struct {
	ID               string
	Title            string
	Pattern          string
	StartDate        string
	DirectClientIDs  []string
	GroupAssignments []domain.GroupAssignment
	ActorID          string
}

// CreateObligation validates the cadence and assignments once, at this
// boundary; the pure schedule functions below it assume validated input.
func (e Engine) CreateObligation(ctx context.Context, opts ObligationCreateOptions) (domain.Obligation, error) {
	if opts.Title == "" {
		return domain.Obligation{}, errors.New("title is required")
	}
	if _, err := schedule.ParsePattern(opts.Pattern); err != nil {
		return domain.Obligation{}, err
	}
	if _, err := time.Parse(dateLayout, opts.StartDate); err != nil {
		return domain.Obligation{}, fmt.Errorf("invalid start_date %q: %w", opts.StartDate, err)
	}
	if err := e.checkAssignmentRefs(ctx, opts.DirectClientIDs, opts.GroupAssignments); err != nil {
		return domain.Obligation{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	o := domain.Obligation{
		ID:               id,
		Title:            opts.Title,
		Pattern:          opts.Pattern,
		StartDate:        opts.StartDate,
		DirectClientIDs:  opts.DirectClientIDs,
		GroupAssignments: opts.GroupAssignments,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Obligation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertObligation(ctx, tx, o); err != nil {
		return domain.Obligation{}, fmt.Errorf("insert obligation: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "obligation.created", "obligation", o.ID, opts.ActorID, events.EventPayload{
		"title":   o.Title,
		"pattern": o.Pattern,
	}); err != nil {
		return domain.Obligation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Obligation{}, err
	}
	return e.Repo.GetObligation(ctx, o.ID)
}

// ObligationUpdateOptions encapsulates allowed edits. Nil slices leave the
// corresponding assignments untouched.
type ObligationUpdateOptions struct {
	ID               string
	Title            string
	Pattern          string
	StartDate        string
	DirectClientIDs  []string
	GroupAssignments []domain.GroupAssignment
	ActorID          string
}

func (e Engine) UpdateObligation(ctx context.Context, opts ObligationUpdateOptions) (domain.Obligation, error) {
	o, err := e.Repo.GetObligation(ctx, opts.ID)
	if err != nil {
		return o, err
	}
	if opts.Title != "" {
		o.Title = opts.Title
	}
	if opts.Pattern != "" {
		if _, err := schedule.ParsePattern(opts.Pattern); err != nil {
			return o, err
		}
		o.Pattern = opts.Pattern
	}
	if opts.StartDate != "" {
		if _, err := time.Parse(dateLayout, opts.StartDate); err != nil {
			return o, fmt.Errorf("invalid start_date %q: %w", opts.StartDate, err)
		}
		o.StartDate = opts.StartDate
	}
	if opts.DirectClientIDs != nil {
		o.DirectClientIDs = opts.DirectClientIDs
	}
	if opts.GroupAssignments != nil {
		o.GroupAssignments = opts.GroupAssignments
	}
	if err := e.checkAssignmentRefs(ctx, o.DirectClientIDs, o.GroupAssignments); err != nil {
		return o, err
	}
	o.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateObligation(ctx, tx, o); err != nil {
		return o, err
	}
	if err := e.Events.Append(ctx, tx, "obligation.updated", "obligation", o.ID, opts.ActorID, events.EventPayload{
		"title":   o.Title,
		"pattern": o.Pattern,
	}); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	return e.Repo.GetObligation(ctx, o.ID)
}

// DeleteObligation removes an obligation; assignment rows and completion
// cells cascade with it. The row delete and the audit event commit together.
func (e Engine) DeleteObligation(ctx context.Context, id, actorID string) error {
	if _, err := e.Repo.GetObligation(ctx, id); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteObligation(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "obligation.deleted", "obligation", id, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) checkAssignmentRefs(ctx context.Context, direct []string, groups []domain.GroupAssignment) error {
	for _, clientID := range direct {
		if _, err := e.Repo.GetClient(ctx, clientID); err != nil {
			return fmt.Errorf("client %s: %w", clientID, err)
		}
	}
	for _, g := range groups {
		if _, err := e.Repo.GetAgent(ctx, g.AgentID); err != nil {
			return fmt.Errorf("agent %s: %w", g.AgentID, err)
		}
		for _, clientID := range g.ClientIDs {
			if _, err := e.Repo.GetClient(ctx, clientID); err != nil {
				return fmt.Errorf("client %s: %w", clientID, err)
			}
		}
	}
	return nil
}

// NextOccurrence derives an obligation's next due date at the given reference
// day. It is recomputed on every read so it self-corrects as time passes.
func (e Engine) NextOccurrence(ctx context.Context, obligationID string, ref time.Time) (time.Time, error) {
	o, err := e.Repo.GetObligation(ctx, obligationID)
	if err != nil {
		return time.Time{}, err
	}
	return nextFor(o, ref)
}

func nextFor(o domain.Obligation, ref time.Time) (time.Time, error) {
	p, err := schedule.ParsePattern(o.Pattern)
	if err != nil {
		return time.Time{}, err
	}
	start, err := time.Parse(dateLayout, o.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored start_date %q: %w", o.StartDate, err)
	}
	return schedule.NextOccurrence(start, p, ref), nil
}

// PeriodWindow bounds ApplicablePeriods; zero values fall back to the
// configured defaults.
type PeriodWindow struct {
	Anchor        time.Time
	MonthsBack    int
	MonthsForward int
}

// ApplicablePeriods generates the cadence-filtered period list for an
// obligation around the anchor month.
func (e Engine) ApplicablePeriods(ctx context.Context, obligationID string, w PeriodWindow) ([]schedule.Period, error) {
	o, err := e.Repo.GetObligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	return e.periodsFor(o, w)
}

func (e Engine) periodsFor(o domain.Obligation, w PeriodWindow) ([]schedule.Period, error) {
	p, err := schedule.ParsePattern(o.Pattern)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, o.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid stored start_date %q: %w", o.StartDate, err)
	}
	anchor := w.Anchor
	if anchor.IsZero() {
		anchor = e.now()
	}
	back, forward := w.MonthsBack, w.MonthsForward
	if back <= 0 {
		back = e.Config.Periods.MonthsBack
	}
	if forward <= 0 {
		forward = e.Config.Periods.MonthsForward
	}
	return schedule.GeneratePeriods(p, start, anchor, back, forward), nil
}
