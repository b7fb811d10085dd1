package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dutydesk/internal/config"
	"dutydesk/internal/db"
	"dutydesk/internal/domain"
	"dutydesk/internal/engine"
	"dutydesk/internal/migrate"
	"dutydesk/internal/repo"
	"dutydesk/internal/schedule"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("acme")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func seedRoster(t *testing.T, env testEnv) {
	t.Helper()
	for _, c := range []struct{ id, name string }{
		{"c1", "Aldgate Ltd"}, {"c2", "Birchwood & Co"}, {"c3", "Crane Partners"},
	} {
		if _, err := env.Engine.CreateClient(env.Ctx, c.id, c.name, "admin-1"); err != nil {
			t.Fatalf("create client %s: %v", c.id, err)
		}
	}
	for _, a := range []struct{ id, name, role string }{
		{"admin-1", "Alice", "admin"}, {"u1", "Uma", "agent"}, {"u2", "Viktor", "agent"},
	} {
		if _, err := env.Engine.CreateAgent(env.Ctx, a.id, a.name, a.role, "admin-1"); err != nil {
			t.Fatalf("create agent %s: %v", a.id, err)
		}
	}
}

func TestCreateObligationRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	_, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title: "VAT return", Pattern: "weekly", StartDate: "2026-01-01", ActorID: "admin-1",
	})
	if !errors.Is(err, schedule.ErrInvalidPattern) {
		t.Fatalf("expected invalid pattern, got %v", err)
	}
	_, err = env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title: "VAT return", Pattern: "monthly", StartDate: "01/01/2026", ActorID: "admin-1",
	})
	if err == nil {
		t.Fatalf("expected start date error")
	}
	_, err = env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title: "VAT return", Pattern: "monthly", StartDate: "2026-01-01",
		DirectClientIDs: []string{"ghost"}, ActorID: "admin-1",
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected unknown client error, got %v", err)
	}
}

func TestQuarterlyPeriodsAndMatrixEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	o, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title:     "Quarterly filing",
		Pattern:   "quarterly",
		StartDate: "2026-01-01",
		DirectClientIDs: []string{"c1"},
		GroupAssignments: []domain.GroupAssignment{
			{AgentID: "u1", ClientIDs: []string{"c1", "c2"}},
			{AgentID: "u2", ClientIDs: []string{"c3"}},
		},
		ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("create obligation: %v", err)
	}

	periods, err := env.Engine.ApplicablePeriods(env.Ctx, o.ID, engine.PeriodWindow{
		Anchor: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), MonthsBack: 6, MonthsForward: 9,
	})
	if err != nil {
		t.Fatalf("periods: %v", err)
	}
	want := []string{"2026-01", "2026-04", "2026-07", "2026-10"}
	if len(periods) != len(want) {
		t.Fatalf("periods = %v", periods)
	}
	for i, p := range periods {
		if p.Key != want[i] {
			t.Fatalf("period[%d] = %s, want %s", i, p.Key, want[i])
		}
	}

	admin := engine.Viewer{ActorID: "admin-1", Role: "admin"}
	if _, err := env.Engine.ToggleCompletion(env.Ctx, o.ID, "c2", "2026-04", true, admin); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	m, err := env.Engine.CompletionMatrix(env.Ctx, o.ID, admin, engine.PeriodWindow{
		Anchor: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), MonthsBack: 6, MonthsForward: 9,
	})
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	if len(m.ClientIDs) != 3 {
		t.Fatalf("admin should see all clients, got %v", m.ClientIDs)
	}
	if !m.Cells[repo.CellKey("c2", "2026-04")] {
		t.Fatalf("toggled cell should read true")
	}
	for _, p := range m.Periods {
		if p.Key == "2026-04" {
			continue
		}
		if m.Cells[repo.CellKey("c2", p.Key)] {
			t.Fatalf("cell c2/%s should default false", p.Key)
		}
	}
	if got, wantRate := m.Rate, 1.0/12.0; got != wantRate {
		t.Fatalf("rate = %v, want %v", got, wantRate)
	}
}

func TestMatrixViewerFiltering(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	o, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title:     "Payroll run",
		Pattern:   "monthly",
		StartDate: "2026-01-01",
		DirectClientIDs: []string{"c1"},
		GroupAssignments: []domain.GroupAssignment{
			{AgentID: "u1", ClientIDs: []string{"c2"}},
		},
		ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("create obligation: %v", err)
	}
	w := engine.PeriodWindow{Anchor: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), MonthsBack: 2, MonthsForward: 2}

	m, err := env.Engine.CompletionMatrix(env.Ctx, o.ID, engine.Viewer{ActorID: "u1", Role: "agent"}, w)
	if err != nil {
		t.Fatalf("matrix u1: %v", err)
	}
	if len(m.ClientIDs) != 1 || m.ClientIDs[0] != "c2" {
		t.Fatalf("u1 should see exactly [c2], got %v", m.ClientIDs)
	}

	// an agent with no group entry sees nothing, not the direct list
	m, err = env.Engine.CompletionMatrix(env.Ctx, o.ID, engine.Viewer{ActorID: "u2", Role: "agent"}, w)
	if err != nil {
		t.Fatalf("matrix u2: %v", err)
	}
	if len(m.ClientIDs) != 0 {
		t.Fatalf("u2 should see no clients, got %v", m.ClientIDs)
	}
	if m.Rate != 0 {
		t.Fatalf("empty matrix rate = %v, want 0", m.Rate)
	}
}

func TestToggleCompletionScopeAndCadence(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	o, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title:   "Quarterly filing",
		Pattern: "quarterly", StartDate: "2026-01-01",
		GroupAssignments: []domain.GroupAssignment{{AgentID: "u1", ClientIDs: []string{"c2"}}},
		ActorID:          "admin-1",
	})
	if err != nil {
		t.Fatalf("create obligation: %v", err)
	}

	// out-of-scope client for the viewer is rejected, not silently tracked
	_, err = env.Engine.ToggleCompletion(env.Ctx, o.ID, "c3", "2026-04", true, engine.Viewer{ActorID: "u1", Role: "agent"})
	var se engine.ScopeError
	if !errors.As(err, &se) {
		t.Fatalf("expected scope error, got %v", err)
	}

	// off-cadence period is never written
	_, err = env.Engine.ToggleCompletion(env.Ctx, o.ID, "c2", "2026-02", true, engine.Viewer{ActorID: "u1", Role: "agent"})
	if err == nil {
		t.Fatalf("expected cadence rejection")
	}

	if _, err := env.Engine.ToggleCompletion(env.Ctx, o.ID, "c2", "2026-04", true, engine.Viewer{ActorID: "u1", Role: "agent"}); err != nil {
		t.Fatalf("in-scope toggle: %v", err)
	}
	// toggles are idempotent upserts
	if _, err := env.Engine.ToggleCompletion(env.Ctx, o.ID, "c2", "2026-04", true, engine.Viewer{ActorID: "u1", Role: "agent"}); err != nil {
		t.Fatalf("repeat toggle: %v", err)
	}
	if _, err := env.Engine.ToggleCompletion(env.Ctx, o.ID, "c2", "2026-04", false, engine.Viewer{ActorID: "u1", Role: "agent"}); err != nil {
		t.Fatalf("untoggle: %v", err)
	}
	done, err := env.Engine.Repo.GetCompletionCell(env.Ctx, o.ID, "c2", "2026-04")
	if err != nil || done {
		t.Fatalf("cell should read false after untoggle: %v %v", done, err)
	}
}

func TestNextOccurrenceDerivedNotStored(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	o, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title: "Annual accounts", Pattern: "yearly", StartDate: "2024-06-30", ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("create obligation: %v", err)
	}
	next, err := env.Engine.NextOccurrence(env.Ctx, o.ID, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	// read on a later day self-corrects without any migration
	next, err = env.Engine.NextOccurrence(env.Ctx, o.ID, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if want := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestObligationDeleteCascadesCells(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	o, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title: "Quarterly filing", Pattern: "quarterly", StartDate: "2026-01-01",
		DirectClientIDs: []string{"c1"}, ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("create obligation: %v", err)
	}
	admin := engine.Viewer{ActorID: "admin-1", Role: "admin"}
	if _, err := env.Engine.ToggleCompletion(env.Ctx, o.ID, "c1", "2026-04", true, admin); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := env.Engine.DeleteObligation(env.Ctx, o.ID, "admin-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetObligation(env.Ctx, o.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("obligation should be gone, got %v", err)
	}
	cells, err := env.Engine.Repo.ListCompletionCells(env.Ctx, o.ID)
	if err != nil {
		t.Fatalf("list cells: %v", err)
	}
	if len(cells) != 0 {
		t.Fatalf("cells should cascade, got %v", cells)
	}
}

func TestObligationDeleteCommitsWithEvent(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	o, err := env.Engine.CreateObligation(env.Ctx, engine.ObligationCreateOptions{
		Title: "Payroll run", Pattern: "monthly", StartDate: "2026-01-01",
		DirectClientIDs: []string{"c1"}, ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("create obligation: %v", err)
	}
	if err := env.Engine.DeleteObligation(env.Ctx, o.ID, "admin-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// the row delete and the audit event share one transaction, so a
	// successful delete always leaves a deletion event behind
	evs, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "obligation.deleted", "obligation", o.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected one deletion event, got %d", len(evs))
	}
	if evs[0].ActorID != "admin-1" {
		t.Fatalf("event actor = %s", evs[0].ActorID)
	}

	// a failed delete must not log a deletion
	if err := env.Engine.DeleteObligation(env.Ctx, "ghost", "admin-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	evs, err = env.Engine.Repo.LatestEvents(env.Ctx, 10, "obligation.deleted", "obligation", "ghost")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("failed delete should log nothing, got %d events", len(evs))
	}
}

func TestAgentSchedule(t *testing.T) {
	env := newTestEnv(t)
	seedRoster(t, env)
	mk := func(agentID, label, start, end string) {
		t.Helper()
		if _, err := env.Engine.CreateScheduleEntry(env.Ctx, engine.ScheduleEntryCreateOptions{
			AgentID: agentID, Label: label, StartAt: start, EndAt: end, ActorID: "admin-1",
		}); err != nil {
			t.Fatalf("create entry %s: %v", label, err)
		}
	}
	mk("u1", "year-end audit", "2026-02-10T09:00:00Z", "2026-02-12T17:00:00Z")
	mk("u2", "payroll support", "2026-02-03T09:00:00Z", "2026-02-03T12:00:00Z")
	mk("u1", "onboarding visit", "2026-01-20T09:00:00Z", "2026-01-20T17:00:00Z")

	entries, err := env.Engine.AgentSchedule(env.Ctx, "u1")
	if err != nil {
		t.Fatalf("agent schedule: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("u1 should have 2 entries, got %d", len(entries))
	}
	if entries[0].Label != "onboarding visit" || entries[1].Label != "year-end audit" {
		t.Fatalf("entries not in start order: %v, %v", entries[0].Label, entries[1].Label)
	}

	if _, err := env.Engine.AgentSchedule(env.Ctx, "ghost"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown agent, got %v", err)
	}
}
