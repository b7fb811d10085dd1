package engine

import (
	"context"
	"fmt"
	"time"

	"dutydesk/internal/domain"
	"dutydesk/internal/events"
	"dutydesk/internal/repo"
	"dutydesk/internal/schedule"
)

// MatrixView is the viewer-filtered completion grid for one obligation:
// visible clients as rows, applicable periods as columns, and every cell
// materialized (absent rows read as false).
type MatrixView struct {
	ObligationID string            `json:"obligation_id"`
	Title        string            `json:"title"`
	Pattern      string            `json:"pattern"`
	ClientIDs    []string          `json:"client_ids"`
	Periods      []schedule.Period `json:"periods"`
	Cells        map[string]bool   `json:"cells"`
	Rate         float64           `json:"rate"`
}

// CompletionMatrix assembles the grid for a viewer. Privileged roles see the
// full resolved client set; others only their own group assignments.
func (e Engine) CompletionMatrix(ctx context.Context, obligationID string, v Viewer, w PeriodWindow) (MatrixView, error) {
	o, err := e.Repo.GetObligation(ctx, obligationID)
	if err != nil {
		return MatrixView{}, err
	}
	periods, err := e.periodsFor(o, w)
	if err != nil {
		return MatrixView{}, err
	}
	clients := FilterClientSetForViewer(o, v, e.Config.Privileged(v.Role))
	stored, err := e.Repo.ListCompletionCells(ctx, obligationID)
	if err != nil {
		return MatrixView{}, err
	}
	cells := make(map[string]bool, len(clients)*len(periods))
	done := 0
	for _, clientID := range clients {
		for _, p := range periods {
			key := repo.CellKey(clientID, p.Key)
			val := stored[key]
			cells[key] = val
			if val {
				done++
			}
		}
	}
	return MatrixView{
		ObligationID: o.ID,
		Title:        o.Title,
		Pattern:      o.Pattern,
		ClientIDs:    clients,
		Periods:      periods,
		Cells:        cells,
		Rate:         CompletionRate(len(clients), len(periods), done),
	}, nil
}

// CompletionRate is completed over total cells; zero, not NaN, when either
// axis is empty.
func CompletionRate(clients, periods, done int) float64 {
	total := clients * periods
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// ToggleCompletion upserts one cell. The client must be inside the viewer's
// visible set and the period must fall on the obligation's cadence; anything
// else is rejected rather than widening the tracked set.
func (e Engine) ToggleCompletion(ctx context.Context, obligationID, clientID, periodKey string, value bool, v Viewer) (domain.CompletionCell, error) {
	o, err := e.Repo.GetObligation(ctx, obligationID)
	if err != nil {
		return domain.CompletionCell{}, err
	}
	scope := FilterClientSetForViewer(o, v, e.Config.Privileged(v.Role))
	if !contains(scope, clientID) {
		return domain.CompletionCell{}, ScopeError{ObligationID: obligationID, ClientID: clientID}
	}
	p, err := schedule.ParsePattern(o.Pattern)
	if err != nil {
		return domain.CompletionCell{}, err
	}
	start, err := time.Parse(dateLayout, o.StartDate)
	if err != nil {
		return domain.CompletionCell{}, fmt.Errorf("invalid stored start_date %q: %w", o.StartDate, err)
	}
	if !schedule.PeriodApplicable(p, start, periodKey) {
		return domain.CompletionCell{}, fmt.Errorf("period %s is not applicable to obligation %s", periodKey, obligationID)
	}
	cell := domain.CompletionCell{
		ObligationID: obligationID,
		ClientID:     clientID,
		PeriodKey:    periodKey,
		Done:         value,
		UpdatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CompletionCell{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertCompletionCell(ctx, tx, cell); err != nil {
		return domain.CompletionCell{}, err
	}
	if err := e.Events.Append(ctx, tx, "completion.toggled", "obligation", obligationID, v.ActorID, events.EventPayload{
		"client_id":  clientID,
		"period_key": periodKey,
		"done":       value,
	}); err != nil {
		return domain.CompletionCell{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CompletionCell{}, err
	}
	return cell, nil
}
