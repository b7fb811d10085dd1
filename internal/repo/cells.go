package repo

import (
	"context"
	"database/sql"

	"dutydesk/internal/domain"
)

// UpsertCompletionCell writes one checkbox value, last-write-wins on the
// composite key.
func (r Repo) UpsertCompletionCell(ctx context.Context, tx *sql.Tx, c domain.CompletionCell) error {
	done := 0
	if c.Done {
		done = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO completion_cells(obligation_id,client_id,period_key,done,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(obligation_id,client_id,period_key) DO UPDATE SET done=excluded.done, updated_at=excluded.updated_at`,
		c.ObligationID, c.ClientID, c.PeriodKey, done, c.UpdatedAt)
	return err
}

// GetCompletionCell reads one cell; a missing row is a false cell, not an
// error.
func (r Repo) GetCompletionCell(ctx context.Context, obligationID, clientID, periodKey string) (bool, error) {
	var done int
	err := r.DB.QueryRowContext(ctx, `SELECT done FROM completion_cells WHERE obligation_id=? AND client_id=? AND period_key=?`,
		obligationID, clientID, periodKey).Scan(&done)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return done != 0, nil
}

// ListCompletionCells returns all stored cells for an obligation keyed by
// "clientID|periodKey".
func (r Repo) ListCompletionCells(ctx context.Context, obligationID string) (map[string]bool, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT client_id, period_key, done FROM completion_cells WHERE obligation_id=?`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]bool{}
	for rows.Next() {
		var clientID, periodKey string
		var done int
		if err := rows.Scan(&clientID, &periodKey, &done); err != nil {
			return nil, err
		}
		res[CellKey(clientID, periodKey)] = done != 0
	}
	return res, rows.Err()
}

// CellKey builds the map key used for matrix cell lookups.
func CellKey(clientID, periodKey string) string {
	return clientID + "|" + periodKey
}
