package repo

import (
	"context"
	"database/sql"

	"dutydesk/internal/domain"
)

func (r Repo) InsertScheduleEntry(ctx context.Context, tx *sql.Tx, e domain.ScheduleEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO schedule_entries(id,agent_id,client_id,label,kind,start_at,end_at,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.AgentID, nullableStringPtr(e.ClientID), e.Label, e.Kind, e.StartAt, e.EndAt, e.CreatedAt)
	return err
}

func (r Repo) GetScheduleEntry(ctx context.Context, id string) (domain.ScheduleEntry, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,agent_id,client_id,label,kind,start_at,end_at,created_at FROM schedule_entries WHERE id=?`, id)
	e, err := scanScheduleEntry(row.Scan)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

// ListEntriesOverlapping fetches entries whose range intersects
// [windowStart, windowEnd], using the (start_at, end_at) index so the scan is
// bounded by the window rather than the whole table. Bounds are RFC3339
// strings, which order lexicographically.
func (r Repo) ListEntriesOverlapping(ctx context.Context, windowStart, windowEnd string) ([]domain.ScheduleEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,agent_id,client_id,label,kind,start_at,end_at,created_at FROM schedule_entries
WHERE start_at <= ? AND end_at >= ? ORDER BY start_at, id`, windowEnd, windowStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) ListEntriesForAgent(ctx context.Context, agentID string) ([]domain.ScheduleEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,agent_id,client_id,label,kind,start_at,end_at,created_at FROM schedule_entries
WHERE agent_id=? ORDER BY start_at, id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func scanScheduleEntry(scan func(...any) error) (domain.ScheduleEntry, error) {
	var e domain.ScheduleEntry
	var clientID sql.NullString
	err := scan(&e.ID, &e.AgentID, &clientID, &e.Label, &e.Kind, &e.StartAt, &e.EndAt, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	if clientID.Valid {
		e.ClientID = &clientID.String
	}
	return e, nil
}
