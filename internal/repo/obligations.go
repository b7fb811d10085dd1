package repo

import (
	"context"
	"database/sql"
	"sort"

	"dutydesk/internal/domain"
)

func (r Repo) InsertObligation(ctx context.Context, tx *sql.Tx, o domain.Obligation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO obligations(id,title,pattern,start_date,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		o.ID, o.Title, o.Pattern, o.StartDate, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	return r.replaceAssignments(ctx, tx, o)
}

func (r Repo) UpdateObligation(ctx context.Context, tx *sql.Tx, o domain.Obligation) error {
	res, err := tx.ExecContext(ctx, `UPDATE obligations SET title=?, pattern=?, start_date=?, updated_at=? WHERE id=?`,
		o.Title, o.Pattern, o.StartDate, o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM obligation_clients WHERE obligation_id=?`, o.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM obligation_group_clients WHERE obligation_id=?`, o.ID); err != nil {
		return err
	}
	return r.replaceAssignments(ctx, tx, o)
}

func (r Repo) replaceAssignments(ctx context.Context, tx *sql.Tx, o domain.Obligation) error {
	for _, clientID := range o.DirectClientIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO obligation_clients(obligation_id, client_id) VALUES (?,?)`, o.ID, clientID); err != nil {
			return err
		}
	}
	for _, g := range o.GroupAssignments {
		for _, clientID := range g.ClientIDs {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO obligation_group_clients(obligation_id, agent_id, client_id) VALUES (?,?,?)`, o.ID, g.AgentID, clientID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r Repo) DeleteObligation(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM obligations WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetObligation loads an obligation with its direct and grouped assignments.
func (r Repo) GetObligation(ctx context.Context, id string) (domain.Obligation, error) {
	var o domain.Obligation
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,pattern,start_date,created_at,updated_at FROM obligations WHERE id=?`, id).
		Scan(&o.ID, &o.Title, &o.Pattern, &o.StartDate, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if o.DirectClientIDs, err = r.directClients(ctx, id); err != nil {
		return o, err
	}
	if o.GroupAssignments, err = r.groupAssignments(ctx, id); err != nil {
		return o, err
	}
	return o, nil
}

func (r Repo) ListObligations(ctx context.Context) ([]domain.Obligation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,pattern,start_date,created_at,updated_at FROM obligations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Obligation
	for rows.Next() {
		var o domain.Obligation
		if err := rows.Scan(&o.ID, &o.Title, &o.Pattern, &o.StartDate, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].DirectClientIDs, err = r.directClients(ctx, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].GroupAssignments, err = r.groupAssignments(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) directClients(ctx context.Context, obligationID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT client_id FROM obligation_clients WHERE obligation_id=? ORDER BY client_id`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) groupAssignments(ctx context.Context, obligationID string) ([]domain.GroupAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT agent_id, client_id FROM obligation_group_clients WHERE obligation_id=? ORDER BY agent_id, client_id`, obligationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byAgent := map[string][]string{}
	for rows.Next() {
		var agentID, clientID string
		if err := rows.Scan(&agentID, &clientID); err != nil {
			return nil, err
		}
		byAgent[agentID] = append(byAgent[agentID], clientID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	agents := make([]string, 0, len(byAgent))
	for a := range byAgent {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	var res []domain.GroupAssignment
	for _, a := range agents {
		res = append(res, domain.GroupAssignment{AgentID: a, ClientIDs: byAgent[a]})
	}
	return res, nil
}
