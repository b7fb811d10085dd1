package repo

import (
	"context"
	"database/sql"
	"errors"

	"dutydesk/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertClient(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO clients(id,name,created_at) VALUES (?,?,?)`,
		c.ID, c.Name, c.CreatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var c domain.Client
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM clients WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertAgent(ctx context.Context, tx *sql.Tx, a domain.Agent) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO agents(id,name,role,created_at) VALUES (?,?,?,?)`,
		a.ID, a.Name, a.Role, a.CreatedAt)
	return err
}

func (r Repo) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	var a domain.Agent
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,role,created_at FROM agents WHERE id=?`, id).
		Scan(&a.ID, &a.Name, &a.Role, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,role,created_at FROM agents ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Agent
	for rows.Next() {
		var a domain.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// AgentIDs returns the full agent roster in stable order, for workload
// aggregation.
func (r Repo) AgentIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM agents ORDER BY id`)
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

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
