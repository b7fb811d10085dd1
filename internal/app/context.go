package app

import (
	"database/sql"
	"fmt"
	"os"

	"dutydesk/internal/config"
	"dutydesk/internal/db"
	"dutydesk/internal/engine"
	"dutydesk/internal/migrate"
)

// Open prepares a workspace for use: ensures the .dutydesk directory, seeds
// dutydesk.yml with defaults when missing, opens the database and applies
// migrations. The returned engine is ready for commands and the server.
func Open(workspace, firmID string) (engine.Engine, *sql.DB, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return engine.Engine{}, nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if cfg == nil {
		if firmID == "" {
			firmID = "dutydesk"
		}
		if err := os.WriteFile(config.Path(workspace), []byte(config.GenerateDefault(firmID)), 0o644); err != nil {
			return engine.Engine{}, nil, fmt.Errorf("seed config: %w", err)
		}
		// read the seeded file back through the validating loader
		if cfg, err = config.Load(workspace); err != nil {
			return engine.Engine{}, nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	return engine.New(conn, cfg), conn, nil
}
