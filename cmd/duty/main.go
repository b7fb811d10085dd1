package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dutydesk/internal/app"
	"dutydesk/internal/db"
	"dutydesk/internal/domain"
	"dutydesk/internal/engine"
	"dutydesk/internal/repo"
	"dutydesk/internal/schedule"
	"dutydesk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "duty",
	Short: "DutyDesk CLI",
	Long: `DutyDesk tracks a firm's recurring obligations and its staffing roster.
- Workspace: a .dutydesk directory with the database, plus dutydesk.yml for firm settings.
- Obligations: recurring duties (monthly, quarterly, half-yearly, yearly) anchored to a start date;
  the next due date is always derived, never stored.
- Matrix: per-client, per-period completion checkboxes; what you see depends on your role.
- Roster: date-ranged schedule entries; month views and daily workload are computed from the ranges.
- Event log: diary of changes, view with 'duty log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DUTYDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("role", "admin", "actor role (admin, partner, agent)")
	rootCmd.PersistentFlags().String("firm", "", "firm id used when seeding a fresh workspace")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("firm", rootCmd.PersistentFlags().Lookup("firm"))
}

func registerCommands() {
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(obligationCmd())
	rootCmd.AddCommand(matrixCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(workloadCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Short: "Manage clients"}
	c.AddCommand(clientAddCmd())
	c.AddCommand(clientListCmd())
	return c
}

func clientAddCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateClient(ctx, id, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "client id (generated when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "client name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func clientListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListClients(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func agentCmd() *cobra.Command {
	c := &cobra.Command{Use: "agent", Short: "Manage agents"}
	c.AddCommand(agentAddCmd())
	c.AddCommand(agentListCmd())
	return c
}

func agentAddCmd() *cobra.Command {
	var id, name, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAgent(ctx, id, name, role, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(a)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "agent id (generated when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "agent name")
	cmd.Flags().StringVar(&role, "agent-role", "agent", "role (admin, partner, agent)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func agentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAgents(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Created"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Role, a.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func obligationCmd() *cobra.Command {
	c := &cobra.Command{Use: "obligation", Short: "Manage recurring obligations"}
	c.AddCommand(obligationCreateCmd())
	c.AddCommand(obligationListCmd())
	c.AddCommand(obligationShowCmd())
	c.AddCommand(obligationNextCmd())
	c.AddCommand(obligationPeriodsCmd())
	c.AddCommand(obligationDeleteCmd())
	return c
}

// parseAssign turns "agent=c1,c2" into a group assignment.
func parseAssign(raw string) (domain.GroupAssignment, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return domain.GroupAssignment{}, fmt.Errorf("invalid --assign %q, expected agent=client1,client2", raw)
	}
	var clients []string
	for _, c := range strings.Split(parts[1], ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			clients = append(clients, c)
		}
	}
	if len(clients) == 0 {
		return domain.GroupAssignment{}, fmt.Errorf("invalid --assign %q, no clients listed", raw)
	}
	return domain.GroupAssignment{AgentID: strings.TrimSpace(parts[0]), ClientIDs: clients}, nil
}

func obligationCreateCmd() *cobra.Command {
	var id, title, pattern, start string
	var clients, assigns []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create obligation",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := make([]domain.GroupAssignment, 0, len(assigns))
			for _, raw := range assigns {
				g, err := parseAssign(raw)
				if err != nil {
					return err
				}
				groups = append(groups, g)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateObligation(ctx, engine.ObligationCreateOptions{
					ID:               id,
					Title:            title,
					Pattern:          pattern,
					StartDate:        start,
					DirectClientIDs:  clients,
					GroupAssignments: groups,
					ActorID:          viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSON(o)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "obligation id (generated when omitted)")
	cmd.Flags().StringVar(&title, "title", "", "obligation title")
	cmd.Flags().StringVar(&pattern, "pattern", "", "recurrence pattern (monthly, quarterly, half-yearly, yearly)")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringArrayVar(&clients, "client", []string{}, "directly assigned client id (repeatable)")
	cmd.Flags().StringArrayVar(&assigns, "assign", []string{}, "group assignment agent=client1,client2 (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func obligationListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List obligations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListObligations(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				now := time.Now()
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Pattern", "Start", "Next Due", "Clients"})
				for _, o := range items {
					next := ""
					if p, err := schedule.ParsePattern(o.Pattern); err == nil {
						if s, err := time.Parse("2006-01-02", o.StartDate); err == nil {
							next = schedule.NextOccurrence(s, p, now).Format("2006-01-02")
						}
					}
					tw.AppendRow(table.Row{o.ID, o.Title, o.Pattern, o.StartDate, next, len(engine.ResolveClientSet(o))})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func obligationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an obligation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.GetObligation(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(o)
			})
		},
	}
	return cmd
}

func obligationNextCmd() *cobra.Command {
	var on string
	cmd := &cobra.Command{
		Use:   "next <id>",
		Short: "Next due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now()
			if on != "" {
				parsed, err := time.Parse("2006-01-02", on)
				if err != nil {
					return fmt.Errorf("invalid --on date %q: %w", on, err)
				}
				ref = parsed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				next, err := e.NextOccurrence(ctx, args[0], ref)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{
					"obligation_id": args[0],
					"on":            ref.Format("2006-01-02"),
					"next_due":      next.Format("2006-01-02"),
				})
			})
		},
	}
	cmd.Flags().StringVar(&on, "on", "", "reference date YYYY-MM-DD (default today)")
	return cmd
}

func obligationPeriodsCmd() *cobra.Command {
	var back, forward int
	var anchor string
	cmd := &cobra.Command{
		Use:   "periods <id>",
		Short: "Applicable periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := engine.PeriodWindow{MonthsBack: back, MonthsForward: forward}
			if anchor != "" {
				parsed, err := schedule.ParsePeriodKey(anchor)
				if err != nil {
					return err
				}
				w.Anchor = parsed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				periods, err := e.ApplicablePeriods(ctx, args[0], w)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(periods)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Period", "State"})
				for _, p := range periods {
					tw.AppendRow(table.Row{p.Key, periodState(p)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&back, "back", 0, "months back (default from config)")
	cmd.Flags().IntVar(&forward, "forward", 0, "months forward (default from config)")
	cmd.Flags().StringVar(&anchor, "anchor", "", "anchor period YYYY-MM (default current month)")
	return cmd
}

func periodState(p schedule.Period) string {
	switch {
	case p.IsCurrent:
		return "current"
	case p.IsPast:
		return "past"
	default:
		return "future"
	}
}

func obligationDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an obligation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteObligation(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func matrixCmd() *cobra.Command {
	c := &cobra.Command{Use: "matrix", Short: "Completion matrix"}
	c.AddCommand(matrixShowCmd())
	c.AddCommand(matrixToggleCmd())
	return c
}

func matrixShowCmd() *cobra.Command {
	var back, forward int
	var anchor string
	cmd := &cobra.Command{
		Use:   "show <obligation-id>",
		Short: "Show the completion matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := engine.PeriodWindow{MonthsBack: back, MonthsForward: forward}
			if anchor != "" {
				parsed, err := schedule.ParsePeriodKey(anchor)
				if err != nil {
					return err
				}
				w.Anchor = parsed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CompletionMatrix(ctx, args[0], viewer(), w)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				// current period first, then future, then past
				display := schedule.CurrentFirst(m.Periods)
				header := table.Row{"Client"}
				for _, p := range display {
					header = append(header, p.Key)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(header)
				for _, clientID := range m.ClientIDs {
					row := table.Row{clientID}
					for _, p := range display {
						mark := ""
						if m.Cells[repo.CellKey(clientID, p.Key)] {
							mark = "x"
						}
						row = append(row, mark)
					}
					tw.AppendRow(row)
				}
				tw.Render()
				fmt.Printf("completion: %.0f%%\n", m.Rate*100)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&back, "back", 0, "months back (default from config)")
	cmd.Flags().IntVar(&forward, "forward", 0, "months forward (default from config)")
	cmd.Flags().StringVar(&anchor, "anchor", "", "anchor period YYYY-MM (default current month)")
	return cmd
}

func matrixToggleCmd() *cobra.Command {
	var done bool
	cmd := &cobra.Command{
		Use:   "toggle <obligation-id> <client-id> <period>",
		Short: "Toggle a completion cell",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cell, err := e.ToggleCompletion(ctx, args[0], args[1], args[2], done, viewer())
				if err != nil {
					return err
				}
				return printJSON(cell)
			})
		},
	}
	cmd.Flags().BoolVar(&done, "done", true, "mark done (use --done=false to clear)")
	return cmd
}

func rosterCmd() *cobra.Command {
	c := &cobra.Command{Use: "roster", Short: "Staffing roster"}
	c.AddCommand(rosterAddCmd())
	c.AddCommand(rosterMonthCmd())
	c.AddCommand(rosterAgentCmd())
	return c
}

func rosterAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent <agent-id>",
		Short: "All entries planned for one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.AgentSchedule(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Client", "Label", "Kind", "Start", "End"})
				for _, entry := range entries {
					client := ""
					if entry.ClientID != nil {
						client = *entry.ClientID
					}
					tw.AppendRow(table.Row{entry.ID, client, entry.Label, entry.Kind, entry.StartAt, entry.EndAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func rosterAddCmd() *cobra.Command {
	var agentID, clientID, label, kind, start, end string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a schedule entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.CreateScheduleEntry(ctx, engine.ScheduleEntryCreateOptions{
					AgentID:  agentID,
					ClientID: clientID,
					Label:    label,
					Kind:     kind,
					StartAt:  start,
					EndAt:    end,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSON(entry)
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&clientID, "client", "", "client id (optional)")
	cmd.Flags().StringVar(&label, "label", "", "entry label")
	cmd.Flags().StringVar(&kind, "kind", "single-assignment", "entry kind (single-assignment, multi-day-activity)")
	cmd.Flags().StringVar(&start, "start", "", "start RFC3339, e.g. 2026-02-06T09:00:00Z")
	cmd.Flags().StringVar(&end, "end", "", "end RFC3339")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func parseYearMonth(args []string) (int, time.Month, error) {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q", args[1])
	}
	return year, time.Month(month), nil
}

func rosterMonthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month <year> <month>",
		Short: "Entries overlapping a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonth(args)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.MonthlyRoster(ctx, year, month)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Agent", "Client", "Label", "Kind", "Days"})
				for _, entry := range entries {
					client := ""
					if entry.ClientID != nil {
						client = *entry.ClientID
					}
					days := fmt.Sprintf("%d-%d", entry.Display.StartDay, entry.Display.EndDay)
					tw.AppendRow(table.Row{entry.ID, entry.AgentID, client, entry.Label, entry.Kind, days})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func workloadCmd() *cobra.Command {
	c := &cobra.Command{Use: "workload", Short: "Daily workload severity"}
	c.AddCommand(workloadMonthCmd())
	return c
}

func workloadMonthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month <year> <month>",
		Short: "Per-day severity counts across the roster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonth(args)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.DailyWorkload(ctx, year, month)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Day", "Long", "Short", "Free"})
				for day := 1; day <= schedule.DaysInMonth(year, month); day++ {
					c := counts[day]
					tw.AppendRow(table.Row{day, c.Long, c.Short, c.None})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	c := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	c.AddCommand(apikeyCreateCmd())
	c.AddCommand(apikeyListCmd())
	c.AddCommand(apikeyRevokeCmd())
	return c
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the secret is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			secret := "dk_" + hex.EncodeToString(raw)
			key := domain.APIKey{
				ID:        uuid.New().String(),
				ActorID:   actorID,
				Name:      name,
				KeyHash:   repo.HashAPIKey(secret),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				return printJSON(map[string]string{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      secret,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as (default --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: clients, agents, obligations, toggles, and roster entries.",
	}
	c.AddCommand(logTailCmd())
	return c
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSON(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			e, conn, err := app.Open(workspace, viper.GetString("firm"))
			if err != nil {
				return err
			}
			defer conn.Close()
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("DUTYDESK_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("DUTYDESK_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving DutyDesk API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func viewer() engine.Viewer {
	return engine.Viewer{
		ActorID: viper.GetString("actor-id"),
		Role:    viper.GetString("role"),
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := app.Open(viper.GetString("workspace"), viper.GetString("firm"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	_, conn, err := app.Open(viper.GetString("workspace"), viper.GetString("firm"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
