package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"dutydesk/internal/config"
	"dutydesk/internal/db"
	"dutydesk/internal/engine"
	"dutydesk/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("acme")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{
		JWTSecret:              "test-secret",
		AllowLegacyActorHeader: true,
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "admin-1", "X-Actor-Role": "admin"}
}

func seedRoster(t *testing.T, srv *testServer) {
	t.Helper()
	ctx := context.Background()
	for _, c := range []struct{ id, name string }{
		{"c1", "Aldgate Ltd"}, {"c2", "Birchwood & Co"},
	} {
		if _, err := srv.Engine.CreateClient(ctx, c.id, c.name, "admin-1"); err != nil {
			t.Fatalf("seed client: %v", err)
		}
	}
	for _, a := range []struct{ id, name, role string }{
		{"admin-1", "Alice", "admin"}, {"u1", "Uma", "agent"},
	} {
		if _, err := srv.Engine.CreateAgent(ctx, a.id, a.name, a.role, "admin-1"); err != nil {
			t.Fatalf("seed agent: %v", err)
		}
	}
}

func TestHealthAndAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
	res, body := doJSON(t, client, http.MethodGet, srv.URL+"/v0/clients", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, string(body))
	}
}

func TestDevLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "u1",
		"role":     "agent",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(body))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(body, &login); err != nil || login.Token == "" {
		t.Fatalf("bad dev login response %s: %v", string(body), err)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	var me MeResponse
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.ActorID != "u1" || me.Role != "agent" || me.Source != "jwt" {
		t.Fatalf("unexpected principal %+v", me)
	}
}

func TestObligationMatrixFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedRoster(t, srv)
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/obligations", map[string]any{
		"title":      "Quarterly filing",
		"pattern":    "quarterly",
		"start_date": "2026-01-01",
		"group_assignments": []map[string]any{
			{"agent_id": "u1", "client_ids": []string{"c1"}},
		},
		"client_ids": []string{"c2"},
	}, adminHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create obligation status %d: %s", res.StatusCode, string(body))
	}
	var created ObligationResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("unmarshal obligation: %v", err)
	}

	// invalid pattern is rejected at the boundary
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/obligations", map[string]any{
		"title":      "Weekly thing",
		"pattern":    "weekly",
		"start_date": "2026-01-01",
	}, adminHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for weekly pattern, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/obligations/"+created.ID+"/next?on=2026-03-15", nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("next status %d: %s", res.StatusCode, string(body))
	}
	var next NextOccurrenceResponse
	_ = json.Unmarshal(body, &next)
	if next.NextDue != "2026-04-01" {
		t.Fatalf("next_due = %s, want 2026-04-01", next.NextDue)
	}

	// admin sees both clients
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/obligations/"+created.ID+"/matrix", nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("matrix status %d: %s", res.StatusCode, string(body))
	}
	var m MatrixResponse
	_ = json.Unmarshal(body, &m)
	if len(m.ClientIDs) != 2 {
		t.Fatalf("admin matrix clients = %v", m.ClientIDs)
	}

	// agent sees only their group assignment
	agentHeaders := map[string]string{"X-Actor-Id": "u1", "X-Actor-Role": "agent"}
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/obligations/"+created.ID+"/matrix", nil, agentHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("agent matrix status %d: %s", res.StatusCode, string(body))
	}
	_ = json.Unmarshal(body, &m)
	if len(m.ClientIDs) != 1 || m.ClientIDs[0] != "c1" {
		t.Fatalf("agent matrix clients = %v", m.ClientIDs)
	}

	// toggling outside the agent's scope is forbidden
	res, body = doJSON(t, client, http.MethodPut, srv.URL+"/v0/obligations/"+created.ID+"/matrix/c2/2026-04", map[string]any{"done": true}, agentHeaders)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 out of scope, got %d: %s", res.StatusCode, string(body))
	}

	// off-cadence period is unprocessable
	res, body = doJSON(t, client, http.MethodPut, srv.URL+"/v0/obligations/"+created.ID+"/matrix/c1/2026-02", map[string]any{"done": true}, agentHeaders)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 off cadence, got %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodPut, srv.URL+"/v0/obligations/"+created.ID+"/matrix/c1/2026-04", map[string]any{"done": true}, agentHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/obligations/"+created.ID+"/matrix", nil, agentHeaders)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("matrix refetch status %d: %s", res.StatusCode, string(body))
	}
	_ = json.Unmarshal(body, &m)
	if !m.Cells["c1|2026-04"] {
		t.Fatalf("toggled cell not reflected: %v", m.Cells)
	}
}

func TestRosterAndWorkload(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedRoster(t, srv)
	client := srv.Client()

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v0/roster/entries", map[string]any{
		"agent_id": "u1",
		"label":    "Year-end audit",
		"kind":     "multi-day-activity",
		"start_at": "2026-01-28T09:00:00Z",
		"end_at":   "2026-02-05T17:00:00Z",
	}, adminHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create entry status %d: %s", res.StatusCode, string(body))
	}

	// reversed range is rejected
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v0/roster/entries", map[string]any{
		"agent_id": "u1",
		"label":    "Backwards",
		"start_at": "2026-02-05T17:00:00Z",
		"end_at":   "2026-01-28T09:00:00Z",
	}, adminHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for reversed range, got %d: %s", res.StatusCode, string(body))
	}

	// the entry shows in both January and February, clamped to each
	for _, tc := range []struct {
		month      string
		start, end int
	}{
		{"2026/1", 28, 31},
		{"2026/2", 1, 5},
	} {
		res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/roster/"+tc.month, nil, adminHeaders())
		if res.StatusCode != http.StatusOK {
			t.Fatalf("roster %s status %d: %s", tc.month, res.StatusCode, string(body))
		}
		var entries []RosterEntryResponse
		_ = json.Unmarshal(body, &entries)
		if len(entries) != 1 {
			t.Fatalf("roster %s entries = %d", tc.month, len(entries))
		}
		if entries[0].DisplayStartDay != tc.start || entries[0].DisplayEndDay != tc.end {
			t.Fatalf("roster %s display = %d-%d, want %d-%d",
				tc.month, entries[0].DisplayStartDay, entries[0].DisplayEndDay, tc.start, tc.end)
		}
	}

	// March has no entries
	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/roster/2026/3", nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("roster march status %d: %s", res.StatusCode, string(body))
	}
	var entries []RosterEntryResponse
	_ = json.Unmarshal(body, &entries)
	if len(entries) != 0 {
		t.Fatalf("march should be empty, got %d entries", len(entries))
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v0/roster/2026/2/workload", nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("workload status %d: %s", res.StatusCode, string(body))
	}
	var days []WorkloadDayResponse
	_ = json.Unmarshal(body, &days)
	if len(days) != 28 {
		t.Fatalf("feb 2026 should have 28 days, got %d", len(days))
	}
	// day 3 sits inside the multi-day span, so one agent is on a long day and
	// the other is free
	d := days[2]
	if d.Long != 1 || d.None != 1 {
		t.Fatalf("day 3 counts = %+v", d)
	}
}
