package dutydesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal DutyDesk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// GroupAssignment maps an agent to the clients they cover.
type GroupAssignment struct {
	AgentID   string   `json:"agent_id"`
	ClientIDs []string `json:"client_ids"`
}

// Obligation represents the API obligation model.
type Obligation struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Pattern          string            `json:"pattern"`
	StartDate        string            `json:"start_date"`
	ClientIDs        []string          `json:"client_ids"`
	GroupAssignments []GroupAssignment `json:"group_assignments"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

// Period is one applicable month.
type Period struct {
	Key       string `json:"key"`
	IsPast    bool   `json:"is_past"`
	IsCurrent bool   `json:"is_current"`
	IsFuture  bool   `json:"is_future"`
}

// Matrix is the viewer-filtered completion grid.
type Matrix struct {
	ObligationID string          `json:"obligation_id"`
	Title        string          `json:"title"`
	Pattern      string          `json:"pattern"`
	ClientIDs    []string        `json:"client_ids"`
	Periods      []Period        `json:"periods"`
	Cells        map[string]bool `json:"cells"`
	Rate         float64         `json:"rate"`
}

// CompletionCell is one toggled checkbox.
type CompletionCell struct {
	ObligationID string `json:"obligation_id"`
	ClientID     string `json:"client_id"`
	PeriodKey    string `json:"period_key"`
	Done         bool   `json:"done"`
	UpdatedAt    string `json:"updated_at"`
}

// RosterEntry is a schedule entry with its display range clamped to the
// queried month.
type RosterEntry struct {
	ID              string  `json:"id"`
	AgentID         string  `json:"agent_id"`
	ClientID        *string `json:"client_id,omitempty"`
	Label           string  `json:"label"`
	Kind            string  `json:"kind"`
	StartAt         string  `json:"start_at"`
	EndAt           string  `json:"end_at"`
	DisplayStartDay int     `json:"display_start_day"`
	DisplayEndDay   int     `json:"display_end_day"`
}

// WorkloadDay is one day's severity counts across the roster.
type WorkloadDay struct {
	Day   int `json:"day"`
	Long  int `json:"long"`
	Short int `json:"short"`
	None  int `json:"none"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateObligation creates a recurring obligation.
func (c *Client) CreateObligation(ctx context.Context, title, pattern, startDate string, clientIDs []string, groups []GroupAssignment) (Obligation, error) {
	body := map[string]any{
		"title":      title,
		"pattern":    pattern,
		"start_date": startDate,
	}
	if len(clientIDs) > 0 {
		body["client_ids"] = clientIDs
	}
	if len(groups) > 0 {
		body["group_assignments"] = groups
	}
	var resp Obligation
	err := c.do(ctx, http.MethodPost, "v0/obligations", body, &resp)
	return resp, err
}

// GetMatrix fetches the completion matrix as seen by the caller.
func (c *Client) GetMatrix(ctx context.Context, obligationID string) (Matrix, error) {
	var resp Matrix
	endpoint := fmt.Sprintf("v0/obligations/%s/matrix", url.PathEscape(obligationID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Periods fetches the applicable period list.
func (c *Client) Periods(ctx context.Context, obligationID string) ([]Period, error) {
	var resp []Period
	endpoint := fmt.Sprintf("v0/obligations/%s/periods", url.PathEscape(obligationID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ToggleCompletion sets one completion cell.
func (c *Client) ToggleCompletion(ctx context.Context, obligationID, clientID, period string, done bool) (CompletionCell, error) {
	var resp CompletionCell
	endpoint := fmt.Sprintf("v0/obligations/%s/matrix/%s/%s",
		url.PathEscape(obligationID), url.PathEscape(clientID), url.PathEscape(period))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"done": done}, &resp)
	return resp, err
}

// GetRoster returns the entries overlapping a month.
func (c *Client) GetRoster(ctx context.Context, year, month int) ([]RosterEntry, error) {
	var resp []RosterEntry
	endpoint := fmt.Sprintf("v0/roster/%d/%d", year, month)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetWorkload returns per-day severity counts for a month.
func (c *Client) GetWorkload(ctx context.Context, year, month int) ([]WorkloadDay, error) {
	var resp []WorkloadDay
	endpoint := fmt.Sprintf("v0/roster/%d/%d/workload", year, month)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
