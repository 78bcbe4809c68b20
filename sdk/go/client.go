// Package catreviewsdk is a minimal Go client for the Category Review API.
package catreviewsdk

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

// Client talks to a catreview server.
type Client struct {
	BaseURL     string
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

// Step represents a wizard step (partial).
type Step struct {
	ID                 int                `json:"id"`
	Name               string             `json:"name"`
	Status             string             `json:"status"`
	Type               string             `json:"type"`
	StageKey           string             `json:"stage_key,omitempty"`
	LeversAnalyzed     []string           `json:"levers_analyzed"`
	InitiativeIDs      []int              `json:"initiative_ids"`
	TotalRevenueImpact float64            `json:"total_revenue_impact"`
	TotalMarginImpact  float64            `json:"total_margin_impact"`
	LeverStates        map[string]string `json:"lever_states,omitempty"`
	TrafficLights      map[string]string `json:"traffic_lights,omitempty"`
	Insights           map[string]string `json:"insights,omitempty"`
	CanProceed         bool              `json:"can_proceed"`
}

// Initiative represents an improvement initiative.
type Initiative struct {
	ID                   int     `json:"id"`
	Description          string  `json:"description"`
	ReportID             string  `json:"report_id"`
	Status               string  `json:"status"`
	RevenueImpactMillion float64 `json:"revenue_impact_million"`
	MarginImpactMillion  float64 `json:"margin_impact_million"`
	CreatedDate          string  `json:"created_date,omitempty"`
	StartDate            string  `json:"start_date,omitempty"`
	ImpactStartDate      string  `json:"impact_start_date,omitempty"`
	ImpactCheckDate      string  `json:"impact_check_date,omitempty"`
	Assignee             string  `json:"assignee,omitempty"`
	ParentID             *int    `json:"parent_id,omitempty"`
	SKUDetails           string  `json:"sku_details,omitempty"`
	StepID               int     `json:"step_id,omitempty"`
}

// InitiativeDetail adds subtasks and the detail score.
type InitiativeDetail struct {
	Initiative
	Subtasks []Initiative   `json:"subtasks"`
	Score    map[string]any `json:"score"`
	Label    string         `json:"label"`
}

// Status is the workflow summary.
type Status struct {
	Category      string  `json:"category"`
	CurrentStepID int     `json:"current_step_id"`
	StartDate     string  `json:"start_date"`
	Initiatives   int     `json:"initiatives"`
	TotalRevenue  float64 `json:"total_revenue"`
	TotalMargin   float64 `json:"total_margin"`
}

// Cell is one report matrix cell.
type Cell struct {
	Lever             string         `json:"lever"`
	Stage             string         `json:"stage"`
	Description       string   `json:"description,omitempty"`
	Questions         []string `json:"questions,omitempty"`
	Reports           []Report `json:"reports"`
	TotalReports      int      `json:"total_reports"`
	NewReportsCount   int      `json:"new_reports_count"`
	NewReportsPercent int      `json:"new_reports_percent"`
	DerivedLight      string   `json:"derived_light"`
}

// Report is one catalog report.
type Report struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Matrix is the full catalog layout.
type Matrix struct {
	Levers []string `json:"levers"`
	Stages []string `json:"stages"`
	Cells  []Cell   `json:"cells"`
}

// Preparation is the full workflow state.
type Preparation struct {
	Steps         []Step       `json:"steps"`
	CurrentStepID int          `json:"current_step_id"`
	StartDate     string       `json:"start_date"`
	Initiatives   []Initiative `json:"initiatives"`
	TotalRevenue  float64      `json:"total_revenue"`
	TotalMargin   float64      `json:"total_margin"`
}

// ReportLookup maps a report id to its name and analysis step.
type ReportLookup struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	StepID int    `json:"step_id"`
}

// Event represents a log entry.
type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts"`
	Type         string `json:"type"`
	StepID       int    `json:"step_id,omitempty"`
	Lever        string `json:"lever,omitempty"`
	InitiativeID int    `json:"initiative_id,omitempty"`
	PayloadJSON  string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges the dashboard password for a bearer token and stores it
// on the client.
func (c *Client) Login(ctx context.Context, password string) (string, error) {
	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	err := c.do(ctx, http.MethodPost, "v0/auth/login", map[string]any{"password": password}, &resp)
	if err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// Status returns the workflow summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, "v0/status", nil, &resp)
	return resp, err
}

// Preparation returns the full workflow state in one call.
func (c *Client) Preparation(ctx context.Context) (Preparation, error) {
	var resp Preparation
	err := c.do(ctx, http.MethodGet, "v0/preparation", nil, &resp)
	return resp, err
}

// Steps lists every wizard step.
func (c *Client) Steps(ctx context.Context) ([]Step, error) {
	var resp []Step
	err := c.do(ctx, http.MethodGet, "v0/steps", nil, &resp)
	return resp, err
}

// Step fetches one step.
func (c *Client) Step(ctx context.Context, id int) (Step, error) {
	var resp Step
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/steps/%d", id), nil, &resp)
	return resp, err
}

// SetCurrentStep moves the wizard. The server rejects the move when step
// gating is not satisfied.
func (c *Client) SetCurrentStep(ctx context.Context, id int) (Step, error) {
	var resp Step
	err := c.do(ctx, http.MethodPut, "v0/current-step", map[string]any{"step_id": id}, &resp)
	return resp, err
}

// CompleteStep marks a step completed.
func (c *Client) CompleteStep(ctx context.Context, id int) (Step, error) {
	var resp Step
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/steps/%d/complete", id), nil, &resp)
	return resp, err
}

// SkipStep marks a step skipped.
func (c *Client) SkipStep(ctx context.Context, id int) (Step, error) {
	var resp Step
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/steps/%d/skip", id), nil, &resp)
	return resp, err
}

// MarkLeverViewed records that a lever's reports were opened.
func (c *Client) MarkLeverViewed(ctx context.Context, stepID int, lever string) (Step, error) {
	var resp Step
	endpoint := fmt.Sprintf("v0/steps/%d/levers/%s/viewed", stepID, url.PathEscape(lever))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// SetTrafficLight sets a manual lever assessment. Pass "" to clear.
func (c *Client) SetTrafficLight(ctx context.Context, stepID int, lever, light string) (Step, error) {
	var resp Step
	endpoint := fmt.Sprintf("v0/steps/%d/levers/%s/traffic-light", stepID, url.PathEscape(lever))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"light": light}, &resp)
	return resp, err
}

// SetInsights stores free-form notes for a lever.
func (c *Client) SetInsights(ctx context.Context, stepID int, lever, insights string) (Step, error) {
	var resp Step
	endpoint := fmt.Sprintf("v0/steps/%d/levers/%s/insights", stepID, url.PathEscape(lever))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"insights": insights}, &resp)
	return resp, err
}

// Initiatives lists initiatives, optionally filtered by step.
func (c *Client) Initiatives(ctx context.Context, stepID int) ([]Initiative, error) {
	endpoint := "v0/initiatives"
	if stepID > 0 {
		endpoint = fmt.Sprintf("%s?step_id=%d", endpoint, stepID)
	}
	var resp []Initiative
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateInitiative attaches an initiative to a step.
func (c *Client) CreateInitiative(ctx context.Context, stepID int, init Initiative) (Initiative, error) {
	var resp Initiative
	endpoint := fmt.Sprintf("v0/steps/%d/initiatives", stepID)
	err := c.do(ctx, http.MethodPost, endpoint, init, &resp)
	return resp, err
}

// Initiative fetches one initiative with subtasks and its detail score.
func (c *Client) Initiative(ctx context.Context, id int) (InitiativeDetail, error) {
	var resp InitiativeDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/initiatives/%d", id), nil, &resp)
	return resp, err
}

// UpdateInitiative patches an initiative. Only the fields present in the
// patch map are changed.
func (c *Client) UpdateInitiative(ctx context.Context, id int, patch map[string]any) (Initiative, error) {
	var resp Initiative
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("v0/initiatives/%d", id), patch, &resp)
	return resp, err
}

// DeleteInitiative removes an initiative and its subtasks.
func (c *Client) DeleteInitiative(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("v0/initiatives/%d", id), nil, nil)
}

// Reset discards all workflow state.
func (c *Client) Reset(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodPost, "v0/reset", nil, &resp)
	return resp, err
}

// CatalogMatrix returns the full report matrix.
func (c *Client) CatalogMatrix(ctx context.Context) (Matrix, error) {
	var resp Matrix
	err := c.do(ctx, http.MethodGet, "v0/catalog/matrix", nil, &resp)
	return resp, err
}

// CatalogCell resolves one matrix cell.
func (c *Client) CatalogCell(ctx context.Context, lever, stage string) (Cell, error) {
	var resp Cell
	endpoint := fmt.Sprintf("v0/catalog/cell?lever=%s&stage=%s",
		url.QueryEscape(lever), url.QueryEscape(stage))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CatalogReport resolves a report id to its name and analysis step.
func (c *Client) CatalogReport(ctx context.Context, id string) (ReportLookup, error) {
	var resp ReportLookup
	err := c.do(ctx, http.MethodGet, "v0/catalog/reports/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Seed merges the server's bundled fixture into the workflow.
func (c *Client) Seed(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodPost, "v0/seed", nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ExportSummary returns the final markdown summary.
func (c *Client) ExportSummary(ctx context.Context) (string, error) {
	body, err := c.raw(ctx, http.MethodGet, "v0/export/summary")
	if err != nil {
		return "", err
	}
	return string(body), nil
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
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
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

func (c *Client) raw(ctx context.Context, method, endpoint string) ([]byte, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), nil)
	if err != nil {
		return nil, err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return b, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
