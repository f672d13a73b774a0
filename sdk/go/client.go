package workplacesdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal workplace HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://127.0.0.1:8080/v0.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Objective       string     `json:"objective"`
	Priority        string     `json:"priority"`
	AssignedModelID *string    `json:"assigned_model_id,omitempty"`
	ModelName       string     `json:"model_name"`
	Stage           string     `json:"stage"`
	CreatedAt       time.Time  `json:"created_at"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	Tags            []string   `json:"tags"`
	Blockers        string     `json:"blockers,omitempty"`
}

type OpsProfile struct {
	Escalation  string `json:"escalation"`
	AccessScope string `json:"access_scope"`
	Notes       string `json:"notes"`
}

type Model struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Provider      string     `json:"provider"`
	Modality      string     `json:"modality"`
	Status        string     `json:"status"`
	Load          float64    `json:"load"`
	Capabilities  []string   `json:"capabilities"`
	LastSync      string     `json:"last_sync"`
	Description   string     `json:"description"`
	AssignedTasks int        `json:"assigned_tasks"`
	Profile       OpsProfile `json:"profile"`
}

type Automation struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Trigger     string   `json:"trigger"`
	Actions     []string `json:"actions"`
	Status      string   `json:"status"`
	SuccessRate float64  `json:"success_rate"`
}

// Activity is one activity log entry.
type Activity struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Channel   string    `json:"channel"`
	TaskID    string    `json:"task_id,omitempty"`
}

type Metrics struct {
	ModelsOnline int        `json:"models_online"`
	ModelsTotal  int        `json:"models_total"`
	ActiveTasks  int        `json:"active_tasks"`
	FleetLoad    float64    `json:"fleet_load"`
	LastIntake   *time.Time `json:"last_intake,omitempty"`
	Version      uint64     `json:"version"`
}

// State is a full workspace snapshot.
type State struct {
	Version     uint64       `json:"version"`
	Models      []Model      `json:"models"`
	Tasks       []Task       `json:"tasks"`
	Automations []Automation `json:"automations"`
	Activity    []Activity   `json:"activity"`
}

// PaginatedActivity wraps list responses with cursors.
type PaginatedActivity struct {
	Items      []Activity `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

type CreateTaskRequest struct {
	Title           string     `json:"title"`
	Objective       string     `json:"objective"`
	Priority        string     `json:"priority,omitempty"`
	Stage           string     `json:"stage,omitempty"`
	AssignedModelID string     `json:"assigned_model_id,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	TagsInput       string     `json:"tags_input,omitempty"`
	Blockers        string     `json:"blockers,omitempty"`
}

type LogEventRequest struct {
	Actor   string `json:"actor,omitempty"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

type ActivityQuery struct {
	Channel string
	TaskID  string
	Actor   string
	Limit   int
	Cursor  string
}

// APIError wraps non-2xx responses. Code and Message are filled from the
// error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

func (c *Client) State(ctx context.Context) (State, error) {
	var resp State
	err := c.do(ctx, http.MethodGet, "state", nil, &resp)
	return resp, err
}

func (c *Client) Metrics(ctx context.Context) (Metrics, error) {
	var resp Metrics
	err := c.do(ctx, http.MethodGet, "metrics", nil, &resp)
	return resp, err
}

func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var resp []Model
	err := c.do(ctx, http.MethodGet, "models", nil, &resp)
	return resp, err
}

// UpdateModel patches a model. Nil fields are left unchanged.
func (c *Client) UpdateModel(ctx context.Context, id string, status *string, load *float64) (Model, error) {
	body := map[string]any{}
	if status != nil {
		body["status"] = *status
	}
	if load != nil {
		body["load"] = *load
	}
	var resp Model
	err := c.do(ctx, http.MethodPatch, "models/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// Tasks lists tasks, optionally restricted to one stage.
func (c *Client) Tasks(ctx context.Context, stage string) ([]Task, error) {
	endpoint := "tasks"
	if stage != "" {
		endpoint += "?stage=" + url.QueryEscape(stage)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Task(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateTask creates a task. Titles of 4 characters or fewer and objectives of
// 8 or fewer are rejected with a 422.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", req, &resp)
	return resp, err
}

func (c *Client) SetStage(ctx context.Context, id, stage string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%s/stage", url.PathEscape(id)), map[string]any{"stage": stage}, &resp)
	return resp, err
}

// Advance moves a task to the next stage; the API answers 409 at the last one.
func (c *Client) Advance(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%s/advance", url.PathEscape(id)), nil, &resp)
	return resp, err
}

func (c *Client) Back(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%s/back", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// Assign points a task at a model. An empty modelID clears the assignment.
func (c *Client) Assign(ctx context.Context, id, modelID string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%s/assignee", url.PathEscape(id)), map[string]any{"model_id": modelID}, &resp)
	return resp, err
}

func (c *Client) Automations(ctx context.Context) ([]Automation, error) {
	var resp []Automation
	err := c.do(ctx, http.MethodGet, "automations", nil, &resp)
	return resp, err
}

func (c *Client) ToggleAutomation(ctx context.Context, id string) (Automation, error) {
	var resp Automation
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("automations/%s/toggle", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ActivityPage returns a page of the activity journal, most recent first.
func (c *Client) ActivityPage(ctx context.Context, q ActivityQuery) (PaginatedActivity, error) {
	params := url.Values{}
	if q.Channel != "" {
		params.Set("channel", q.Channel)
	}
	if q.TaskID != "" {
		params.Set("task_id", q.TaskID)
	}
	if q.Actor != "" {
		params.Set("actor", q.Actor)
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	endpoint := "activity"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp PaginatedActivity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) LogEvent(ctx context.Context, req LogEventRequest) (Activity, error) {
	var resp Activity
	err := c.do(ctx, http.MethodPost, "activity", req, &resp)
	return resp, err
}

// Stream calls fn with every snapshot the server pushes until ctx is done,
// the stream ends or fn returns an error. slices is a comma-separated subset
// of models,tasks,automations,activity; empty watches everything.
func (c *Client) Stream(ctx context.Context, slices string, fn func(State) error) error {
	endpoint := c.base() + "/stream"
	if slices != "" {
		endpoint += "?slices=" + url.QueryEscape(slices)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	// No client timeout: the stream is bounded by ctx.
	hc := &http.Client{}
	if c.HTTPClient != nil {
		hc = &http.Client{Transport: c.HTTPClient.Transport}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var st State
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &st); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		if err := fn(st); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
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
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
