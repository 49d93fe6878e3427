package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// WorkflowSummary — элемент списка workflows.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	UpdatedAt   string `json:"updated_at"`
}

// ValidationIssue — одна ошибка валидации.
type ValidationIssue struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResponse — результат проверки workflow.
type ValidationResponse struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
}

// ExecutionResponse — полная запись run.
type ExecutionResponse struct {
	domain.ExecutionRecord
	DurationMs int64 `json:"duration_ms"`
}

// ExecutionSummary — элемент списка runs.
type ExecutionSummary struct {
	RunID        string `json:"run_id"`
	WorkflowID   string `json:"workflow_id"`
	Status       string `json:"status"`
	StartedAt    string `json:"started_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
	FailedNodeID string `json:"failed_node_id,omitempty"`
	Nodes        int    `json:"nodes_executed"`
}

// StepResponse — описание шага.
type StepResponse struct {
	Kind          string         `json:"kind"`
	Description   string         `json:"description"`
	Branching     bool           `json:"branching"`
	DefaultConfig map[string]any `json:"default_config"`
}

// --- Request types ---

// ExecuteRequest — запуск workflow.
type ExecuteRequest struct {
	StartNodeID string `json:"startNodeId,omitempty"`
	Input       any    `json:"input,omitempty"`
}

// ListExecutionsOpts — параметры фильтрации runs.
type ListExecutionsOpts struct {
	WorkflowID string
	Limit      int
}

// envelope — общий конверт ответов API.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для flowgraph API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// execute ждёт завершения run
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает все workflows.
func (c *Client) ListWorkflows() ([]WorkflowSummary, error) {
	var workflows []WorkflowSummary
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// CreateWorkflow создаёт workflow из документа.
func (c *Client) CreateWorkflow(wf *domain.Workflow) (*domain.Workflow, error) {
	var created domain.Workflow
	err := c.post("/api/v1/workflows", wf, &created)
	return &created, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*domain.Workflow, error) {
	var wf domain.Workflow
	err := c.get("/api/v1/workflows/"+url.PathEscape(id), &wf)
	return &wf, err
}

// DeleteWorkflow удаляет workflow.
func (c *Client) DeleteWorkflow(id string) error {
	return c.delete("/api/v1/workflows/" + url.PathEscape(id))
}

// ValidateWorkflow проверяет сохранённый workflow.
func (c *Client) ValidateWorkflow(id string) (*ValidationResponse, error) {
	var resp ValidationResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(id)+"/validate", nil, &resp)
	return &resp, err
}

// --- Runs ---

// Execute выполняет workflow и ждёт итоговую запись.
func (c *Client) Execute(id string, req ExecuteRequest) (*ExecutionResponse, error) {
	var rec ExecutionResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(id)+"/execute", req, &rec)
	return &rec, err
}

// Cancel останавливает активный run workflow.
func (c *Client) Cancel(id string) (bool, error) {
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.post("/api/v1/workflows/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp.Cancelled, err
}

// Trigger отправляет webhook и возвращает ID run.
func (c *Client) Trigger(id string, payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	var resp struct {
		RunID string `json:"run_id"`
	}
	err := c.post("/api/v1/webhooks/"+url.PathEscape(id), payload, &resp)
	return resp.RunID, err
}

// --- Executions ---

// ListExecutions возвращает записи runs.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionSummary, error) {
	params := url.Values{}
	if opts.WorkflowID != "" {
		params.Set("workflow_id", opts.WorkflowID)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var records []ExecutionSummary
	err := c.list("/api/v1/executions", params, &records)
	return records, err
}

// ListActiveExecutions возвращает runs, которые выполняются сейчас.
func (c *Client) ListActiveExecutions() ([]ExecutionSummary, error) {
	var records []ExecutionSummary
	err := c.list("/api/v1/executions/active", nil, &records)
	return records, err
}

// GetExecution возвращает запись run.
func (c *Client) GetExecution(runID string) (*ExecutionResponse, error) {
	var rec ExecutionResponse
	err := c.get("/api/v1/executions/"+url.PathEscape(runID), &rec)
	return &rec, err
}

// --- Steps ---

// ListSteps возвращает зарегистрированные шаги.
func (c *Client) ListSteps() ([]StepResponse, error) {
	var list []StepResponse
	err := c.list("/api/v1/steps", nil, &list)
	return list, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, into any) error {
	return c.call(http.MethodGet, path, nil, into)
}

func (c *Client) post(path string, body, into any) error {
	return c.call(http.MethodPost, path, body, into)
}

func (c *Client) delete(path string) error {
	return c.call(http.MethodDelete, path, nil, nil)
}

// list читает списочный ответ. Поле total не нужно: это длина data.
func (c *Client) list(path string, params url.Values, into any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.call(http.MethodGet, path, nil, into)
}

// call выполняет запрос и раскладывает data из конверта в into.
// Ответ со статусом >= 400 превращается в ошибку "CODE: message".
func (c *Client) call(method, path string, body, into any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		if decodeErr != nil || env.Error == nil {
			return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if into == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, into)
}
