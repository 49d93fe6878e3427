package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func testOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr}, &stdout, &stderr
}

func runCmd(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_ListWorkflows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workflows" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []map[string]any{{"id": "orders", "name": "Orders", "is_active": true, "nodes": 3}},
			"total": 1,
		})
	}))
	defer srv.Close()

	workflows, err := NewClient(srv.URL + "/").ListWorkflows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(workflows) != 1 || workflows[0].ID != "orders" || workflows[0].Nodes != 3 {
		t.Errorf("unexpected workflows: %+v", workflows)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "workflow not found"},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetWorkflow("ghost")
	if err == nil || err.Error() != "NOT_FOUND: workflow not found" {
		t.Errorf("unexpected error: %v", err)
	}

	// Тело без конверта
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer plain.Close()

	if err := NewClient(plain.URL).DeleteWorkflow("x"); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected HTTP 502 error, got %v", err)
	}
}

func TestClient_ListExecutionsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("workflow_id"); got != "orders" {
			t.Errorf("expected workflow_id=orders, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected limit=5, got %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}, "total": 0})
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL).ListExecutions(ListExecutionsOpts{WorkflowID: "orders", Limit: 5})
	if err != nil || len(records) != 0 {
		t.Errorf("unexpected result: %v, %v", records, err)
	}
}

func TestTriggerCmd(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/webhooks/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		writeJSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"run_id": "run-1"}})
	}))
	defer srv.Close()

	out, stdout, _ := testOutput(true)
	cmd := NewTriggerCmd(func() *Client { return NewClient(srv.URL) }, func() *Output { return out })

	if err := runCmd(cmd, "orders", "--payload", `{"total":5}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != `{"total":5}` {
		t.Errorf("unexpected body %q", body)
	}
	if !strings.Contains(stdout.String(), "run-1") {
		t.Errorf("run id not printed: %s", stdout.String())
	}

	// Невалидный payload не отправляется
	cmd = NewTriggerCmd(func() *Client { return NewClient(srv.URL) }, func() *Output { return out })
	if err := runCmd(cmd, "orders", "--payload", "{"); err == nil {
		t.Error("expected error for invalid payload")
	}
}

func TestExecuteCmd(t *testing.T) {
	status := "completed"
	var req ExecuteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"run_id":       "run-1",
			"workflow_id":  "orders",
			"status":       status,
			"error":        "HTTP 500: Internal Server Error",
			"logs":         []any{},
			"node_outputs": map[string]any{"start": map[string]any{}},
		}})
	}))
	defer srv.Close()

	out, _, stderr := testOutput(false)
	clientFn := func() *Client { return NewClient(srv.URL) }
	outputFn := func() *Output { return out }

	err := runCmd(NewExecuteCmd(clientFn, outputFn), "orders", "--start-node", "start", "--input", `{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.StartNodeID != "start" {
		t.Errorf("expected start node in request, got %+v", req)
	}
	if !strings.Contains(stderr.String(), "run-1: completed") {
		t.Errorf("unexpected summary: %s", stderr.String())
	}

	// Failed run — ошибка команды
	status = "failed"
	err = runCmd(NewExecuteCmd(clientFn, outputFn), "orders")
	if !errors.Is(err, ErrRunFailed) {
		t.Errorf("expected ErrRunFailed, got %v", err)
	}

	err = runCmd(NewExecuteCmd(clientFn, outputFn), "orders", "--input", "nope")
	if err == nil || !strings.Contains(err.Error(), "--input") {
		t.Errorf("expected input flag error, got %v", err)
	}
}

func writeWorkflowFile(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

const localWorkflow = `{
	"id": "local",
	"name": "local",
	"nodes": [
		{"id": "start", "category": "trigger", "subtype": "manual"},
		{"id": "shape", "category": "action", "subtype": "transform",
		 "config": {"mappings": {"greeting": "hello {{ .Input.data.name }}"}}}
	],
	"edges": [{"id": "e1", "source": "start", "target": "shape"}]
}`

func TestLocalRun(t *testing.T) {
	path := writeWorkflowFile(t, localWorkflow)
	out, stdout, _ := testOutput(true)

	if err := runCmd(NewLocalCmd(func() *Output { return out }), "run", path, "--input", `{"name":"Ann"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rec ExecutionResponse
	if err := json.Unmarshal(stdout.Bytes(), &rec); err != nil {
		t.Fatalf("decode output: %v (%s)", err, stdout.String())
	}
	if rec.Status != "completed" || len(rec.NodeOutputs) != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	shape, _ := rec.NodeOutputs["shape"].(map[string]any)
	if shape["greeting"] != "hello Ann" {
		t.Errorf("unexpected transform output: %v", rec.NodeOutputs["shape"])
	}
}

func TestLocalValidate(t *testing.T) {
	out, stdout, stderr := testOutput(false)
	outputFn := func() *Output { return out }

	if err := runCmd(NewLocalCmd(outputFn), "validate", writeWorkflowFile(t, localWorkflow)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr.String(), "valid") {
		t.Errorf("unexpected message: %s", stderr.String())
	}

	invalid := `{"nodes": [{"id": "wait", "category": "action", "subtype": "delay", "config": {}}]}`
	err := runCmd(NewLocalCmd(outputFn), "validate", writeWorkflowFile(t, invalid))
	if !errors.Is(err, ErrInvalidWorkflow) {
		t.Fatalf("expected ErrInvalidWorkflow, got %v", err)
	}
	if !strings.Contains(stdout.String(), "wait") {
		t.Errorf("issues should name the node: %s", stdout.String())
	}

	if err := runCmd(NewLocalCmd(outputFn), "validate", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStepsCmd(t *testing.T) {
	out, stdout, _ := testOutput(true)

	if err := runCmd(NewStepsCmd(func() *Output { return out })); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var list []StepResponse
	if err := json.Unmarshal(stdout.Bytes(), &list); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(list) != 10 {
		t.Fatalf("expected 10 steps, got %d", len(list))
	}
	if list[0].Kind != "action/database" {
		t.Errorf("expected sorted kinds, got %s first", list[0].Kind)
	}
}

func TestOutput_Table(t *testing.T) {
	out, stdout, stderr := testOutput(false)

	out.Table([]string{"ID", "ERROR"}, [][]string{{"a", strings.Repeat("x", 100) + "\nmore"}})
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected table: %q", stdout.String())
	}
	if !strings.HasSuffix(lines[1], "…") || strings.Contains(lines[1], "more") {
		t.Errorf("long cell should be truncated: %q", lines[1])
	}

	out.Table([]string{"ID"}, nil)
	if !strings.Contains(stderr.String(), "No results") {
		t.Errorf("empty table should print a message, got %q", stderr.String())
	}
}
