package domain

import (
	"errors"
	"testing"
)

// --- ExecutionRecord ---

func TestExecutionRecord_Lifecycle(t *testing.T) {
	rec := NewExecutionRecord("run-1", "wf-1")

	if rec.Status != ExecutionRunning {
		t.Fatalf("expected running, got %s", rec.Status)
	}
	if rec.NodeOutputs == nil || rec.Logs == nil {
		t.Fatal("outputs and logs should be initialized")
	}

	rec.AddLog(LogInfo, "a", "started", nil)
	rec.SetOutput("a", map[string]any{"ok": true})

	if !rec.MarkFailed("b", "boom") {
		t.Fatal("first transition should succeed")
	}
	if rec.Status != ExecutionFailed || rec.Error != "boom" || rec.FailedNodeID != "b" {
		t.Errorf("unexpected record state: %+v", rec)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}

	// Из финального статуса переходов нет
	if rec.MarkCompleted() {
		t.Error("transition out of terminal status should be rejected")
	}
	if rec.Status != ExecutionFailed {
		t.Errorf("status changed after terminal: %s", rec.Status)
	}

	// Запись неизменяема после завершения
	rec.AddLog(LogInfo, "", "late", nil)
	rec.SetOutput("c", 1)
	if len(rec.Logs) != 1 {
		t.Errorf("expected 1 log entry, got %d", len(rec.Logs))
	}
	if _, ok := rec.NodeOutputs["c"]; ok {
		t.Error("output should not be recorded after completion")
	}
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   ExecutionStatus
		terminal bool
	}{
		{ExecutionRunning, false},
		{ExecutionCompleted, true},
		{ExecutionFailed, true},
		{ExecutionCancelled, true},
	}

	for _, tt := range tests {
		if tt.status.IsTerminal() != tt.terminal {
			t.Errorf("%s: expected terminal=%v", tt.status, tt.terminal)
		}
	}
}

// --- Kinds ---

func TestKind_IsKnown(t *testing.T) {
	if !(Kind{CategoryLogic, SubtypeIf}).IsKnown() {
		t.Error("logic/if should be known")
	}
	if (Kind{CategoryTrigger, SubtypeIf}).IsKnown() {
		t.Error("trigger/if should not be known")
	}
	if len(KnownKinds()) != 10 {
		t.Errorf("expected 10 kinds, got %d", len(KnownKinds()))
	}
}

// --- SetConfigPath ---

func TestSetConfigPath_DoesNotMutate(t *testing.T) {
	shared := map[string]any{"keep": 1}
	original := map[string]any{
		"headers": map[string]any{"Accept": "json"},
		"other":   shared,
	}

	updated, err := SetConfigPath(original, []string{"headers", "Authorization"}, "Bearer x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	headers := updated["headers"].(map[string]any)
	if headers["Authorization"] != "Bearer x" || headers["Accept"] != "json" {
		t.Errorf("unexpected headers: %v", headers)
	}

	// Исходное дерево не изменилось
	if _, ok := original["headers"].(map[string]any)["Authorization"]; ok {
		t.Error("original tree was mutated")
	}

	// Поддеревья вне пути разделяются
	if updated["other"].(map[string]any)["keep"] != 1 {
		t.Error("sibling subtree lost")
	}
}

func TestSetConfigPath_CreatesIntermediate(t *testing.T) {
	updated, err := SetConfigPath(nil, []string{"a", "b", "c"}, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := GetConfigPath(updated, []string{"a", "b", "c"})
	if !ok || v != 42 {
		t.Errorf("expected 42, got %v (%v)", v, ok)
	}
}

func TestSetConfigPath_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
		path []string
		want error
	}{
		{"empty path", nil, nil, ErrEmptyPath},
		{"empty segment", nil, []string{"a", ""}, ErrEmptyPathSegment},
		{"proto", nil, []string{"__proto__", "x"}, ErrReservedPathSegment},
		{"constructor", nil, []string{"a", "constructor"}, ErrReservedPathSegment},
		{"prototype", nil, []string{"prototype"}, ErrReservedPathSegment},
		{"through scalar", map[string]any{"a": "str"}, []string{"a", "b"}, ErrPathNotObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SetConfigPath(tt.cfg, tt.path, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestWorkflow_NodeAndClone(t *testing.T) {
	wf := &Workflow{
		ID: "wf",
		Nodes: []Node{
			{ID: "a", Category: CategoryTrigger, Subtype: SubtypeManual, Config: map[string]any{"x": "y"}},
		},
	}

	node, ok := wf.Node("a")
	if !ok || node.Kind() != (Kind{CategoryTrigger, SubtypeManual}) {
		t.Fatalf("node lookup failed: %v %v", node, ok)
	}
	if _, ok := wf.Node("missing"); ok {
		t.Error("missing node should not be found")
	}

	clone, err := wf.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	clone.Nodes[0].Config["x"] = "changed"
	if wf.Nodes[0].Config["x"] != "y" {
		t.Error("clone shares config with original")
	}
}
