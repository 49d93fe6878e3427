package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Registry Tests

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)

	// Пустой реестр
	if r.Count() != 0 {
		t.Errorf("expected empty registry")
	}

	// Регистрация
	if err := r.Register(DefinitionFor(NewDelayStep(), "delay")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 step, got %d", r.Count())
	}

	// Получение
	def, ok := r.Lookup(domain.CategoryAction, domain.SubtypeDelay)
	if !ok {
		t.Fatal("delay should be registered")
	}
	if def.Kind.Subtype != domain.SubtypeDelay {
		t.Errorf("expected delay, got %s", def.Kind)
	}

	// Несуществующий тип
	_, err := r.Get(domain.Kind{Category: domain.CategoryAction, Subtype: domain.SubtypeHTTP})
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("expected ErrStepNotFound, got %v", err)
	}

	// Unregister
	r.Unregister(def.Kind)
	if r.Has(def.Kind) {
		t.Error("should not have delay after unregister")
	}
}

func TestRegistry_RejectsIncompleteDefinitions(t *testing.T) {
	r := NewRegistry(nil)
	base := DefinitionFor(NewDelayStep(), "delay")

	noValidator := base
	noValidator.Validate = nil
	if err := r.Register(noValidator); !errors.Is(err, ErrMissingValidator) {
		t.Errorf("expected ErrMissingValidator, got %v", err)
	}

	noDefaults := base
	noDefaults.DefaultConfig = nil
	if err := r.Register(noDefaults); !errors.Is(err, ErrMissingDefaults) {
		t.Errorf("expected ErrMissingDefaults, got %v", err)
	}

	noHandler := base
	noHandler.Handler = nil
	if err := r.Register(noHandler); !errors.Is(err, ErrMissingHandler) {
		t.Errorf("expected ErrMissingHandler, got %v", err)
	}

	unknown := base
	unknown.Kind = domain.Kind{Category: domain.CategoryTrigger, Subtype: domain.SubtypeDelay}
	if err := r.Register(unknown); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}

	if r.Count() != 0 {
		t.Errorf("rejected definitions should not be stored, got %d", r.Count())
	}
}

func TestRegistry_OverwriteKeepsLatest(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	r.MustRegister(DefinitionFor(NewDelayStep(), "first"))
	r.MustRegister(DefinitionFor(NewDelayStep(), "second"))

	def, _ := r.Lookup(domain.CategoryAction, domain.SubtypeDelay)
	if def.Description != "second" {
		t.Errorf("expected overwritten definition, got %q", def.Description)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 step, got %d", r.Count())
	}

	// Перезапись не молчаливая
	if !strings.Contains(buf.String(), "step definition overwritten") {
		t.Errorf("expected overwrite warning in log, got %q", buf.String())
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := DefaultRegistry(Options{})

	errs := r.Validate(domain.CategoryLogic, domain.SubtypeIf, map[string]any{})
	if len(errs) != 3 {
		t.Errorf("expected 3 errors, got %v", errs)
	}

	errs = r.Validate(domain.CategoryLogic, domain.SubtypeIf, map[string]any{
		"field": "a", "operator": "equals", "value": 1,
	})
	if len(errs) != 0 {
		t.Errorf("expected valid config, got %v", errs)
	}

	errs = r.Validate(domain.CategoryLogic, "switch", nil)
	if len(errs) != 1 || !strings.Contains(errs[0], "no handler registered for logic/switch") {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(Options{})

	if missing := r.Missing(); len(missing) != 0 {
		t.Errorf("default registry misses kinds: %v", missing)
	}
	if r.Count() != len(domain.KnownKinds()) {
		t.Errorf("expected %d kinds, got %d", len(domain.KnownKinds()), r.Count())
	}

	// Только if-gate ветвится
	for _, def := range r.Definitions() {
		want := def.Kind.Subtype == domain.SubtypeIf
		if def.Branching != want {
			t.Errorf("%s: branching=%v", def.Kind, def.Branching)
		}
		if def.DefaultConfig() == nil {
			t.Errorf("%s: default config should not be nil", def.Kind)
		}
	}
}

// Trigger Tests

func TestManualTrigger(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	step := &ManualTrigger{now: func() time.Time { return fixed }}

	res := step.Execute(context.Background(), &ExecContext{NodeID: "start"})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}

	out := res.Output.(map[string]any)
	if out["triggered"] != true || out["triggeredBy"] != "start" {
		t.Errorf("unexpected output: %v", out)
	}
	if _, ok := out["data"]; ok {
		t.Error("data should be omitted without seed input")
	}

	res = step.Execute(context.Background(), &ExecContext{NodeID: "start", Input: map[string]any{"k": "v"}})
	if res.Output.(map[string]any)["data"] == nil {
		t.Error("seed input should be passed as data")
	}
}

func TestWebhookTrigger_PassThrough(t *testing.T) {
	step := NewWebhookTrigger()
	payload := map[string]any{"order": 42}

	res := step.Execute(context.Background(), &ExecContext{NodeID: "hook", Input: payload})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if res.Output.(map[string]any)["order"] != 42 {
		t.Errorf("payload should pass through, got %v", res.Output)
	}

	if errs := step.Validate(map[string]any{"method": "TRACE"}); len(errs) != 1 {
		t.Errorf("expected method error, got %v", errs)
	}
}

func TestScheduleTrigger(t *testing.T) {
	step := NewScheduleTrigger()

	if errs := step.Validate(map[string]any{"cron": "not a cron"}); len(errs) != 1 {
		t.Errorf("expected cron error, got %v", errs)
	}
	if errs := step.Validate(map[string]any{}); len(errs) != 1 {
		t.Errorf("expected missing cron error, got %v", errs)
	}
	if errs := step.Validate(map[string]any{"cron": "0 9 * * *", "timezone": "Mars/Base"}); len(errs) != 1 {
		t.Errorf("expected timezone error, got %v", errs)
	}

	res := step.Execute(context.Background(), &ExecContext{
		NodeID: "nightly",
		Config: map[string]any{"cron": "0 9 * * *"},
		Input:  map[string]any{"scheduledTime": "2024-01-01T09:00:00Z"},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}

	out := res.Output.(map[string]any)
	if out["scheduledTime"] != "2024-01-01T09:00:00Z" {
		t.Errorf("unexpected scheduledTime: %v", out["scheduledTime"])
	}
	if out["nextRun"] != "2024-01-02T09:00:00Z" {
		t.Errorf("unexpected nextRun: %v", out["nextRun"])
	}
}

// Delay Step Tests

func TestDelayStep_Execute(t *testing.T) {
	step := NewDelayStep()

	start := time.Now()
	res := step.Execute(context.Background(), &ExecContext{
		NodeID: "wait",
		Config: map[string]any{"duration_ms": 50},
	})
	elapsed := time.Since(start)

	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}

	// Проверяем, что задержка была выполнена
	if elapsed < 50*time.Millisecond {
		t.Errorf("delay was too short: %v", elapsed)
	}
	if res.Output.(map[string]any)["duration_ms"] != int64(50) {
		t.Errorf("unexpected output: %v", res.Output)
	}
}

func TestDelayStep_Cancellation(t *testing.T) {
	step := NewDelayStep()

	// Отменяем через 100ms
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := step.Execute(ctx, &ExecContext{Config: map[string]any{"duration_sec": 1}})
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("expected cancellation failure")
	}
	if !strings.Contains(res.Error, ErrStepCancelled.Error()) {
		t.Errorf("expected cancellation message, got %s", res.Error)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestDelayStep_Validate(t *testing.T) {
	step := NewDelayStep()

	if errs := step.Validate(map[string]any{}); len(errs) != 1 {
		t.Errorf("expected error for missing duration, got %v", errs)
	}
	if errs := step.Validate(map[string]any{"duration_sec": 7200}); len(errs) != 1 {
		t.Errorf("expected error for too long delay, got %v", errs)
	}
	if errs := step.Validate(map[string]any{"duration_ms": "250"}); len(errs) != 0 {
		t.Errorf("rendered string duration should be valid, got %v", errs)
	}
}

// HTTP Step Tests

func TestHTTPStep_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer server.Close()

	res := NewHTTPStep().Execute(context.Background(), &ExecContext{
		Config: map[string]any{"method": "GET", "url": server.URL},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}

	out := res.Output.(map[string]any)
	if out["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", out["status_code"])
	}
	body, ok := out["body"].(map[string]any)
	if !ok || body["status"] != "ok" {
		t.Errorf("unexpected body: %v", out["body"])
	}
}

func TestHTTPStep_POST_InputAsBody(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json")
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	res := NewHTTPStep().Execute(context.Background(), &ExecContext{
		Config: map[string]any{"method": "post", "url": server.URL},
		Input:  map[string]any{"name": "test"},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}

	// Вход шага ушёл телом запроса
	if received["name"] != "test" {
		t.Errorf("expected input as body, got %v", received)
	}
}

func TestHTTPStep_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	res := NewHTTPStep().Execute(context.Background(), &ExecContext{
		Config: map[string]any{"url": server.URL},
	})
	if res.Success {
		t.Fatal("expected failure for 502")
	}
	if res.Error != "HTTP 502: Bad Gateway" {
		t.Errorf("unexpected error: %s", res.Error)
	}
}

func TestHTTPStep_Validate(t *testing.T) {
	step := NewHTTPStep()

	tests := []struct {
		name   string
		config map[string]any
		valid  bool
	}{
		{"missing url", map[string]any{}, false},
		{"bad scheme", map[string]any{"url": "ftp://x"}, false},
		{"bad method", map[string]any{"url": "http://x", "method": "BREW"}, false},
		{"negative timeout", map[string]any{"url": "http://x", "timeout_sec": -1}, false},
		{"ok", map[string]any{"url": "https://x", "method": "delete"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := step.Validate(tt.config)
			if (len(errs) == 0) != tt.valid {
				t.Errorf("valid=%v, errors=%v", tt.valid, errs)
			}
		})
	}
}

func TestHTTPStep_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := NewHTTPStep().Execute(ctx, &ExecContext{Config: map[string]any{"url": server.URL}})
	if res.Success {
		t.Fatal("expected cancellation failure")
	}
	if !strings.Contains(res.Error, ErrStepCancelled.Error()) {
		t.Errorf("expected cancellation message, got %s", res.Error)
	}
}

// Transform Step Tests

func TestTransformStep_Execute(t *testing.T) {
	step := NewTransformStep()

	res := step.Execute(context.Background(), &ExecContext{
		Config: map[string]any{
			"mappings": map[string]any{
				"total":  "2",
				"items":  `[1,2]`,
				"name":   "plain",
				"static": 7,
			},
			"merge_input": true,
		},
		Input: map[string]any{"id": "abc"},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}

	out := res.Output.(map[string]any)
	if out["total"] != int64(2) {
		t.Errorf("expected total int64(2), got %v (%T)", out["total"], out["total"])
	}
	if items, ok := out["items"].([]any); !ok || len(items) != 2 {
		t.Errorf("expected decoded array, got %v", out["items"])
	}
	if out["name"] != "plain" || out["static"] != 7 || out["id"] != "abc" {
		t.Errorf("unexpected output: %v", out)
	}
}

func TestTransformStep_PassThrough(t *testing.T) {
	input := []any{1, 2, 3}
	res := NewTransformStep().Execute(context.Background(), &ExecContext{Config: map[string]any{}, Input: input})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Error)
	}
	if out, ok := res.Output.([]any); !ok || len(out) != 3 {
		t.Errorf("input should pass through, got %v", res.Output)
	}

	if errs := NewTransformStep().Validate(map[string]any{"mappings": "x"}); len(errs) != 1 {
		t.Errorf("expected mappings error, got %v", errs)
	}
}
