package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTask_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"message": "ok"})
	}))
	defer server.Close()

	output, err := HTTPTask(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", output["status_code"])
	}
	body, ok := output["body"].(map[string]any)
	if !ok {
		t.Fatalf("expected JSON body, got %T", output["body"])
	}
	if body["message"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestHTTPTask_PostWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if payload["name"] != "conductor" {
			t.Errorf("unexpected request body: %v", payload)
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	output, err := HTTPTask(context.Background(), map[string]any{
		"method": "POST",
		"url":    server.URL,
		"body":   map[string]any{"name": "conductor"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output["status_code"] != 201 {
		t.Errorf("expected status_code 201, got %v", output["status_code"])
	}
}

func TestHTTPTask_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Token"); got != "secret" {
			t.Errorf("expected X-Token header, got %q", got)
		}
	}))
	defer server.Close()

	_, err := HTTPTask(context.Background(), map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"X-Token": "secret"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestHTTPTask_ErrorStatusKeepsOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer server.Close()

	output, err := HTTPTask(context.Background(), map[string]any{"url": server.URL})
	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest, got %v", err)
	}

	// Выход возвращается вместе с ошибкой: код и тело доступны
	// для диагностики.
	if output["status_code"] != 502 {
		t.Errorf("expected status_code 502, got %v", output["status_code"])
	}
	body, ok := output["body"].(map[string]any)
	if !ok || body["error"] != "upstream" {
		t.Errorf("expected error body, got %v", output["body"])
	}
}

func TestHTTPTask_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer server.Close()

	output, err := HTTPTask(context.Background(), map[string]any{"url": server.URL})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output["body"] != "plain text" {
		t.Errorf("expected raw string body, got %v", output["body"])
	}
}

func TestHTTPTask_ConnectionError(t *testing.T) {
	_, err := HTTPTask(context.Background(), map[string]any{
		"url": "http://127.0.0.1:1/unreachable",
	})
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("expected ErrHTTPRequest, got %v", err)
	}
}

func TestValidateHTTPInput(t *testing.T) {
	if err := validateHTTPInput(map[string]any{"url": "http://example.com"}); err != nil {
		t.Errorf("expected valid input to pass, got %v", err)
	}
	if err := validateHTTPInput(map[string]any{}); err == nil {
		t.Error("expected error for missing url")
	}
	if err := validateHTTPInput(map[string]any{"url": ""}); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestDelayTask(t *testing.T) {
	start := time.Now()
	output, err := DelayTask(context.Background(), map[string]any{"duration_ms": 30})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected at least 30ms delay, got %s", elapsed)
	}
	if output["delayed_ms"] != 30.0 {
		t.Errorf("expected delayed_ms 30, got %v", output["delayed_ms"])
	}
}

func TestDelayTask_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := DelayTask(ctx, map[string]any{"duration_ms": 5000})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected prompt cancellation, waited %s", elapsed)
	}
}

func TestTransformTask_Pick(t *testing.T) {
	output, err := TransformTask(context.Background(), map[string]any{
		"pick":  []any{"name", "count"},
		"name":  "conductor",
		"count": 3,
		"extra": "dropped",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output["name"] != "conductor" || output["count"] != 3 {
		t.Errorf("expected picked keys, got %v", output)
	}
	if _, exists := output["extra"]; exists {
		t.Error("expected extra to be dropped")
	}
}

func TestTransformTask_DefaultKeepsAllButControls(t *testing.T) {
	output, err := TransformTask(context.Background(), map[string]any{
		"name": "conductor",
		"set":  map[string]any{"added": true},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output["name"] != "conductor" {
		t.Errorf("expected passthrough of name, got %v", output)
	}
	if _, exists := output["set"]; exists {
		t.Error("expected control key set to be excluded")
	}
	if output["added"] != true {
		t.Errorf("expected set values applied, got %v", output)
	}
}

func TestTransformTask_Rename(t *testing.T) {
	output, err := TransformTask(context.Background(), map[string]any{
		"rename":   map[string]any{"old_name": "new_name"},
		"old_name": "value",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output["new_name"] != "value" {
		t.Errorf("expected renamed key, got %v", output)
	}
	if _, exists := output["old_name"]; exists {
		t.Error("expected old key to be removed")
	}
}

func TestNoopTask(t *testing.T) {
	input := map[string]any{"key": "value"}
	output, err := NoopTask(context.Background(), input)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output["key"] != "value" {
		t.Errorf("expected passthrough, got %v", output)
	}

	// Выход — копия: мутации не задевают вход.
	output["key"] = "mutated"
	if input["key"] != "value" {
		t.Error("expected input to stay unchanged")
	}
}

func TestBuiltin(t *testing.T) {
	reg := Builtin()
	for _, name := range []string{"http", "delay", "transform", "noop"} {
		if !reg.Has(name) {
			t.Errorf("expected builtin task %s", name)
		}
	}

	task, err := reg.Resolve("http")
	if err != nil {
		t.Fatalf("Resolve http: %v", err)
	}
	if task.InputValidator == nil {
		t.Error("expected input validator on http task")
	}
	if err := task.InputValidator.Validate(map[string]any{}); err == nil {
		t.Error("expected http validator to require url")
	}
}
