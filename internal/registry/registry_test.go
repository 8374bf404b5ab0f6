package registry

import (
	"context"
	"errors"
	"testing"
)

func noop(_ context.Context, _ map[string]any) (map[string]any, error) {
	return nil, nil
}

func TestRegistry_RegisterResolve(t *testing.T) {
	reg := New()
	reg.Register("echo", noop, WithDescription("returns input as is"))

	task, err := reg.Resolve("echo")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.Name != "echo" {
		t.Errorf("expected name echo, got %s", task.Name)
	}
	if task.Description != "returns input as is" {
		t.Errorf("unexpected description: %q", task.Description)
	}
	if task.Fn == nil {
		t.Error("expected non-nil Fn")
	}
}

func TestRegistry_ResolveNotFound(t *testing.T) {
	reg := New()

	_, err := reg.Resolve("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Has(t *testing.T) {
	reg := New()
	reg.Register("echo", noop)

	if !reg.Has("echo") {
		t.Error("expected Has to report echo")
	}
	if reg.Has("missing") {
		t.Error("expected Has to reject missing")
	}
}

func TestRegistry_ReRegisterOverwrites(t *testing.T) {
	reg := New()
	reg.Register("task", noop, WithDescription("first"))
	reg.Register("task", noop, WithDescription("second"))

	task, err := reg.Resolve("task")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if task.Description != "second" {
		t.Errorf("expected description second, got %q", task.Description)
	}

	if got := len(reg.Names()); got != 1 {
		t.Errorf("expected 1 registered name, got %d", got)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := New()
	reg.Register("zeta", noop)
	reg.Register("alpha", noop)
	reg.Register("mid", noop)

	names := reg.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("names[%d]: expected %s, got %s", i, name, names[i])
		}
	}
}

func TestRegistry_Validators(t *testing.T) {
	inputErr := errors.New("bad input")

	reg := New()
	reg.Register("strict", noop,
		WithInputValidator(ValidatorFunc(func(data map[string]any) error {
			if _, ok := data["required"]; !ok {
				return inputErr
			}
			return nil
		})),
		WithOutputValidator(ValidatorFunc(func(map[string]any) error {
			return nil
		})),
	)

	task, err := reg.Resolve("strict")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := task.InputValidator.Validate(map[string]any{}); !errors.Is(err, inputErr) {
		t.Errorf("expected input validator error, got %v", err)
	}
	if err := task.InputValidator.Validate(map[string]any{"required": 1}); err != nil {
		t.Errorf("expected valid input to pass, got %v", err)
	}
	if err := task.OutputValidator.Validate(nil); err != nil {
		t.Errorf("expected output validator to pass, got %v", err)
	}
}
