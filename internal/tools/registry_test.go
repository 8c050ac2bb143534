package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func noopHandler(_ context.Context, _ map[string]any) (string, error) {
	return "", nil
}

func TestRegisterRejectsBadDefinitions(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&Definition{Handler: noopHandler}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := r.Register(&Definition{Name: "no_handler"}); err == nil {
		t.Error("expected error for missing handler")
	}
	if err := r.Register(&Definition{
		Name:    "bad_schema",
		Handler: noopHandler,
		Schema:  json.RawMessage(`{"type": nope}`),
	}); err == nil {
		t.Error("expected error for invalid schema")
	}
}

func TestRegistryGetAndList(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&Definition{Name: name, Handler: noopHandler}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	if _, ok := r.Get("alpha"); !ok {
		t.Error("Get(alpha) not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) unexpectedly found")
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d tools, want 3", len(list))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if list[i].Name != want {
			t.Errorf("List[%d] = %s, want %s", i, list[i].Name, want)
		}
	}
}

func TestCatalogFiltersByPatterns(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"crm_search", "crm_update", "email_send", "echo"} {
		if err := r.Register(&Definition{Name: name, Handler: noopHandler}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	catalog := r.Catalog([]string{"crm_*", "echo"}, []string{"crm_update"})
	names := make([]string, len(catalog))
	for i, def := range catalog {
		names[i] = def.Name
	}
	if len(names) != 2 || names[0] != "crm_search" || names[1] != "echo" {
		t.Errorf("Catalog = %v, want [crm_search echo]", names)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	def, ok := r.Get("echo")
	if !ok {
		t.Fatal("echo not registered")
	}
	out, err := def.Handler(context.Background(), map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("echo handler: %v", err)
	}
	if out != "hello" {
		t.Errorf("echo output = %q, want hello", out)
	}

	if _, ok := r.Get("current_time"); !ok {
		t.Error("current_time not registered")
	}
}
