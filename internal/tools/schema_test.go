package tools

import (
	"encoding/json"
	"strings"
	"testing"
)

func compileDef(t *testing.T, schema string) *Definition {
	t.Helper()
	r := NewRegistry()
	def := &Definition{
		Name:    "under_test",
		Handler: noopHandler,
		Schema:  json.RawMessage(schema),
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return def
}

func TestValidateInputAccepts(t *testing.T) {
	def := compileDef(t, `{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": "integer", "minimum": 1}
		},
		"required": ["query"]
	}`)

	if err := ValidateInput(def, map[string]any{"query": "open deals", "limit": float64(5)}); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
}

func TestValidateInputNamesMissingField(t *testing.T) {
	def := compileDef(t, `{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`)

	err := ValidateInput(def, map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
	if !strings.Contains(err.Error(), "query") {
		t.Errorf("error should name the missing field, got: %v", err)
	}
}

func TestValidateInputNamesWrongTypeField(t *testing.T) {
	def := compileDef(t, `{
		"type": "object",
		"properties": {"limit": {"type": "integer"}}
	}`)

	err := ValidateInput(def, map[string]any{"limit": "ten"})
	if err == nil {
		t.Fatal("expected error for wrong type")
	}
	if !strings.Contains(err.Error(), "limit") {
		t.Errorf("error should name the offending field, got: %v", err)
	}
}

func TestValidateInputNoSchema(t *testing.T) {
	def := &Definition{Name: "free_form", Handler: noopHandler}
	if err := ValidateInput(def, map[string]any{"anything": true}); err != nil {
		t.Errorf("schemaless tool rejected input: %v", err)
	}
}
