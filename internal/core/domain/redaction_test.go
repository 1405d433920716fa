package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestRedactionPolicyApply(t *testing.T) {
	payload := map[string]any{
		"matched_entity": "admin@sentrax.io",
		"raw_snippet":    "password=hunter2",
		"confidence":     90,
	}

	t.Run("empty policy forwards untouched", func(t *testing.T) {
		got := RedactionPolicy{}.Apply(payload)
		if !reflect.DeepEqual(got, payload) {
			t.Errorf("expected identical payload, got %v", got)
		}
	})

	t.Run("remove deletes the field", func(t *testing.T) {
		p := RedactionPolicy{RemoveFields: []string{"raw_snippet"}}
		got := p.Apply(payload)
		if _, ok := got["raw_snippet"]; ok {
			t.Error("raw_snippet should be removed")
		}
		if got["matched_entity"] != "admin@sentrax.io" {
			t.Error("untouched fields must survive")
		}
	})

	t.Run("full mask replaces value", func(t *testing.T) {
		p := RedactionPolicy{MaskFields: map[string]string{"raw_snippet": MaskFull}}
		if got := p.Apply(payload)["raw_snippet"]; got != "***" {
			t.Errorf("expected ***, got %v", got)
		}
	})

	t.Run("last3 keeps tail", func(t *testing.T) {
		p := RedactionPolicy{MaskFields: map[string]string{"matched_entity": MaskLast3}}
		if got := p.Apply(payload)["matched_entity"]; got != "***.io" {
			t.Errorf("expected ***.io, got %v", got)
		}
	})

	t.Run("last3 on short value masks fully", func(t *testing.T) {
		p := RedactionPolicy{MaskFields: map[string]string{"x": MaskLast3}}
		if got := p.Apply(map[string]any{"x": "ab"})["x"]; got != "***" {
			t.Errorf("expected ***, got %v", got)
		}
	})

	t.Run("non-string masks fully", func(t *testing.T) {
		p := RedactionPolicy{MaskFields: map[string]string{"confidence": MaskLast3}}
		if got := p.Apply(payload)["confidence"]; got != "***" {
			t.Errorf("expected ***, got %v", got)
		}
	})

	t.Run("unknown mode masks fully", func(t *testing.T) {
		p := RedactionPolicy{MaskFields: map[string]string{"raw_snippet": "bogus"}}
		if got := p.Apply(payload)["raw_snippet"]; got != "***" {
			t.Errorf("expected ***, got %v", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		p := RedactionPolicy{
			RemoveFields: []string{"confidence"},
			MaskFields:   map[string]string{"matched_entity": MaskLast3},
		}
		once := p.Apply(payload)
		twice := p.Apply(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("policy is not idempotent: %v vs %v", once, twice)
		}
	})

	t.Run("original payload untouched", func(t *testing.T) {
		p := RedactionPolicy{RemoveFields: []string{"raw_snippet"}}
		p.Apply(payload)
		if _, ok := payload["raw_snippet"]; !ok {
			t.Error("Apply mutated its input")
		}
	})
}

func TestPayloadFromFinding(t *testing.T) {
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := Finding{
		ID:            "f-1",
		Source:        "hibp",
		Confidence:    90,
		MatchedEntity: "admin@sentrax.io",
		ExposureTypes: []string{"email", "password"},
		RawSnippet:    "snippet",
		Severity:      SeverityHigh,
		CreatedAt:     created,
	}

	payload := PayloadFromFinding(f)
	if payload["finding_id"] != "f-1" || payload["severity"] != "high" {
		t.Errorf("unexpected payload: %v", payload)
	}
	if payload["created_at"] != "2026-03-10T12:00:00Z" {
		t.Errorf("unexpected created_at: %v", payload["created_at"])
	}
}
