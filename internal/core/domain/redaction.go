package domain

import "time"

// Redaction masking modes. Anything else falls back to MaskFull.
const (
	MaskFull  = "full"
	MaskLast3 = "last3"
)

const maskPlaceholder = "***"

// RedactionPolicy holds the field directives applied to an outgoing
// payload before dispatch. The stored finding is never mutated; the
// canonical record keeps full detail for audit and later
// re-evaluation under a different rule.
type RedactionPolicy struct {
	RemoveFields []string          `json:"remove_fields,omitempty"`
	MaskFields   map[string]string `json:"mask_fields,omitempty"`
}

func (p RedactionPolicy) IsZero() bool {
	return len(p.RemoveFields) == 0 && len(p.MaskFields) == 0
}

// Apply produces the sanitized payload for one (finding, rule) pair.
// Removed fields are absent from the result; masked fields keep only
// that a value existed. Applying the same policy twice yields the same
// result. An empty policy forwards the payload untouched.
func (p RedactionPolicy) Apply(payload map[string]any) map[string]any {
	redacted := make(map[string]any, len(payload))
	for k, v := range payload {
		redacted[k] = v
	}
	for _, field := range p.RemoveFields {
		delete(redacted, field)
	}
	for field, mode := range p.MaskFields {
		v, ok := redacted[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			redacted[field] = maskPlaceholder
			continue
		}
		redacted[field] = maskValue(s, mode)
	}
	return redacted
}

func maskValue(s, mode string) string {
	if mode == MaskLast3 {
		runes := []rune(s)
		if len(runes) <= 3 {
			return maskPlaceholder
		}
		return maskPlaceholder + string(runes[len(runes)-3:])
	}
	return maskPlaceholder
}

// ParseRedactionPolicy converts the loose external policy map
// (remove_fields list plus mask_fields object) into the explicit form.
func ParseRedactionPolicy(raw map[string]any) RedactionPolicy {
	policy := RedactionPolicy{RemoveFields: stringList(raw["remove_fields"])}
	if masks, ok := raw["mask_fields"].(map[string]any); ok {
		policy.MaskFields = make(map[string]string, len(masks))
		for field, mode := range masks {
			if s, ok := mode.(string); ok {
				policy.MaskFields[field] = s
			}
		}
	}
	return policy
}

// PayloadFromFinding builds the outgoing alert payload for a finding.
// Redaction policies operate on these keys.
func PayloadFromFinding(f Finding) map[string]any {
	return map[string]any{
		"finding_id":     f.ID,
		"source":         f.Source,
		"confidence":     f.Confidence,
		"matched_entity": f.MatchedEntity,
		"exposure_types": f.ExposureTypes,
		"raw_snippet":    f.RawSnippet,
		"severity":       string(f.Severity),
		"created_at":     f.CreatedAt.UTC().Format(time.RFC3339),
	}
}
