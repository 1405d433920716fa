package domain

import "strings"

var highIndicators = map[string]bool{
	"password":    true,
	"hash":        true,
	"credentials": true,
	"credential":  true,
}

var mediumIndicators = map[string]bool{
	"phone":   true,
	"address": true,
	"email":   true,
	"ssn":     true,
}

// ComputeSeverity derives a severity from exposure tags. The result is
// cached on the finding at ingestion time and never recomputed.
func ComputeSeverity(exposureTypes []string) Severity {
	medium := false
	for _, e := range exposureTypes {
		tag := strings.ToLower(strings.TrimSpace(e))
		if highIndicators[tag] {
			return SeverityHigh
		}
		if mediumIndicators[tag] {
			medium = true
		}
	}
	if medium {
		return SeverityMedium
	}
	return SeverityLow
}

// NormalizeConfidence converts a raw adapter confidence into the
// canonical 0-100 integer scale. Values in (0, 1] are treated as
// fractions and scaled; everything is clamped to [0, 100].
func NormalizeConfidence(raw float64) int {
	if raw > 0 && raw <= 1.0 {
		raw *= 100
	}
	v := int(raw + 0.5)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
