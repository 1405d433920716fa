package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const cefExportLimit = 10000

// CEFExporter renders a tenant's findings in Common Event Format for
// SIEM ingestion.
type CEFExporter struct {
	findings ports.FindingRepository
}

func NewCEFExporter(findings ports.FindingRepository) *CEFExporter {
	return &CEFExporter{findings: findings}
}

// Export generates a CEF-formatted finding feed for one organization.
// Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(ctx context.Context, orgID string, since time.Time) (string, error) {
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	findings, err := e.findings.FindingsSince(ctx, orgID, since, cefExportLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch findings: %w", err)
	}

	var output strings.Builder
	for _, f := range findings {
		output.WriteString(e.formatCEF(f))
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (e *CEFExporter) formatCEF(f domain.Finding) string {
	vendor := "DarkGuard"
	product := "ExposureMonitor"
	version := "1.0"
	signatureID := f.Source
	name := "Exposure Finding"
	severity := cefSeverity(f.Severity)

	extensions := []string{
		fmt.Sprintf("suser=%s", escapeField(f.MatchedEntity)),
		"cn1Label=ConfidenceScore",
		fmt.Sprintf("cn1=%d", f.Confidence),
		"cs1Label=ExposureTypes",
		fmt.Sprintf("cs1=%s", escapeField(strings.Join(f.ExposureTypes, ","))),
		"cs2Label=Source",
		fmt.Sprintf("cs2=%s", escapeField(f.Source)),
		fmt.Sprintf("msg=%s", escapeField(f.RawSnippet)),
		fmt.Sprintf("rt=%d", f.CreatedAt.Unix()*1000), // milliseconds
	}

	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		vendor, product, version, signatureID, name, severity, strings.Join(extensions, " "))
}

func cefSeverity(s domain.Severity) int {
	// Map finding severity to the CEF 0-10 scale.
	switch s {
	case domain.SeverityHigh:
		return 9
	case domain.SeverityMedium:
		return 6
	default:
		return 3
	}
}

func escapeField(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
