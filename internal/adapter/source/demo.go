package source

import (
	"context"
	"fmt"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// DemoAdapter synthesizes one placeholder finding per target without
// touching the network. Used for local bring-up and demos.
type DemoAdapter struct{}

func NewDemoAdapter() *DemoAdapter {
	return &DemoAdapter{}
}

func (a *DemoAdapter) Name() string {
	return "demo"
}

func (a *DemoAdapter) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	results := make([]ports.RawResult, 0, len(req.Targets))
	for _, target := range req.Targets {
		exposure := []string{domain.ExposureMention}
		if target.Type == domain.TargetEmail {
			exposure = []string{domain.ExposureEmail}
		}
		results = append(results, ports.RawResult{
			MatchedEntity: target.Value,
			ExposureTypes: exposure,
			RawSnippet:    fmt.Sprintf("Demo leak mention for %s with placeholder data", target.Value),
			Confidence:    55,
			Metadata:      map[string]string{"note": "demo"},
		})
	}
	return results, nil
}
