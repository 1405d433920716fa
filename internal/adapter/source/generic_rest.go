package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// GenericRESTAdapter pulls findings from any endpoint that speaks the
// documented exchange shape: a JSON object with a "findings" list of
// records carrying matched_entity / exposure_types / raw_snippet /
// confidence / severity_hint.
type GenericRESTAdapter struct {
	client Doer
}

func NewGenericRESTAdapter(client Doer) *GenericRESTAdapter {
	return &GenericRESTAdapter{client: client}
}

func (a *GenericRESTAdapter) Name() string {
	return "generic_rest"
}

type genericRESTFinding struct {
	MatchedEntity string   `json:"matched_entity"`
	ExposureTypes []string `json:"exposure_types"`
	RawSnippet    string   `json:"raw_snippet"`
	Confidence    *float64 `json:"confidence"`
	SeverityHint  string   `json:"severity_hint"`
}

type genericRESTResponse struct {
	Findings []genericRESTFinding `json:"findings"`
}

func (a *GenericRESTAdapter) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	endpoint := req.Config["url"]
	if endpoint == "" {
		return nil, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for key, value := range req.Config {
		if name, ok := strings.CutPrefix(key, "header_"); ok {
			httpReq.Header.Set(name, value)
		}
	}
	if token := req.Secrets["token"]; token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}

	var payload genericRESTResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]ports.RawResult, 0, len(payload.Findings))
	for _, item := range payload.Findings {
		confidence := 50.0
		if item.Confidence != nil {
			confidence = *item.Confidence
		}
		results = append(results, ports.RawResult{
			MatchedEntity: item.MatchedEntity,
			ExposureTypes: item.ExposureTypes,
			RawSnippet:    item.RawSnippet,
			Confidence:    confidence,
			SeverityHint:  item.SeverityHint,
		})
	}
	return results, nil
}
