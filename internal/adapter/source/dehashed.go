package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const dehashedDefaultBaseURL = "https://api.dehashed.com/search"

// DeHashed entry fields that translate into exposure tags when
// populated. Everything else in an entry is operator noise.
var dehashedFields = map[string]string{
	"email":           domain.ExposureEmail,
	"password":        domain.ExposurePassword,
	"hashed_password": domain.ExposureHash,
	"phone":           domain.ExposurePhone,
	"address":         domain.ExposureAddress,
	"username":        domain.ExposureUsername,
}

// DehashedAdapter searches the DeHashed index for each target value.
type DehashedAdapter struct {
	client Doer
}

func NewDehashedAdapter(client Doer) *DehashedAdapter {
	return &DehashedAdapter{client: client}
}

func (a *DehashedAdapter) Name() string {
	return "dehashed"
}

type dehashedResponse struct {
	Entries []map[string]string `json:"entries"`
}

func (a *DehashedAdapter) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	baseURL := req.Config["base_url"]
	if baseURL == "" {
		baseURL = dehashedDefaultBaseURL
	}

	var results []ports.RawResult
	for _, target := range req.Targets {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?query="+url.QueryEscape(target.Value), nil)
		if err != nil {
			return nil, fmt.Errorf("building dehashed request: %w", err)
		}
		httpReq.SetBasicAuth(req.Secrets["username"], req.Secrets["api_key"])
		httpReq.Header.Set("accept", "application/json")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("fetching dehashed for %s: %w", target.Value, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("dehashed returned status %d", resp.StatusCode)
		}

		var payload dehashedResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding dehashed response: %w", err)
		}

		for _, entry := range payload.Entries {
			var tags []string
			for field, tag := range dehashedFields {
				if entry[field] != "" {
					tags = append(tags, tag)
				}
			}
			results = append(results, ports.RawResult{
				MatchedEntity: target.Value,
				ExposureTypes: tags,
				RawSnippet:    fmt.Sprintf("DeHashed entry %s for %s", entry["id"], target.Value),
				Confidence:    70,
				Metadata:      map[string]string{"entry_id": entry["id"]},
			})
		}
	}
	return results, nil
}
