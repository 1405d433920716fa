package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const hibpDefaultBaseURL = "https://haveibeenpwned.com/api/v3/breachedaccount"

// HIBP data classes mapped to canonical exposure tags. Unknown classes
// fall back to a lowercased underscore form.
var hibpDataClasses = map[string]string{
	"email addresses":    domain.ExposureEmail,
	"passwords":          domain.ExposurePassword,
	"password hints":     domain.ExposurePassword,
	"password hashes":    domain.ExposureHash,
	"usernames":          domain.ExposureUsername,
	"phone numbers":      domain.ExposurePhone,
	"physical addresses": domain.ExposureAddress,
}

// HIBPAdapter queries the Have I Been Pwned breached-account API for
// each email target.
type HIBPAdapter struct {
	client Doer
}

func NewHIBPAdapter(client Doer) *HIBPAdapter {
	return &HIBPAdapter{client: client}
}

func (a *HIBPAdapter) Name() string {
	return "hibp"
}

type hibpBreach struct {
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	BreachDate  string   `json:"BreachDate"`
	DataClasses []string `json:"DataClasses"`
}

func (a *HIBPAdapter) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	baseURL := req.Config["base_url"]
	if baseURL == "" {
		baseURL = hibpDefaultBaseURL
	}

	var results []ports.RawResult
	for _, target := range req.Targets {
		if target.Type != domain.TargetEmail {
			continue
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/"+url.PathEscape(target.Value), nil)
		if err != nil {
			return nil, fmt.Errorf("building hibp request: %w", err)
		}
		httpReq.Header.Set("hibp-api-key", req.Secrets["api_key"])
		httpReq.Header.Set("user-agent", "darkguard")

		resp, err := a.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("fetching hibp for %s: %w", target.Value, err)
		}
		if resp.StatusCode == http.StatusNotFound {
			// No breaches for this account.
			resp.Body.Close()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("hibp returned status %d", resp.StatusCode)
		}

		var breaches []hibpBreach
		err = json.NewDecoder(resp.Body).Decode(&breaches)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding hibp response: %w", err)
		}

		for _, breach := range breaches {
			results = append(results, ports.RawResult{
				MatchedEntity: target.Value,
				ExposureTypes: mapDataClasses(breach.DataClasses),
				RawSnippet:    fmt.Sprintf("HIBP breach %s affecting %s", breach.Name, target.Value),
				Confidence:    90,
				Metadata: map[string]string{
					"breach":      breach.Name,
					"breach_date": breach.BreachDate,
				},
			})
		}
	}
	return results, nil
}

func mapDataClasses(classes []string) []string {
	tags := make([]string, 0, len(classes))
	for _, class := range classes {
		key := strings.ToLower(strings.TrimSpace(class))
		if tag, ok := hibpDataClasses[key]; ok {
			tags = append(tags, tag)
			continue
		}
		tags = append(tags, strings.ReplaceAll(key, " ", "_"))
	}
	return tags
}
