package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

const pasteBodyLimit = 1 << 20 // 1 MiB of paste text is plenty

// PublicPasteAdapter scans a configured public paste URL for mentions
// of target values.
type PublicPasteAdapter struct {
	client Doer
}

func NewPublicPasteAdapter(client Doer) *PublicPasteAdapter {
	return &PublicPasteAdapter{client: client}
}

func (a *PublicPasteAdapter) Name() string {
	return "public_paste"
}

func (a *PublicPasteAdapter) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	pasteURL := req.Config["url"]
	if pasteURL == "" {
		return nil, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pasteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pasteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paste returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, pasteBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("reading paste body: %w", err)
	}
	content := string(body)
	lowered := strings.ToLower(content)

	var results []ports.RawResult
	for _, target := range req.Targets {
		if !strings.Contains(lowered, strings.ToLower(target.Value)) {
			continue
		}
		snippet := content
		if runes := []rune(snippet); len(runes) > 280 {
			snippet = string(runes[:280])
		}
		results = append(results, ports.RawResult{
			MatchedEntity: target.Value,
			ExposureTypes: []string{domain.ExposureMention},
			RawSnippet:    snippet,
			Confidence:    35,
			Metadata:      map[string]string{"url": pasteURL},
		})
	}
	return results, nil
}
