package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hive-corporation/darkguard/internal/core/domain"
	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// RSSAdapter scans a configured feed for mentions of target values.
type RSSAdapter struct {
	parser *gofeed.Parser
}

func NewRSSAdapter(client *http.Client) *RSSAdapter {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "darkguard"
	return &RSSAdapter{parser: parser}
}

func (a *RSSAdapter) Name() string {
	return "rss"
}

func (a *RSSAdapter) Fetch(ctx context.Context, req ports.FetchRequest) ([]ports.RawResult, error) {
	feedURL := req.Config["url"]
	if feedURL == "" {
		return nil, nil
	}

	feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	var results []ports.RawResult
	for _, item := range feed.Items {
		content := item.Title + " " + item.Description
		lowered := strings.ToLower(content)
		for _, target := range req.Targets {
			if !strings.Contains(lowered, strings.ToLower(target.Value)) {
				continue
			}
			results = append(results, ports.RawResult{
				MatchedEntity: target.Value,
				ExposureTypes: []string{domain.ExposureMention},
				RawSnippet:    content,
				Confidence:    40,
				Metadata:      map[string]string{"link": item.Link},
			})
		}
	}
	return results, nil
}
