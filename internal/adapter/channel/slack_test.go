package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

func TestSlackSendPostsBlocks(t *testing.T) {
	var got slackMessage
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding message: %v", err)
		}
		json.NewEncoder(w).Encode(slackAPIResponse{OK: true})
	}))
	defer server.Close()

	ch := NewSlackChannel(server.Client())
	cfg := ports.ChannelConfig{
		Config:  map[string]string{"channel": "C123", "api_base": server.URL, "mention_team": "@secops"},
		Secrets: map[string]string{"bot_token": "xoxb-test"},
	}
	payload := map[string]any{
		"rule": "Critical Credential Exposure", "severity": "high",
		"source": "hibp", "matched_entity": "a***@sentrax.io",
	}
	if err := ch.Send(context.Background(), payload, cfg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "Bearer xoxb-test" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if got.Channel != "C123" {
		t.Errorf("unexpected channel %q", got.Channel)
	}
	if len(got.Blocks) < 3 {
		t.Fatalf("expected header, section and mention blocks, got %d", len(got.Blocks))
	}
	section := got.Blocks[1]
	if section.Text == nil || !strings.Contains(section.Text.Text, "Critical Credential Exposure") {
		t.Errorf("section missing rule name: %+v", section)
	}
	last := got.Blocks[len(got.Blocks)-1]
	if last.Text == nil || !strings.Contains(last.Text.Text, "@secops") {
		t.Errorf("mention block missing: %+v", last)
	}
}

func TestSlackOKFlagDecides(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Slack returns HTTP 200 even on failure.
		json.NewEncoder(w).Encode(slackAPIResponse{OK: false, Error: "channel_not_found"})
	}))
	defer server.Close()

	ch := NewSlackChannel(server.Client())
	cfg := ports.ChannelConfig{
		Config:  map[string]string{"channel": "C404", "api_base": server.URL},
		Secrets: map[string]string{"bot_token": "xoxb-test"},
	}
	err := ch.Send(context.Background(), map[string]any{"rule": "r"}, cfg)
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("expected channel_not_found error, got %v", err)
	}
}

func TestSlackMissingConfig(t *testing.T) {
	ch := NewSlackChannel(http.DefaultClient)

	err := ch.Send(context.Background(), map[string]any{}, ports.ChannelConfig{
		Secrets: map[string]string{"bot_token": "xoxb-test"},
	})
	if err == nil {
		t.Error("expected error when channel missing")
	}

	err = ch.Send(context.Background(), map[string]any{}, ports.ChannelConfig{
		Config: map[string]string{"channel": "C123"},
	})
	if err == nil {
		t.Error("expected error when bot_token missing")
	}
}
