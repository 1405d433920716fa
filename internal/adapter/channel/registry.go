package channel

import (
	"sync"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// Registry maps channel types to their adapters. Adding a channel
// type means registering an implementation; the dispatcher never
// branches on the type tag.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ports.ChannelAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ports.ChannelAdapter)}
}

func (r *Registry) Register(adapter ports.ChannelAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Type()] = adapter
}

func (r *Registry) Get(channelType string) (ports.ChannelAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[channelType]
	return adapter, ok
}

// DefaultRegistry wires every built-in channel type, each behind its
// own circuit breaker. SMTP and Twilio settings come from the engine's
// environment; integration-backed channels read their settings from
// the resolved integration.
func DefaultRegistry(smtp SMTPConfig, twilio TwilioConfig) *Registry {
	client := func(name string) Doer { return newBreakerClient(name, 10*time.Second) }

	r := NewRegistry()
	r.Register(NewEmailChannel(smtp))
	r.Register(NewWebhookChannel(client("webhook")))
	r.Register(NewSMSChannel(client("sms"), twilio))
	r.Register(NewJiraChannel(client("jira")))
	r.Register(NewTeamsChannel(client("o365")))
	r.Register(NewTrellixChannel(client("trellix")))
	r.Register(NewSlackChannel(client("slack")))
	return r
}
