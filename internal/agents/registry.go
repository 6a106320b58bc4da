// Package agents holds the closed set of agent descriptors resolved at
// startup, the read-only credential store, and the HTTP client for the
// agent query backends.
package agents

import (
	"strings"
	"time"

	"github.com/pantheon-bots/pantheon/internal/config"
)

// Descriptor identifies one known agent: who it is, where its backend
// lives, and which credential posts under its identity.
type Descriptor struct {
	Name          string
	Endpoint      string
	CredentialKey string
	TriggerWords  []string
	Timeout       time.Duration
}

// Registry is the fixed, ordered set of known agents plus the operator's
// relay identity. It is built once from configuration and never mutated;
// selection and logging follow the configuration order.
type Registry struct {
	ordered   []Descriptor
	byName    map[string]Descriptor
	relayName string
}

// NewRegistry builds a Registry from the configured agent list.
func NewRegistry(cfgs []config.AgentConfig, relayName string) *Registry {
	r := &Registry{
		byName:    make(map[string]Descriptor, len(cfgs)),
		relayName: relayName,
	}
	for _, c := range cfgs {
		d := Descriptor{
			Name:          c.Name,
			Endpoint:      c.Endpoint,
			CredentialKey: c.CredentialKey,
			TriggerWords:  c.TriggerWords,
			Timeout:       c.Timeout(),
		}
		r.ordered = append(r.ordered, d)
		r.byName[strings.ToLower(c.Name)] = d
	}
	return r
}

// Ordered returns all agents in configuration order.
func (r *Registry) Ordered() []Descriptor { return r.ordered }

// RelayName returns the operator's own platform identity.
func (r *Registry) RelayName() string { return r.relayName }

// Lookup finds an agent by exact name, case-insensitively.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// Match resolves a mention token to an agent: exact name match first, then
// name-prefix ("@gai" addresses gaia). Ambiguous prefixes resolve to the
// first agent in configuration order.
func (r *Registry) Match(token string) (Descriptor, bool) {
	t := strings.ToLower(token)
	if t == "" {
		return Descriptor{}, false
	}
	if d, ok := r.byName[t]; ok {
		return d, true
	}
	for _, d := range r.ordered {
		if strings.HasPrefix(strings.ToLower(d.Name), t) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// MatchTrigger resolves a platform trigger word to the agent it addresses.
func (r *Registry) MatchTrigger(word string) (Descriptor, bool) {
	w := strings.ToLower(strings.TrimPrefix(word, "@"))
	if d, ok := r.byName[w]; ok {
		return d, true
	}
	for _, d := range r.ordered {
		for _, t := range d.TriggerWords {
			if strings.EqualFold(t, word) {
				return d, true
			}
		}
	}
	return Descriptor{}, false
}

// IsKnown reports whether username is a known agent or the relay identity.
// Used to flag sender_is_agent on inbound events.
func (r *Registry) IsKnown(username string) bool {
	if strings.EqualFold(username, r.relayName) {
		return true
	}
	_, ok := r.byName[strings.ToLower(username)]
	return ok
}
