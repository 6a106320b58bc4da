// Package config defines the static process configuration for pantheon.
//
// Everything here is resolved once at startup. Live-tunable values
// (probabilities, cooldowns, intervals) live in the runtime settings file
// instead; see internal/settings.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// PlatformConfig points at the chat platform's REST API.
type PlatformConfig struct {
	BaseURL string `json:"baseUrl"`
	// RelayToken is the default bearer credential used for the shared
	// channel poller and as the posting fallback when an agent has no
	// credential of its own.
	RelayToken string `json:"relayToken"`
	// RelayUsername is the operator's own identity on the platform.
	RelayUsername  string `json:"relayUsername"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Timeout returns the per-request timeout for platform calls.
func (p PlatformConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// AgentConfig describes one known service bot. The set of agents is closed
// and ordered; selection and logging follow this order.
type AgentConfig struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	// CredentialKey selects the entry in the credential store used to post
	// under this agent's identity.
	CredentialKey string `json:"credentialKey"`
	// TriggerWords are platform trigger words that address this agent in
	// addition to @-mentions.
	TriggerWords []string `json:"triggerWords,omitempty"`
	// TimeoutSeconds bounds one query to the agent backend.
	TimeoutSeconds int `json:"timeoutSeconds"`
}

// Timeout returns the per-query timeout for this agent's backend.
func (a AgentConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// WebhookConfig configures the inbound webhook listener.
type WebhookConfig struct {
	Listen string `json:"listen"`
	// Token, when set, must match the token field of inbound payloads.
	Token string `json:"token,omitempty"`
}

// RateLimitConfig bounds upstream agent calls per sliding window.
type RateLimitConfig struct {
	MaxCalls      int `json:"maxCalls"`
	WindowSeconds int `json:"windowSeconds"`
}

// Window returns the sliding window duration.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// Config is the root static configuration document.
type Config struct {
	Platform        PlatformConfig  `json:"platform"`
	Webhook         WebhookConfig   `json:"webhook"`
	Agents          []AgentConfig   `json:"agents"`
	RateLimit       RateLimitConfig `json:"rateLimit"`
	SettingsPath    string          `json:"settingsPath"`
	CredentialsPath string          `json:"credentialsPath"`
}

// DefaultConfig returns the configuration used when no file exists yet:
// the three stock service bots against a local platform.
func DefaultConfig() Config {
	return Config{
		Platform: PlatformConfig{
			BaseURL:       "http://localhost:8065",
			RelayUsername: "pantheon",
		},
		Webhook: WebhookConfig{Listen: ":8090"},
		Agents: []AgentConfig{
			{Name: "gaia", Endpoint: "http://localhost:9001/query", CredentialKey: "gaia"},
			{Name: "thoth", Endpoint: "http://localhost:9002/query", CredentialKey: "thoth"},
			{Name: "chronos", Endpoint: "http://localhost:9003/query", CredentialKey: "chronos"},
		},
		RateLimit:       RateLimitConfig{MaxCalls: 4, WindowSeconds: 60},
		SettingsPath:    filepath.Join(DataDir(), "settings.json"),
		CredentialsPath: filepath.Join(DataDir(), "credentials.json"),
	}
}

// ConfigPath returns the default configuration file path: ~/.pantheon/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DataDir returns the pantheon data directory: ~/.pantheon.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pantheon"
	}
	return filepath.Join(home, ".pantheon")
}
