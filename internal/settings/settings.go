// Package settings implements the file-backed runtime settings document.
//
// The file is a flat JSON object at a fixed path. Any key is optional,
// unknown keys are preserved across writes, and readers pick up external
// edits without a process restart.
package settings

import (
	"encoding/json"
	"time"
)

// Settings holds the tunable knobs read on every poll cycle.
type Settings struct {
	// BaseResponseProb is the per-agent engagement probability for an
	// undirected message from a human sender.
	BaseResponseProb float64 `json:"base_response_prob"`
	// BotToBotProb replaces BaseResponseProb when the sender is itself
	// a known agent.
	BotToBotProb float64 `json:"bot_to_bot_prob"`
	// MaxRepliesPerPost caps how many agents answer one undirected message.
	// Explicit mentions are never truncated by this cap.
	MaxRepliesPerPost int `json:"max_replies_per_post"`
	// CooldownSeconds is the minimum spacing between one agent's
	// consecutive replies in the same thread.
	CooldownSeconds int `json:"cooldown_seconds"`
	// ReplyInThread posts replies under the triggering message's root
	// instead of as new top-level messages.
	ReplyInThread bool `json:"reply_in_thread"`
	// AllowBotToBot enables agents to answer other agents at all.
	AllowBotToBot bool `json:"allow_bot_to_bot"`
	// PollIntervalSeconds is the sleep between poll iterations, re-read
	// fresh each cycle.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// ResidualEngagement enables the single extra uniform draw when every
	// independent draw came up empty, keeping ambient channels alive.
	ResidualEngagement *bool `json:"residual_engagement,omitempty"`
	// AgentTemperatures overrides the model temperature per agent name.
	AgentTemperatures map[string]float64 `json:"agent_temperatures,omitempty"`
}

// Default returns the settings used when the backing file is missing or a
// key is absent.
func Default() Settings {
	return Settings{
		BaseResponseProb:    0.3,
		BotToBotProb:        0.15,
		MaxRepliesPerPost:   2,
		CooldownSeconds:     60,
		ReplyInThread:       true,
		AllowBotToBot:       true,
		PollIntervalSeconds: 30,
	}
}

// Cooldown returns CooldownSeconds as a duration.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// PollInterval returns PollIntervalSeconds as a duration, floored at one
// second so a zeroed file cannot spin the pollers.
func (s Settings) PollInterval() time.Duration {
	if s.PollIntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// ResidualEnabled reports whether the empty-draw fallback is on (default on).
func (s Settings) ResidualEnabled() bool {
	return s.ResidualEngagement == nil || *s.ResidualEngagement
}

// Temperature returns the per-agent temperature override, if any.
func (s Settings) Temperature(agent string) (float64, bool) {
	t, ok := s.AgentTemperatures[agent]
	return t, ok
}

// merge decodes raw JSON over a defaults copy, returning the typed value.
func merge(raw []byte) (Settings, error) {
	s := Default()
	if err := json.Unmarshal(raw, &s); err != nil {
		return Default(), err
	}
	return s, nil
}
