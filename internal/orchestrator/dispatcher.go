package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/platform"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

// maxPostLen is the platform's message length ceiling; longer agent answers
// are split on line or word boundaries.
const maxPostLen = 4000

// Dispatcher invokes a chosen agent and posts its answer back to the
// platform under the agent's own identity.
type Dispatcher struct {
	platform   *platform.Client
	agents     *agents.Client
	creds      *agents.CredentialStore
	limiter    *CallLimiter
	cooldowns  *CooldownMap
	relayToken string
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(
	pc *platform.Client,
	ac *agents.Client,
	creds *agents.CredentialStore,
	limiter *CallLimiter,
	cooldowns *CooldownMap,
	relayToken string,
) *Dispatcher {
	return &Dispatcher{
		platform:   pc,
		agents:     ac,
		creds:      creds,
		limiter:    limiter,
		cooldowns:  cooldowns,
		relayToken: relayToken,
	}
}

// Dispatch runs one agent against one event and returns the definitive
// outcome. Every outcome is terminal for this (agent, event) pair; the
// caller advances dedup state regardless of which one it is.
func (d *Dispatcher) Dispatch(ctx context.Context, ag agents.Descriptor, e bus.InboundEvent, st settings.Settings, addressed bool) bus.Outcome {
	// Budget check first: the timestamp is recorded inside Admit, before
	// the upstream call, so concurrent dispatches cannot share a slot.
	adm := d.limiter.Admit(ag.Name)
	if !adm.OK {
		slog.Info("dispatch: rate limited", "agent", ag.Name, "channel", e.ChannelID, "retry_after", adm.RetryAfter)
		notice := fmt.Sprintf("%s is catching its breath — try again in %s.", ag.Name, adm.RetryAfter.Round(time.Second))
		if err := d.post(ctx, ag, e, st, notice); err != nil {
			slog.Warn("dispatch: rate-limit notice failed", "agent", ag.Name, "err", err)
		}
		return bus.OutcomeRateLimited
	}

	req := agents.QueryRequest{
		Message:           e.Text,
		SenderID:          e.SenderID,
		SenderDisplayName: e.SenderName,
		Context:           agents.QueryContext{Addressed: addressed},
	}
	if t, ok := st.Temperature(ag.Name); ok {
		req.Context.Temperature = &t
	}

	resp, err := d.agents.Query(ctx, ag, req)
	if err != nil {
		slog.Error("dispatch: agent query failed", "agent", ag.Name, "channel", e.ChannelID, "err", err)
		return bus.OutcomeAgentError
	}

	text := resp.Text()
	if text == "" {
		// A deliberate non-answer still advances dedup state upstream.
		slog.Debug("dispatch: agent declined", "agent", ag.Name, "channel", e.ChannelID)
		return bus.OutcomeNoResponse
	}

	if err := d.post(ctx, ag, e, st, text); err != nil {
		slog.Error("dispatch: post failed", "agent", ag.Name, "channel", e.ChannelID, "err", err)
		return bus.OutcomePostFailed
	}

	// Cooldown starts only on success; a failed post must not suppress a
	// legitimate retry.
	d.cooldowns.Touch(ag.Name, e.ChannelID, e.RootID())
	slog.Info("dispatch: posted", "agent", ag.Name, "channel", e.ChannelID, "thread", e.RootID() != "")
	return bus.OutcomePosted
}

// PostNotice posts plain text to the event's channel under the agent's
// identity. Used for rate-limit and batch-failure notices: user-visible
// failures are chat text, never platform errors.
func (d *Dispatcher) PostNotice(ctx context.Context, ag agents.Descriptor, e bus.InboundEvent, st settings.Settings, text string) {
	if err := d.post(ctx, ag, e, st, text); err != nil {
		slog.Warn("dispatch: notice failed", "agent", ag.Name, "err", err)
	}
}

// post writes text to the platform under ag's identity, threading per
// settings and splitting past the length ceiling.
func (d *Dispatcher) post(ctx context.Context, ag agents.Descriptor, e bus.InboundEvent, st settings.Settings, text string) error {
	// The responding agent's own credential first; the relay credential is
	// only a fallback, with the agent name as override identity.
	token, ok := d.creds.TokenFor(ag.CredentialKey)
	if !ok {
		token = d.relayToken
	}

	rootID := ""
	if st.ReplyInThread {
		rootID = e.RootID()
	}

	for _, chunk := range splitMessage(text, maxPostLen) {
		_, err := d.platform.CreatePost(ctx, token, platform.CreatePostRequest{
			ChannelID:        e.ChannelID,
			Message:          chunk,
			RootID:           rootID,
			OverrideUsername: ag.Name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
