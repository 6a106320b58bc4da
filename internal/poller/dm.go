package poller

import (
	"context"
	"log/slog"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/orchestrator"
	"github.com/pantheon-bots/pantheon/internal/platform"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

// DMPoller watches one agent's direct-message channels using that agent's
// own credential. A DM is inherently addressed, so every new message goes
// straight to the owning agent without probability selection.
type DMPoller struct {
	agent    agents.Descriptor
	reg      *agents.Registry
	platform *platform.Client
	creds    *agents.CredentialStore
	pipeline *orchestrator.Pipeline
	settings *settings.Store
}

// NewDMPoller creates the direct-message poller for one agent.
func NewDMPoller(
	agent agents.Descriptor,
	reg *agents.Registry,
	pc *platform.Client,
	creds *agents.CredentialStore,
	pipe *orchestrator.Pipeline,
	st *settings.Store,
) *DMPoller {
	return &DMPoller{agent: agent, reg: reg, platform: pc, creds: creds, pipeline: pipe, settings: st}
}

// Run polls until ctx is cancelled. The interval is re-read from settings
// every cycle so operators can tune it live; a failed iteration backs off
// and the loop always continues.
func (p *DMPoller) Run(ctx context.Context) error {
	slog.Info("dm poller: started", "agent", p.agent.Name)
	for {
		if err := sleep(ctx, p.settings.Current().PollInterval()); err != nil {
			slog.Info("dm poller: stopped", "agent", p.agent.Name)
			return err
		}
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("dm poller: iteration failed", "agent", p.agent.Name, "err", err)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}
}

func (p *DMPoller) pollOnce(ctx context.Context) error {
	token, ok := p.creds.TokenFor(p.agent.CredentialKey)
	if !ok {
		// No active credential means no DM visibility; not an error.
		slog.Debug("dm poller: no active credential", "agent", p.agent.Name)
		return nil
	}

	channels, err := p.platform.Channels(ctx, token)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		if !ch.IsDirect() {
			continue
		}
		if err := pollChannel(ctx, p.platform, p.pipeline, p.reg, token, p.agent.Name, &p.agent, ch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One channel failing must not starve the rest.
			slog.Warn("dm poller: channel failed", "agent", p.agent.Name, "channel", ch.ID, "err", err)
		}
	}
	return nil
}
