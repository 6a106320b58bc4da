package poller

import (
	"context"
	"log/slog"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/orchestrator"
	"github.com/pantheon-bots/pantheon/internal/platform"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

// ChannelPoller is the single shared loop over the public and private
// collaboration channels, running under the relay credential. Events flow
// through the full selection pipeline: mentions are honored, everything
// else is subject to probabilistic engagement.
type ChannelPoller struct {
	reg        *agents.Registry
	platform   *platform.Client
	pipeline   *orchestrator.Pipeline
	settings   *settings.Store
	relayToken string
}

// NewChannelPoller creates the shared collaboration-channel poller.
func NewChannelPoller(
	reg *agents.Registry,
	pc *platform.Client,
	pipe *orchestrator.Pipeline,
	st *settings.Store,
	relayToken string,
) *ChannelPoller {
	return &ChannelPoller{reg: reg, platform: pc, pipeline: pipe, settings: st, relayToken: relayToken}
}

// Run polls until ctx is cancelled, with the same live-interval and
// error-isolation rules as the DM pollers.
func (p *ChannelPoller) Run(ctx context.Context) error {
	slog.Info("channel poller: started")
	for {
		if err := sleep(ctx, p.settings.Current().PollInterval()); err != nil {
			slog.Info("channel poller: stopped")
			return err
		}
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("channel poller: iteration failed", "err", err)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
		}
	}
}

func (p *ChannelPoller) pollOnce(ctx context.Context) error {
	channels, err := p.platform.Channels(ctx, p.relayToken)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		if ch.IsDirect() {
			continue
		}
		if err := pollChannel(ctx, p.platform, p.pipeline, p.reg, p.relayToken, p.reg.RelayName(), nil, ch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("channel poller: channel failed", "channel", ch.ID, "err", err)
		}
	}
	return nil
}
