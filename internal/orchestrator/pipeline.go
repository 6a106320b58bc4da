package orchestrator

import (
	"context"
	"log/slog"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

// Pipeline is the single processing path shared by the pollers and the
// webhook ingestor: dedup gate, classification, selection, dispatch. The
// ledger and limiter inside it are the only synchronization points between
// the two ingestion paths.
type Pipeline struct {
	reg        *agents.Registry
	ledger     *Ledger
	selector   *Selector
	dispatcher *Dispatcher
	settings   *settings.Store
}

// NewPipeline wires a Pipeline.
func NewPipeline(reg *agents.Registry, ledger *Ledger, sel *Selector, disp *Dispatcher, st *settings.Store) *Pipeline {
	return &Pipeline{reg: reg, ledger: ledger, selector: sel, dispatcher: disp, settings: st}
}

// Ledger exposes the shared dedup ledger for the pollers' cursor bookkeeping.
func (p *Pipeline) Ledger() *Ledger { return p.ledger }

// HandlePolled processes one polled event end to end. owner, when non-nil,
// is the agent whose direct-message channel produced the event: DMs are
// inherently addressed and skip probability selection.
//
// Returns the outcome per invoked agent; an empty slice means policy chose
// silence, which is still a fully handled event.
func (p *Pipeline) HandlePolled(ctx context.Context, owner *agents.Descriptor, e bus.InboundEvent) []bus.Outcome {
	st := p.settings.Current()

	class := Classify(e, p.reg)
	if class == bus.ClassCommand {
		// Slash-commands are administered elsewhere; never answered here.
		slog.Debug("pipeline: command skipped", "channel", e.ChannelID, "text", e.Preview())
		return nil
	}

	directed := DirectedTargets(e.Text, p.reg)
	addressed := len(directed) > 0
	if owner != nil {
		// A DM to an agent addresses that agent even without a mention.
		directed = []agents.Descriptor{*owner}
		addressed = true
	}

	candidates := p.selector.Select(e, directed, st)
	if len(candidates) == 0 {
		return nil
	}

	var outcomes []bus.Outcome
	for _, ag := range candidates {
		// Mark before act: if the webhook path already claimed this
		// message for this agent, the entry is terminal.
		if !p.ledger.Mark(ag.Name, e.ChannelID, e.Text) {
			slog.Debug("pipeline: duplicate suppressed", "agent", ag.Name, "channel", e.ChannelID, "source", e.Source)
			outcomes = append(outcomes, bus.OutcomeDuplicate)
			continue
		}
		outcomes = append(outcomes, p.dispatcher.Dispatch(ctx, ag, e, st, addressed))
	}

	p.surfaceBatchFailure(ctx, candidates, outcomes, e, st)
	return outcomes
}

// HandleDirected processes one webhook-delivered event for the single
// addressed agent. The ingestor has already marked the fingerprint; this
// path must not mark again.
func (p *Pipeline) HandleDirected(ctx context.Context, ag agents.Descriptor, e bus.InboundEvent) bus.Outcome {
	st := p.settings.Current()

	if e.SenderIsAgent && !st.AllowBotToBot {
		return bus.OutcomeSkipped
	}
	if p.cooldownActive(ag, e, st) {
		slog.Debug("pipeline: cooldown active", "agent", ag.Name, "channel", e.ChannelID)
		return bus.OutcomeSkipped
	}

	outcome := p.dispatcher.Dispatch(ctx, ag, e, st, true)
	if outcome.Failed() {
		p.dispatcher.PostNotice(ctx, ag, e, st,
			"Sorry — "+ag.Name+" couldn't answer that right now.")
	}
	return outcome
}

func (p *Pipeline) cooldownActive(ag agents.Descriptor, e bus.InboundEvent, st settings.Settings) bool {
	return p.selector.cooldowns.Active(ag.Name, e.ChannelID, e.RootID(), st.Cooldown())
}

// surfaceBatchFailure posts one apologetic notice when agents were invoked
// and none produced anything visible other than errors. A partial success
// keeps the failures silent in the channel (they are still logged in full).
func (p *Pipeline) surfaceBatchFailure(ctx context.Context, candidates []agents.Descriptor, outcomes []bus.Outcome, e bus.InboundEvent, st settings.Settings) {
	if len(outcomes) == 0 {
		return
	}
	anyFailed := false
	for _, o := range outcomes {
		if o.Answered() || o == bus.OutcomeNoResponse || o == bus.OutcomeRateLimited || o == bus.OutcomeDuplicate {
			return
		}
		if o.Failed() {
			anyFailed = true
		}
	}
	if !anyFailed {
		return
	}
	p.dispatcher.PostNotice(ctx, candidates[0], e, st,
		"Sorry — nobody could answer that right now.")
}
