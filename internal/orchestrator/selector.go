package orchestrator

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

// Selector decides which agents must be asked to respond to one event.
//
// Directed targets bypass probability and the reply cap; undirected
// messages get independent per-agent draws with a residual fallback so
// ambient channels keep feeling alive. Candidates always come out in fixed
// configuration order, so a seeded rand source makes runs reproducible.
type Selector struct {
	reg       *agents.Registry
	cooldowns *CooldownMap

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSelector creates a Selector. A nil rng gets a time-seeded source;
// tests pass a fixed seed.
func NewSelector(reg *agents.Registry, cooldowns *CooldownMap, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{reg: reg, cooldowns: cooldowns, rng: rng}
}

// Select returns the agents to invoke for e, in configuration order.
// directed is the resolved mention target list (may be nil).
func (s *Selector) Select(e bus.InboundEvent, directed []agents.Descriptor, st settings.Settings) []agents.Descriptor {
	// Bot-to-bot gate is terminal: nothing answers an agent when disabled.
	if e.SenderIsAgent && !st.AllowBotToBot {
		return nil
	}

	explicit := len(directed) > 0
	var candidates []agents.Descriptor
	if explicit {
		candidates = excludeSender(directed, e)
	} else {
		candidates = s.draw(excludeSender(s.reg.Ordered(), e), e, st)
	}

	// Cooldown applies to both paths: an explicitly mentioned agent is
	// still bounded by its own per-thread spacing.
	d := st.Cooldown()
	kept := candidates[:0]
	for _, c := range candidates {
		if s.cooldowns.Active(c.Name, e.ChannelID, e.RootID(), d) {
			continue
		}
		kept = append(kept, c)
	}
	candidates = kept

	// The reply cap never truncates explicit mentions.
	if !explicit && st.MaxRepliesPerPost > 0 && len(candidates) > st.MaxRepliesPerPost {
		candidates = candidates[:st.MaxRepliesPerPost]
	}
	return candidates
}

// draw performs the independent probability draws for an undirected
// message, plus the single residual draw when the first pass comes up
// empty.
func (s *Selector) draw(pool []agents.Descriptor, e bus.InboundEvent, st settings.Settings) []agents.Descriptor {
	if len(pool) == 0 {
		return nil
	}
	p := st.BaseResponseProb
	if e.SenderIsAgent {
		p = st.BotToBotProb
	}
	if p <= 0 {
		return nil
	}

	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	var out []agents.Descriptor
	for _, d := range pool {
		if s.rng.Float64() < p {
			out = append(out, d)
		}
	}
	if len(out) == 0 && st.ResidualEnabled() {
		// One more chance for a uniformly chosen agent, same probability.
		d := pool[s.rng.Intn(len(pool))]
		if s.rng.Float64() < p {
			out = append(out, d)
		}
	}
	return out
}

// excludeSender drops the sending agent from its own candidate set.
func excludeSender(in []agents.Descriptor, e bus.InboundEvent) []agents.Descriptor {
	if !e.SenderIsAgent {
		return append([]agents.Descriptor(nil), in...)
	}
	var out []agents.Descriptor
	for _, d := range in {
		if strings.EqualFold(d.Name, e.SenderName) {
			continue
		}
		out = append(out, d)
	}
	return out
}
