package orchestrator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

func testSettings() settings.Settings {
	s := settings.Default()
	s.BaseResponseProb = 1.0 // deterministic: everyone engages
	s.BotToBotProb = 1.0
	s.MaxRepliesPerPost = 2
	s.CooldownSeconds = 60
	return s
}

func testSelector(t *testing.T, cd *CooldownMap, seed int64) (*Selector, *agents.Registry) {
	t.Helper()
	reg := testRegistry(t)
	if cd == nil {
		cd = NewCooldownMap()
	}
	return NewSelector(reg, cd, rand.New(rand.NewSource(seed))), reg
}

func agentEvent(text, sender string) bus.InboundEvent {
	e := testEvent(text)
	e.SenderID = "bot-" + sender
	e.SenderName = sender
	e.SenderIsAgent = true
	return e
}

func TestSelect_BotToBotGate(t *testing.T) {
	sel, reg := testSelector(t, nil, 1)
	st := testSettings()
	st.AllowBotToBot = false

	e := agentEvent("hello @gaia", "thoth")
	directed := DirectedTargets(e.Text, reg)
	if got := sel.Select(e, directed, st); len(got) != 0 {
		t.Fatalf("bot-to-bot disabled: expected empty set, got %v", names(got))
	}
}

func TestSelect_DirectedBypassesCap(t *testing.T) {
	sel, reg := testSelector(t, nil, 1)
	st := testSettings()
	st.MaxRepliesPerPost = 1

	e := testEvent("@gaia @thoth @chronos all of you")
	directed := DirectedTargets(e.Text, reg)
	got := sel.Select(e, directed, st)
	if len(got) != 3 {
		t.Fatalf("explicit mentions must never be truncated, got %v", names(got))
	}
}

func TestSelect_DirectedExcludesSender(t *testing.T) {
	sel, reg := testSelector(t, nil, 1)
	st := testSettings()

	e := agentEvent("@gaia @thoth ping", "gaia")
	directed := DirectedTargets(e.Text, reg)
	got := sel.Select(e, directed, st)
	if len(got) != 1 || got[0].Name != "thoth" {
		t.Fatalf("sender must not answer itself, got %v", names(got))
	}
}

func TestSelect_UndirectedCapApplies(t *testing.T) {
	sel, _ := testSelector(t, nil, 1)
	st := testSettings() // prob 1.0: all three draw yes

	got := sel.Select(testEvent("anyone?"), nil, st)
	if len(got) != st.MaxRepliesPerPost {
		t.Fatalf("expected cap of %d, got %v", st.MaxRepliesPerPost, names(got))
	}
	// Fixed configuration order, not randomized.
	if got[0].Name != "gaia" || got[1].Name != "thoth" {
		t.Fatalf("expected configuration order [gaia thoth], got %v", names(got))
	}
}

func TestSelect_ZeroProbabilityStaysSilent(t *testing.T) {
	sel, _ := testSelector(t, nil, 1)
	st := testSettings()
	st.BaseResponseProb = 0

	for i := 0; i < 50; i++ {
		if got := sel.Select(testEvent("anyone?"), nil, st); len(got) != 0 {
			t.Fatalf("probability 0 must select nobody, got %v", names(got))
		}
	}
}

func TestSelect_CooldownFiltersDirected(t *testing.T) {
	cd := NewCooldownMap()
	sel, reg := testSelector(t, cd, 1)
	st := testSettings()

	e := testEvent("@gaia @thoth hello")
	cd.Touch("gaia", e.ChannelID, e.RootID())

	directed := DirectedTargets(e.Text, reg)
	got := sel.Select(e, directed, st)
	if len(got) != 1 || got[0].Name != "thoth" {
		t.Fatalf("cooled-down agent must be filtered, got %v", names(got))
	}
}

func TestSelect_CooldownIsPerThread(t *testing.T) {
	cd := NewCooldownMap()
	sel, reg := testSelector(t, cd, 1)
	st := testSettings()

	e := testEvent("@gaia hello")
	cd.Touch("gaia", e.ChannelID, "some-other-thread")

	directed := DirectedTargets(e.Text, reg)
	if got := sel.Select(e, directed, st); len(got) != 1 {
		t.Fatalf("cooldown in another thread must not apply, got %v", names(got))
	}
}

func TestSelect_ResidualDraw(t *testing.T) {
	// With a tiny probability the independent pass almost always comes up
	// empty; the residual draw still engages occasionally. Verify the
	// mechanism fires at all across many trials with a fixed seed.
	sel, _ := testSelector(t, nil, 42)
	st := testSettings()
	st.BaseResponseProb = 0.01
	st.MaxRepliesPerPost = 3

	hits := 0
	for i := 0; i < 2000; i++ {
		if got := sel.Select(testEvent("quiet channel"), nil, st); len(got) > 0 {
			hits++
		}
	}
	if hits == 0 {
		t.Fatal("residual draw never engaged across 2000 trials")
	}
}

func TestSelect_ResidualDisabled(t *testing.T) {
	sel, _ := testSelector(t, nil, 42)
	st := testSettings()
	st.BaseResponseProb = 0
	off := false
	st.ResidualEngagement = &off

	for i := 0; i < 100; i++ {
		if got := sel.Select(testEvent("quiet channel"), nil, st); len(got) != 0 {
			t.Fatalf("residual disabled with p=0 must stay silent, got %v", names(got))
		}
	}
}

func TestCooldown_Expiry(t *testing.T) {
	cd := NewCooldownMap()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	cd.now = func() time.Time { return now }

	cd.Touch("gaia", "town-square", "m1")
	if !cd.Active("gaia", "town-square", "m1", 60*time.Second) {
		t.Fatal("expected active cooldown")
	}
	now = base.Add(61 * time.Second)
	if cd.Active("gaia", "town-square", "m1", 60*time.Second) {
		t.Fatal("cooldown must expire")
	}
	if n := cd.Sweep(time.Minute); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
}
