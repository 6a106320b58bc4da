package orchestrator

import (
	"regexp"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
)

var mentionRe = regexp.MustCompile(`@(\w+)`)

// Mentions extracts the ordered @word address tokens from raw text.
func Mentions(text string) []string {
	var out []string
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// DirectedTargets resolves mention tokens against the registry and returns
// the addressed agents in configuration order, deduplicated. A message with
// at least one directed target is never subjected to probability selection.
func DirectedTargets(text string, reg *agents.Registry) []agents.Descriptor {
	hit := map[string]bool{}
	for _, token := range Mentions(text) {
		if d, ok := reg.Match(token); ok {
			hit[d.Name] = true
		}
	}
	if len(hit) == 0 {
		return nil
	}
	// Fixed configuration order keeps logs and fixtures reproducible.
	var out []agents.Descriptor
	for _, d := range reg.Ordered() {
		if hit[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// Classify buckets an event: command, targeted mention, or ambient.
func Classify(e bus.InboundEvent, reg *agents.Registry) bus.Classification {
	if e.IsCommand() {
		return bus.ClassCommand
	}
	if len(DirectedTargets(e.Text, reg)) > 0 {
		return bus.ClassMention
	}
	return bus.ClassAmbient
}
