// Package bus defines the normalized event types that flow from the two
// ingestion paths (pollers and webhook) into the orchestration pipeline.
package bus

import (
	"strings"
	"time"

	"github.com/pantheon-bots/pantheon/internal/shared/stringutils"
)

// Source identifies which ingestion path produced an event.
type Source string

const (
	SourcePoll    Source = "poll"
	SourceWebhook Source = "webhook"
)

// Classification buckets an inbound event for the responder selector.
// Every event falls into exactly one class.
type Classification string

const (
	// ClassCommand is a slash-command; administration is handled elsewhere,
	// the pipeline never answers these.
	ClassCommand Classification = "command"
	// ClassMention explicitly addresses at least one known agent.
	ClassMention Classification = "mention"
	// ClassAmbient carries no explicit addressing and is subject to
	// probabilistic engagement.
	ClassAmbient Classification = "ambient"
)

// InboundEvent is a platform message normalized to a single shape shared by
// the poll and webhook paths.
type InboundEvent struct {
	Source        Source
	ChannelID     string
	MessageID     string // platform post id; empty on the webhook path
	SenderID      string
	SenderName    string // display name as shown in the channel
	SenderIsAgent bool
	Text          string
	ThreadRootID  string
	ObservedAt    time.Time
}

// RootID returns the thread root for reply threading: the explicit root when
// the message is already inside a thread, else the message itself.
func (e InboundEvent) RootID() string {
	if e.ThreadRootID != "" {
		return e.ThreadRootID
	}
	return e.MessageID
}

// IsCommand reports whether the text is a slash-command.
func (e InboundEvent) IsCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(e.Text), "/")
}

// Preview returns a short snippet of the message text for logging.
func (e InboundEvent) Preview() string {
	return stringutils.Truncate(e.Text, 80)
}
