// Package poller implements the pull-based event sources: one
// direct-message poller per agent and one shared poller for the
// collaboration channels. Both feed the shared orchestration pipeline.
package poller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/orchestrator"
	"github.com/pantheon-bots/pantheon/internal/platform"
)

// backoff is the pause after a failed iteration, before the regular
// interval applies again.
const backoff = 5 * time.Second

// eventFromPost normalizes one pulled post into an InboundEvent.
func eventFromPost(post platform.Post, user platform.User, reg *agents.Registry) bus.InboundEvent {
	observed := time.Now()
	if post.CreateAt > 0 {
		observed = time.UnixMilli(post.CreateAt)
	}
	return bus.InboundEvent{
		Source:        bus.SourcePoll,
		ChannelID:     post.ChannelID,
		MessageID:     post.ID,
		SenderID:      post.UserID,
		SenderName:    user.Username,
		SenderIsAgent: user.IsBot || reg.IsKnown(user.Username),
		Text:          post.Message,
		ThreadRootID:  post.RootID,
		ObservedAt:    observed,
	}
}

// pollChannel fetches everything newer than the cursor in one channel and
// pushes it through the pipeline oldest first, then advances the cursor to
// the newest id observed; an unanswered message must not be re-offered
// forever.
//
// On first sight of a channel only the single newest message is processed,
// never the backlog, so a restart cannot replay a storm.
func pollChannel(
	ctx context.Context,
	pc *platform.Client,
	pipe *orchestrator.Pipeline,
	reg *agents.Registry,
	token, cursorOwner string,
	owner *agents.Descriptor,
	ch platform.Channel,
) error {
	ledger := pipe.Ledger()
	cursor, known := ledger.Cursor(cursorOwner, ch.ID)

	pl, err := pc.PostsSince(ctx, token, ch.ID, cursor)
	if err != nil {
		return err
	}

	posts := pl.OldestFirst()
	if !known && len(posts) > 1 {
		posts = posts[len(posts)-1:]
	}
	if len(posts) == 0 {
		return nil
	}

	maxID := cursor
	for _, post := range posts {
		if post.ID > maxID {
			maxID = post.ID
		}

		user, err := pc.User(ctx, token, post.UserID)
		if err != nil {
			// Author lookup failing is not worth dropping the message.
			slog.Debug("poller: user lookup failed", "user", post.UserID, "err", err)
			user = platform.User{ID: post.UserID}
		}

		// An agent never answers its own DM channel posts.
		if owner != nil && strings.EqualFold(user.Username, owner.Name) {
			continue
		}

		pipe.HandlePolled(ctx, owner, eventFromPost(post, user, reg))
	}

	ledger.AdvanceCursor(cursorOwner, ch.ID, maxID)
	return nil
}

// sleep waits for d or context cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
