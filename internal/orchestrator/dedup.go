package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pantheon-bots/pantheon/internal/shared/stringutils"
)

const (
	// DefaultSeenWindow is how long a fingerprint suppresses equivalent
	// messages. Past the window the same text may legitimately recur.
	DefaultSeenWindow = 60 * time.Second

	// maxSeenEntries caps the fingerprint map so a quiet sweep schedule
	// cannot let it grow without bound.
	maxSeenEntries = 4096
)

type cursorKey struct{ agent, channel string }

type seenKey struct{ agent, channel, hash string }

// Ledger is the shared dedup state for both ingestion paths.
//
// Two sub-ledgers, because the paths disagree on identity shape: the poll
// path keys by platform post id behind a per-(agent, channel) cursor; the
// webhook path has no stable id and keys by content fingerprint. A fresh
// fingerprint entry is terminal: whichever path sees it second stops.
type Ledger struct {
	mu      sync.Mutex
	cursors map[cursorKey]string
	seen    map[seenKey]time.Time
	window  time.Duration

	now func() time.Time // test hook
}

// NewLedger creates a Ledger with the given fingerprint freshness window.
func NewLedger(window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultSeenWindow
	}
	return &Ledger{
		cursors: make(map[cursorKey]string),
		seen:    make(map[seenKey]time.Time),
		window:  window,
		now:     time.Now,
	}
}

// Cursor returns the last-handled post id for (agent, channel).
// ok=false means the channel has never been polled: the caller must process
// only the single newest message, never an unbounded backlog.
func (l *Ledger) Cursor(agent, channel string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.cursors[cursorKey{agent, channel}]
	return id, ok
}

// AdvanceCursor moves the cursor forward. It never decreases: with
// out-of-order delivery the stored cursor stays the maximum id seen.
func (l *Ledger) AdvanceCursor(agent, channel, id string) {
	if id == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := cursorKey{agent, channel}
	if cur, ok := l.cursors[k]; ok && id <= cur {
		return
	}
	l.cursors[k] = id
}

// Fingerprint derives the content identity for a message: the channel plus
// the normalized text. Used where no stable post id exists.
func Fingerprint(channel, text string) string {
	sum := sha256.Sum256([]byte(channel + "\x00" + stringutils.Normalize(text)))
	return hex.EncodeToString(sum[:8])
}

// Seen reports whether a fresh fingerprint entry exists for (agent,
// channel, text). Entries older than the window count as absent.
func (l *Ledger) Seen(agent, channel, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.seen[seenKey{agent, channel, Fingerprint(channel, text)}]
	return ok && l.now().Sub(at) < l.window
}

// Mark claims (agent, channel, text) and reports whether this call was the
// first fresh claim. Check and mark are one step under the lock so two
// concurrent handlers can never both pass. Callers mark before invoking any
// agent; that ordering, not this method, is what closes the webhook/poll
// race.
func (l *Ledger) Mark(agent, channel, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := seenKey{agent, channel, Fingerprint(channel, text)}
	if at, ok := l.seen[k]; ok && now.Sub(at) < l.window {
		return false
	}
	if len(l.seen) >= maxSeenEntries {
		l.evictOldest()
	}
	l.seen[k] = now
	return true
}

// Sweep evicts fingerprint entries older than the window and returns how
// many were removed. Cursors are never swept; they are the poll-path
// watermark, not a cache.
func (l *Ledger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for k, at := range l.seen {
		if now.Sub(at) >= l.window {
			delete(l.seen, k)
			n++
		}
	}
	return n
}

// evictOldest removes the single oldest entry. Caller holds the lock.
func (l *Ledger) evictOldest() {
	var oldest seenKey
	var oldestAt time.Time
	first := true
	for k, at := range l.seen {
		if first || at.Before(oldestAt) {
			oldest, oldestAt, first = k, at, false
		}
	}
	if !first {
		delete(l.seen, oldest)
	}
}
