package orchestrator

import (
	"sync"
	"time"
)

// Admission is the result of asking the limiter for one upstream call.
type Admission struct {
	OK bool
	// RetryAfter is how long until the oldest call in the window expires.
	// Zero when OK.
	RetryAfter time.Duration
}

// CallLimiter enforces a per-agent sliding-window budget on upstream agent
// calls. The default (4 per 60s) sits deliberately below the wrapped
// service's published ceiling to leave headroom for other clients of the
// same credential.
//
// Admit records the timestamp before the upstream call is issued, so a slow
// call cannot let a second concurrent caller slip past the limit.
type CallLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time

	now func() time.Time // test hook
}

// NewCallLimiter creates a limiter admitting limit calls per window per agent.
func NewCallLimiter(limit int, window time.Duration) *CallLimiter {
	if limit <= 0 {
		limit = 4
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &CallLimiter{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Admit checks the agent's window and, when room remains, records the call
// timestamp immediately. On rejection nothing is recorded and RetryAfter
// says when the next call would be admitted.
func (l *CallLimiter) Admit(agent string) Admission {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(agent, now)

	if len(window) >= l.limit {
		retry := l.window - now.Sub(window[0])
		if retry < time.Second {
			retry = time.Second
		}
		return Admission{RetryAfter: retry}
	}

	l.calls[agent] = append(window, now)
	return Admission{OK: true}
}

// Sweep prunes all windows and returns how many timestamps were dropped.
func (l *CallLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for agent, window := range l.calls {
		before := len(window)
		pruned := l.prune(agent, now)
		n += before - len(pruned)
		if len(pruned) == 0 {
			delete(l.calls, agent)
		}
	}
	return n
}

// prune drops expired timestamps for agent and returns the live window,
// oldest first. Caller holds the lock.
func (l *CallLimiter) prune(agent string, now time.Time) []time.Time {
	window := l.calls[agent]
	i := 0
	for i < len(window) && now.Sub(window[i]) >= l.window {
		i++
	}
	if i > 0 {
		window = append([]time.Time(nil), window[i:]...)
		l.calls[agent] = window
	}
	return window
}
