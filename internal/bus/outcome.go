package bus

// Outcome is the definitive result of dispatching one event to one agent.
// Dedup state only advances once an outcome is known.
type Outcome string

const (
	// OutcomePosted means the agent answered and the reply reached the platform.
	OutcomePosted Outcome = "posted"
	// OutcomeRateLimited means the call budget was exhausted; a notice was
	// posted instead and no upstream call was made.
	OutcomeRateLimited Outcome = "rate_limited"
	// OutcomeAgentError means the agent backend failed or returned an error.
	OutcomeAgentError Outcome = "agent_error"
	// OutcomeNoResponse means the agent deliberately returned no text.
	// Still terminal: a non-answer must not cause retries.
	OutcomeNoResponse Outcome = "no_response"
	// OutcomePostFailed means the agent answered but posting to the platform failed.
	OutcomePostFailed Outcome = "post_failed"
	// OutcomeSkipped means cooldown or selection policy excluded the agent.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDuplicate means the dedup ledger had already claimed the event.
	OutcomeDuplicate Outcome = "duplicate"
)

// Answered reports whether the outcome produced a visible reply.
func (o Outcome) Answered() bool { return o == OutcomePosted }

// Failed reports whether the outcome was an error rather than a policy skip.
func (o Outcome) Failed() bool {
	return o == OutcomeAgentError || o == OutcomePostFailed
}
