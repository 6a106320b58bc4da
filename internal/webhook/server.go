// Package webhook implements the push ingestion path: the synchronous HTTP
// handler the platform delivers outgoing-webhook events to.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/orchestrator"
	"github.com/pantheon-bots/pantheon/internal/platform"
)

// Server handles platform webhook deliveries. Each agent has its own hook
// path, so delivery is always for a directed trigger; the ambient path
// belongs to the channel poller alone.
type Server struct {
	reg      *agents.Registry
	pipeline *orchestrator.Pipeline
	listen   string
	token    string
}

// NewServer creates the webhook listener.
func NewServer(reg *agents.Registry, pipe *orchestrator.Pipeline, listen, token string) *Server {
	return &Server{reg: reg, pipeline: pipe, listen: listen, token: token}
}

// Handler returns the HTTP routing for the hook endpoints.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/hooks/{agent}", s.handleHook).Methods(http.MethodPost)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("webhook: listening", "addr", s.listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		slog.Info("webhook: stopped")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleHook processes one delivery inline. The response body is always
// empty: the platform would auto-post any payload we returned, and replies
// are posted out-of-band under the agent's own identity instead.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	// Malformed or irrelevant payloads are ignored without error; a
	// non-2xx would only make the platform retry or disable the hook.
	defer w.WriteHeader(http.StatusOK)

	reqID := uuid.NewString()

	var payload platform.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Debug("webhook: undecodable payload", "req", reqID, "err", err)
		return
	}
	if payload.Text == "" || payload.ChannelID == "" {
		slog.Debug("webhook: irrelevant payload shape", "req", reqID)
		return
	}
	if s.token != "" && payload.Token != s.token {
		slog.Debug("webhook: token mismatch", "req", reqID)
		return
	}

	ag, ok := s.reg.Lookup(mux.Vars(r)["agent"])
	if !ok && payload.TriggerWord != "" {
		ag, ok = s.reg.MatchTrigger(payload.TriggerWord)
	}
	if !ok {
		slog.Debug("webhook: no addressed agent", "req", reqID)
		return
	}

	// The platform loops our own posts back through the hook; answering
	// them would be an echo chamber of one.
	if payload.UserName != "" && (payload.UserName == ag.Name || s.reg.RelayName() == payload.UserName) {
		slog.Debug("webhook: own message ignored", "req", reqID, "agent", ag.Name)
		return
	}

	e := bus.InboundEvent{
		Source:        bus.SourceWebhook,
		ChannelID:     payload.ChannelID,
		MessageID:     payload.PostID, // often absent; dedup uses the fingerprint
		SenderID:      payload.UserID,
		SenderName:    payload.UserName,
		SenderIsAgent: s.reg.IsKnown(payload.UserName),
		Text:          payload.Text,
		ObservedAt:    time.Now(),
	}

	// Race-closing step: claim the fingerprint before any agent call, so a
	// concurrent poll tick observing the same message stops at the ledger.
	if !s.pipeline.Ledger().Mark(ag.Name, e.ChannelID, e.Text) {
		slog.Debug("webhook: duplicate suppressed", "req", reqID, "agent", ag.Name, "channel", e.ChannelID)
		return
	}

	outcome := s.pipeline.HandleDirected(r.Context(), ag, e)
	slog.Info("webhook: handled", "req", reqID, "agent", ag.Name, "channel", e.ChannelID, "outcome", outcome)
}
