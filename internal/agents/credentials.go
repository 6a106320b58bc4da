package agents

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Credential is one entry in the credential store file.
type Credential struct {
	Token    string `json:"token"`
	IsActive bool   `json:"is_active"`
}

// CredentialStore reads the JSON credential map {agent: {token, is_active}}.
// The file is owned by the provisioning tooling; this component only reads
// it, re-parsing when the file's modification time advances.
type CredentialStore struct {
	path string

	mu    sync.Mutex
	creds map[string]Credential
	mtime time.Time
}

// NewCredentialStore creates a store backed by the file at path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path, creds: map[string]Credential{}}
}

// TokenFor returns the active token for key, or ok=false when the agent has
// no usable credential and the caller should fall back to the relay token.
func (s *CredentialStore) TokenFor(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload()

	c, ok := s.creds[key]
	if !ok || !c.IsActive || c.Token == "" {
		return "", false
	}
	return c.Token, true
}

// Entries returns a copy of all credential entries, for status reporting.
func (s *CredentialStore) Entries() map[string]Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload()

	out := make(map[string]Credential, len(s.creds))
	for k, v := range s.creds {
		out[k] = v
	}
	return out
}

// reload re-parses the file when its mtime advanced. Caller holds the lock.
func (s *CredentialStore) reload() {
	fi, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if !fi.ModTime().After(s.mtime) {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		slog.Warn("credentials: read failed", "path", s.path, "err", err)
		return
	}
	var creds map[string]Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		slog.Warn("credentials: parse failed, keeping last set", "path", s.path, "err", err)
		return
	}
	s.creds = creds
	s.mtime = fi.ModTime()
}
