package agents

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func credStore(t *testing.T, content string) *CredentialStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write credentials: %v", err)
		}
	}
	return NewCredentialStore(path)
}

func rewrite(t *testing.T, s *CredentialStore, content string) {
	t.Helper()
	if err := os.WriteFile(s.path, []byte(content), 0o600); err != nil {
		t.Fatalf("rewrite credentials: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(s.path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestTokenFor_ActiveOnly(t *testing.T) {
	s := credStore(t, `{
		"gaia":    {"token": "tok-gaia", "is_active": true},
		"thoth":   {"token": "tok-thoth", "is_active": false},
		"chronos": {"token": "", "is_active": true}
	}`)

	if tok, ok := s.TokenFor("gaia"); !ok || tok != "tok-gaia" {
		t.Errorf("gaia = %q %v", tok, ok)
	}
	if _, ok := s.TokenFor("thoth"); ok {
		t.Error("inactive credential must not be served")
	}
	if _, ok := s.TokenFor("chronos"); ok {
		t.Error("empty token must not be served")
	}
	if _, ok := s.TokenFor("zeus"); ok {
		t.Error("unknown key must not be served")
	}
}

func TestTokenFor_MissingFile(t *testing.T) {
	s := credStore(t, "")
	if _, ok := s.TokenFor("gaia"); ok {
		t.Error("missing file must serve nothing")
	}
}

func TestCredentialStore_ReloadsOnChange(t *testing.T) {
	s := credStore(t, `{"gaia": {"token": "old", "is_active": true}}`)
	if tok, _ := s.TokenFor("gaia"); tok != "old" {
		t.Fatalf("first read = %q", tok)
	}

	rewrite(t, s, `{"gaia": {"token": "rotated", "is_active": true}}`)
	if tok, _ := s.TokenFor("gaia"); tok != "rotated" {
		t.Fatalf("after rotation = %q, want rotated", tok)
	}
}

func TestCredentialStore_CorruptFileKeepsLastSet(t *testing.T) {
	s := credStore(t, `{"gaia": {"token": "tok", "is_active": true}}`)
	s.TokenFor("gaia")

	rewrite(t, s, `{half a document`)
	if tok, ok := s.TokenFor("gaia"); !ok || tok != "tok" {
		t.Fatalf("corrupt rewrite must keep last set, got %q %v", tok, ok)
	}
}

func TestEntries_Copies(t *testing.T) {
	s := credStore(t, `{"gaia": {"token": "tok", "is_active": true}}`)

	entries := s.Entries()
	if len(entries) != 1 || entries["gaia"].Token != "tok" {
		t.Fatalf("entries = %+v", entries)
	}
	entries["gaia"] = Credential{}
	if tok, ok := s.TokenFor("gaia"); !ok || tok != "tok" {
		t.Fatal("mutating the returned map must not affect the store")
	}
}
