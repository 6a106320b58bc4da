package orchestrator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/bus"
	"github.com/pantheon-bots/pantheon/internal/config"
	"github.com/pantheon-bots/pantheon/internal/platform"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

// recordedPost is one CreatePost call the fake platform accepted.
type recordedPost struct {
	Token string
	Req   platform.CreatePostRequest
}

// fakePlatform is an httptest-backed platform API: it records posts and
// serves canned users and post lists.
type fakePlatform struct {
	mu       sync.Mutex
	posts    []recordedPost
	users    map[string]platform.User
	lists    map[string]platform.PostList
	channels []platform.Channel
	nextID   int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		users: map[string]platform.User{},
		lists: map[string]platform.PostList{},
	}
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v4/posts":
		var req platform.CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.posts = append(f.posts, recordedPost{Token: token, Req: req})
		f.nextID++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(platform.Post{ID: fmt.Sprintf("created-%d", f.nextID)})

	case r.Method == http.MethodGet && r.URL.Path == "/api/v4/users/me/channels":
		json.NewEncoder(w).Encode(f.channels)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v4/users/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v4/users/")
		u, ok := f.users[id]
		if !ok {
			u = platform.User{ID: id, Username: "alice"}
		}
		json.NewEncoder(w).Encode(u)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v4/channels/"):
		chID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v4/channels/"), "/posts")
		chID = strings.Split(chID, "/")[0]
		json.NewEncoder(w).Encode(f.lists[chID])

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePlatform) recorded() []recordedPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedPost(nil), f.posts...)
}

// env bundles a fully wired pipeline against fake platform and agent
// backends.
type env struct {
	t *testing.T

	plat    *fakePlatform
	platSrv *httptest.Server

	callMu sync.Mutex
	calls  map[string]int // agent name -> query count
	reply  map[string]string

	reg       *agents.Registry
	creds     *agents.CredentialStore
	ledger    *Ledger
	cooldowns *CooldownMap
	limiter   *CallLimiter
	store     *settings.Store
	disp      *Dispatcher
	pipe      *Pipeline
}

func newEnv(t *testing.T, mutate func(*settings.Settings)) *env {
	t.Helper()

	e := &env{
		t:     t,
		plat:  newFakePlatform(),
		calls: map[string]int{},
		reply: map[string]string{
			"gaia":    "the world turns",
			"thoth":   "so it is written",
			"chronos": "in due time",
		},
	}
	e.platSrv = httptest.NewServer(e.plat)
	t.Cleanup(e.platSrv.Close)

	var cfgs []config.AgentConfig
	for _, name := range []string{"gaia", "thoth", "chronos"} {
		srv := httptest.NewServer(e.agentHandler(name))
		t.Cleanup(srv.Close)
		cfgs = append(cfgs, config.AgentConfig{
			Name:          name,
			Endpoint:      srv.URL,
			CredentialKey: name,
		})
	}
	e.reg = agents.NewRegistry(cfgs, "pantheon")

	dir := t.TempDir()
	credPath := filepath.Join(dir, "credentials.json")
	writeJSON(t, credPath, map[string]agents.Credential{
		"gaia":  {Token: "tok-gaia", IsActive: true},
		"thoth": {Token: "tok-thoth", IsActive: true},
		// chronos has no active credential: posts fall back to the relay.
		"chronos": {Token: "tok-chronos", IsActive: false},
	})
	e.creds = agents.NewCredentialStore(credPath)

	settingsPath := filepath.Join(dir, "settings.json")
	st := settings.Default()
	st.BaseResponseProb = 1.0
	st.BotToBotProb = 1.0
	if mutate != nil {
		mutate(&st)
	}
	writeJSON(t, settingsPath, st)
	e.store = settings.NewStore(settingsPath)

	e.ledger = NewLedger(60 * time.Second)
	e.cooldowns = NewCooldownMap()
	e.limiter = NewCallLimiter(4, 60*time.Second)
	sel := NewSelector(e.reg, e.cooldowns, rand.New(rand.NewSource(7)))
	e.disp = NewDispatcher(platform.NewClient(e.platSrv.URL, 5*time.Second),
		agents.NewClient(), e.creds, e.limiter, e.cooldowns, "tok-relay")
	e.pipe = NewPipeline(e.reg, e.ledger, sel, e.disp, e.store)
	return e
}

// agentHandler serves one fake agent backend. Replies come from e.reply;
// an empty reply means a deliberate non-answer, "ERROR" a backend failure.
func (e *env) agentHandler(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.callMu.Lock()
		e.calls[name]++
		text := e.reply[name]
		e.callMu.Unlock()

		switch text {
		case "ERROR":
			w.WriteHeader(http.StatusInternalServerError)
		case "":
			json.NewEncoder(w).Encode(agents.QueryResponse{})
		default:
			json.NewEncoder(w).Encode(agents.QueryResponse{ResponseText: &text})
		}
	})
}

func (e *env) queryCount(name string) int {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	return e.calls[name]
}

func (e *env) setReply(name, text string) {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	e.reply[name] = text
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ─── Dispatcher ────────────────────────────────────────────────────────────

func TestDispatch_PostsUnderAgentIdentity(t *testing.T) {
	e := newEnv(t, nil)
	ag, _ := e.reg.Lookup("gaia")

	outcome := e.disp.Dispatch(t.Context(), ag, testEvent("hello @gaia"), e.store.Current(), true)
	if outcome != bus.OutcomePosted {
		t.Fatalf("expected posted, got %s", outcome)
	}

	posts := e.plat.recorded()
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].Token != "tok-gaia" {
		t.Errorf("expected gaia's own credential, got %q", posts[0].Token)
	}
	if posts[0].Req.OverrideUsername != "gaia" {
		t.Errorf("expected override_username gaia, got %q", posts[0].Req.OverrideUsername)
	}
	if posts[0].Req.RootID == "" {
		t.Error("reply_in_thread default must thread under the trigger")
	}
}

func TestDispatch_RelayCredentialFallback(t *testing.T) {
	e := newEnv(t, nil)
	ag, _ := e.reg.Lookup("chronos") // inactive credential

	if outcome := e.disp.Dispatch(t.Context(), ag, testEvent("@chronos when?"), e.store.Current(), true); outcome != bus.OutcomePosted {
		t.Fatalf("expected posted, got %s", outcome)
	}
	posts := e.plat.recorded()
	if posts[0].Token != "tok-relay" {
		t.Errorf("expected relay fallback token, got %q", posts[0].Token)
	}
	if posts[0].Req.OverrideUsername != "chronos" {
		t.Errorf("identity must still be chronos, got %q", posts[0].Req.OverrideUsername)
	}
}

func TestDispatch_TopLevelWhenThreadingOff(t *testing.T) {
	e := newEnv(t, func(s *settings.Settings) { s.ReplyInThread = false })
	ag, _ := e.reg.Lookup("gaia")

	e.disp.Dispatch(t.Context(), ag, testEvent("@gaia hi"), e.store.Current(), true)
	if posts := e.plat.recorded(); posts[0].Req.RootID != "" {
		t.Errorf("expected top-level post, got root %q", posts[0].Req.RootID)
	}
}

func TestDispatch_RateLimited(t *testing.T) {
	// Burst past the window budget. The next call must not
	// reach the agent and the user sees a retry notice instead.
	e := newEnv(t, nil)
	ag, _ := e.reg.Lookup("gaia")

	for i := 0; i < 4; i++ {
		if adm := e.limiter.Admit("gaia"); !adm.OK {
			t.Fatalf("setup admit %d failed", i)
		}
	}

	outcome := e.disp.Dispatch(t.Context(), ag, testEvent("@gaia again"), e.store.Current(), true)
	if outcome != bus.OutcomeRateLimited {
		t.Fatalf("expected rate_limited, got %s", outcome)
	}
	if n := e.queryCount("gaia"); n != 0 {
		t.Fatalf("upstream agent must not be contacted, got %d calls", n)
	}
	posts := e.plat.recorded()
	if len(posts) != 1 || !strings.Contains(posts[0].Req.Message, "try again in") {
		t.Fatalf("expected a retry notice, got %+v", posts)
	}
}

func TestDispatch_NoResponse(t *testing.T) {
	e := newEnv(t, nil)
	e.setReply("thoth", "")
	ag, _ := e.reg.Lookup("thoth")

	outcome := e.disp.Dispatch(t.Context(), ag, testEvent("@thoth?"), e.store.Current(), true)
	if outcome != bus.OutcomeNoResponse {
		t.Fatalf("expected no_response, got %s", outcome)
	}
	if len(e.plat.recorded()) != 0 {
		t.Fatal("a non-answer must not post")
	}
	if e.cooldowns.Active("thoth", "town-square", "m1", time.Minute) {
		t.Fatal("a non-answer must not start a cooldown")
	}
}

func TestDispatch_AgentError(t *testing.T) {
	e := newEnv(t, nil)
	e.setReply("gaia", "ERROR")
	ag, _ := e.reg.Lookup("gaia")

	if outcome := e.disp.Dispatch(t.Context(), ag, testEvent("@gaia hi"), e.store.Current(), true); outcome != bus.OutcomeAgentError {
		t.Fatalf("expected agent_error, got %s", outcome)
	}
}

func TestDispatch_CooldownOnlyOnSuccess(t *testing.T) {
	e := newEnv(t, nil)
	ag, _ := e.reg.Lookup("gaia")
	ev := testEvent("@gaia hi")

	e.disp.Dispatch(t.Context(), ag, ev, e.store.Current(), true)
	if !e.cooldowns.Active("gaia", ev.ChannelID, ev.RootID(), time.Minute) {
		t.Fatal("successful post must start the cooldown")
	}
}

// ─── Pipeline ──────────────────────────────────────────────────────────────

func TestHandlePolled_DirectedMention(t *testing.T) {
	e := newEnv(t, nil)

	outcomes := e.pipe.HandlePolled(t.Context(), nil, testEvent("tell me, @thoth"))
	if len(outcomes) != 1 || outcomes[0] != bus.OutcomePosted {
		t.Fatalf("expected [posted], got %v", outcomes)
	}
	if e.queryCount("thoth") != 1 || e.queryCount("gaia") != 0 {
		t.Fatalf("only thoth must be queried: gaia=%d thoth=%d", e.queryCount("gaia"), e.queryCount("thoth"))
	}
}

func TestHandlePolled_BotToBotDisabled(t *testing.T) {
	// Sender is a known agent and bot-to-bot is off.
	e := newEnv(t, func(s *settings.Settings) { s.AllowBotToBot = false })

	outcomes := e.pipe.HandlePolled(t.Context(), nil, agentEvent("interesting @gaia", "thoth"))
	if len(outcomes) != 0 {
		t.Fatalf("expected empty selection, got %v", outcomes)
	}
	if e.queryCount("gaia") != 0 {
		t.Fatal("no agent may be called")
	}
}

func TestHandlePolled_CommandsSkipped(t *testing.T) {
	e := newEnv(t, nil)
	if outcomes := e.pipe.HandlePolled(t.Context(), nil, testEvent("/world add realm")); outcomes != nil {
		t.Fatalf("commands are administered elsewhere, got %v", outcomes)
	}
}

func TestHandlePolled_UndirectedCapped(t *testing.T) {
	e := newEnv(t, func(s *settings.Settings) { s.MaxRepliesPerPost = 1 })

	outcomes := e.pipe.HandlePolled(t.Context(), nil, testEvent("what a morning"))
	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one responder, got %v", outcomes)
	}
	if len(e.plat.recorded()) != 1 {
		t.Fatalf("expected exactly one post, got %d", len(e.plat.recorded()))
	}
}

func TestHandlePolled_DMOwnerAlwaysAddressed(t *testing.T) {
	e := newEnv(t, func(s *settings.Settings) { s.BaseResponseProb = 0 })
	ag, _ := e.reg.Lookup("chronos")

	ev := testEvent("what time is it")
	ev.ChannelID = "dm-chronos"
	outcomes := e.pipe.HandlePolled(t.Context(), &ag, ev)
	if len(outcomes) != 1 || outcomes[0] != bus.OutcomePosted {
		t.Fatalf("DM owner must answer regardless of probability, got %v", outcomes)
	}
	if e.queryCount("chronos") != 1 {
		t.Fatalf("expected 1 chronos call, got %d", e.queryCount("chronos"))
	}
}

func TestHandlePolled_DuplicateSuppressed(t *testing.T) {
	// The webhook path already claimed the same text for the
	// same agent within the window.
	e := newEnv(t, nil)
	ev := testEvent("hello @thoth")
	if !e.ledger.Mark("thoth", ev.ChannelID, ev.Text) {
		t.Fatal("setup mark failed")
	}

	outcomes := e.pipe.HandlePolled(t.Context(), nil, ev)
	if len(outcomes) != 1 || outcomes[0] != bus.OutcomeDuplicate {
		t.Fatalf("expected [duplicate], got %v", outcomes)
	}
	if e.queryCount("thoth") != 0 {
		t.Fatal("duplicate must not reach the agent")
	}
	if len(e.plat.recorded()) != 0 {
		t.Fatal("duplicate must not post")
	}
}

func TestHandlePolled_AllFailedSurfacesNotice(t *testing.T) {
	e := newEnv(t, nil)
	e.setReply("gaia", "ERROR")
	e.setReply("thoth", "ERROR")
	e.setReply("chronos", "ERROR")

	e.pipe.HandlePolled(t.Context(), nil, testEvent("@gaia @thoth please"))

	posts := e.plat.recorded()
	if len(posts) != 1 || !strings.Contains(posts[0].Req.Message, "Sorry") {
		t.Fatalf("expected one apologetic notice, got %+v", posts)
	}
}

func TestHandlePolled_PartialFailureStaysSilent(t *testing.T) {
	e := newEnv(t, nil)
	e.setReply("gaia", "ERROR")

	e.pipe.HandlePolled(t.Context(), nil, testEvent("@gaia @thoth please"))

	posts := e.plat.recorded()
	if len(posts) != 1 {
		t.Fatalf("expected only thoth's answer, got %+v", posts)
	}
	if posts[0].Req.OverrideUsername != "thoth" {
		t.Errorf("expected thoth's post, got %q", posts[0].Req.OverrideUsername)
	}
}

func TestHandleDirected_CooldownSkips(t *testing.T) {
	e := newEnv(t, nil)
	ag, _ := e.reg.Lookup("gaia")
	ev := testEvent("hello @gaia")
	e.cooldowns.Touch("gaia", ev.ChannelID, ev.RootID())

	if outcome := e.pipe.HandleDirected(t.Context(), ag, ev); outcome != bus.OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if e.queryCount("gaia") != 0 {
		t.Fatal("cooled-down agent must not be queried")
	}
}
