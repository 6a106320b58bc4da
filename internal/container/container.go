// Package container wires the orchestration services using go.uber.org/dig.
//
// All shared state (dedup ledger, cooldown map, rate windows, settings
// snapshot) is built here once and handed to every component by reference;
// nothing reaches for a global registry.
package container

import (
	"go.uber.org/dig"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/config"
	"github.com/pantheon-bots/pantheon/internal/janitor"
	"github.com/pantheon-bots/pantheon/internal/orchestrator"
	"github.com/pantheon-bots/pantheon/internal/platform"
	"github.com/pantheon-bots/pantheon/internal/poller"
	"github.com/pantheon-bots/pantheon/internal/settings"
	"github.com/pantheon-bots/pantheon/internal/webhook"
)

// Container holds the resolved service singletons. Callers use the typed
// getters; they never need to import dig directly.
type Container struct {
	settingsStore *settings.Store
	registry      *agents.Registry
	credentials   *agents.CredentialStore
	platform      *platform.Client
	pipeline      *orchestrator.Pipeline
	dmPollers     []*poller.DMPoller
	channelPoller *poller.ChannelPoller
	webhookServer *webhook.Server
	janitor       *janitor.Janitor
}

func (c *Container) SettingsStore() *settings.Store       { return c.settingsStore }
func (c *Container) Registry() *agents.Registry           { return c.registry }
func (c *Container) Credentials() *agents.CredentialStore { return c.credentials }
func (c *Container) Platform() *platform.Client           { return c.platform }
func (c *Container) Pipeline() *orchestrator.Pipeline     { return c.pipeline }
func (c *Container) DMPollers() []*poller.DMPoller        { return c.dmPollers }
func (c *Container) ChannelPoller() *poller.ChannelPoller { return c.channelPoller }
func (c *Container) WebhookServer() *webhook.Server       { return c.webhookServer }
func (c *Container) Janitor() *janitor.Janitor            { return c.janitor }

// New builds and wires all services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		newSettingsStore,
		newRegistry,
		newCredentialStore,
		newPlatformClient,
		newAgentClient,
		newLedger,
		newCooldowns,
		newLimiter,
		newSelector,
		newDispatcher,
		newPipeline,
		newDMPollers,
		newChannelPoller,
		newWebhookServer,
		newJanitor,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		st *settings.Store,
		reg *agents.Registry,
		creds *agents.CredentialStore,
		pc *platform.Client,
		pipe *orchestrator.Pipeline,
		dms []*poller.DMPoller,
		cp *poller.ChannelPoller,
		ws *webhook.Server,
		jn *janitor.Janitor,
	) {
		result = &Container{
			settingsStore: st,
			registry:      reg,
			credentials:   creds,
			platform:      pc,
			pipeline:      pipe,
			dmPollers:     dms,
			channelPoller: cp,
			webhookServer: ws,
			janitor:       jn,
		}
	})
	return result, err
}

func newSettingsStore(cfg *config.Config) *settings.Store {
	return settings.NewStore(cfg.SettingsPath)
}

func newRegistry(cfg *config.Config) *agents.Registry {
	return agents.NewRegistry(cfg.Agents, cfg.Platform.RelayUsername)
}

func newCredentialStore(cfg *config.Config) *agents.CredentialStore {
	return agents.NewCredentialStore(cfg.CredentialsPath)
}

func newPlatformClient(cfg *config.Config) *platform.Client {
	return platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Timeout())
}

func newAgentClient() *agents.Client {
	return agents.NewClient()
}

func newLedger() *orchestrator.Ledger {
	return orchestrator.NewLedger(orchestrator.DefaultSeenWindow)
}

func newCooldowns() *orchestrator.CooldownMap {
	return orchestrator.NewCooldownMap()
}

func newLimiter(cfg *config.Config) *orchestrator.CallLimiter {
	return orchestrator.NewCallLimiter(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window())
}

func newSelector(reg *agents.Registry, cd *orchestrator.CooldownMap) *orchestrator.Selector {
	return orchestrator.NewSelector(reg, cd, nil)
}

func newDispatcher(
	cfg *config.Config,
	pc *platform.Client,
	ac *agents.Client,
	creds *agents.CredentialStore,
	limiter *orchestrator.CallLimiter,
	cd *orchestrator.CooldownMap,
) *orchestrator.Dispatcher {
	return orchestrator.NewDispatcher(pc, ac, creds, limiter, cd, cfg.Platform.RelayToken)
}

func newPipeline(
	reg *agents.Registry,
	ledger *orchestrator.Ledger,
	sel *orchestrator.Selector,
	disp *orchestrator.Dispatcher,
	st *settings.Store,
) *orchestrator.Pipeline {
	return orchestrator.NewPipeline(reg, ledger, sel, disp, st)
}

func newDMPollers(
	reg *agents.Registry,
	pc *platform.Client,
	creds *agents.CredentialStore,
	pipe *orchestrator.Pipeline,
	st *settings.Store,
) []*poller.DMPoller {
	var out []*poller.DMPoller
	for _, ag := range reg.Ordered() {
		out = append(out, poller.NewDMPoller(ag, reg, pc, creds, pipe, st))
	}
	return out
}

func newChannelPoller(
	cfg *config.Config,
	reg *agents.Registry,
	pc *platform.Client,
	pipe *orchestrator.Pipeline,
	st *settings.Store,
) *poller.ChannelPoller {
	return poller.NewChannelPoller(reg, pc, pipe, st, cfg.Platform.RelayToken)
}

func newWebhookServer(cfg *config.Config, reg *agents.Registry, pipe *orchestrator.Pipeline) *webhook.Server {
	return webhook.NewServer(reg, pipe, cfg.Webhook.Listen, cfg.Webhook.Token)
}

func newJanitor(
	ledger *orchestrator.Ledger,
	cd *orchestrator.CooldownMap,
	limiter *orchestrator.CallLimiter,
) *janitor.Janitor {
	return janitor.New(ledger, cd, limiter)
}
