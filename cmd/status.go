package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pantheon-bots/pantheon/internal/agents"
	"github.com/pantheon-bots/pantheon/internal/config"
	"github.com/pantheon-bots/pantheon/internal/platform"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pantheon status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s pantheon Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:      %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Settings:    %s %s\n", cfg.SettingsPath, fileMark(cfg.SettingsPath))
	fmt.Printf("Credentials: %s %s\n", cfg.CredentialsPath, fileMark(cfg.CredentialsPath))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Timeout())
	platMark := "✓"
	if _, err := pc.Channels(ctx, cfg.Platform.RelayToken); err != nil {
		platMark = fmt.Sprintf("✗ (%v)", err)
	}
	fmt.Printf("Platform:    %s %s\n\n", cfg.Platform.BaseURL, platMark)

	creds := agents.NewCredentialStore(cfg.CredentialsPath)
	fmt.Println("Agents:")
	for _, a := range cfg.Agents {
		credMark := "(relay fallback)"
		if _, ok := creds.TokenFor(a.CredentialKey); ok {
			credMark = "✓ own credential"
		}
		fmt.Printf("  %-10s %-36s %s\n", a.Name, a.Endpoint, credMark)
	}
	return nil
}

func fileMark(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "✓"
	}
	return "✗"
}
