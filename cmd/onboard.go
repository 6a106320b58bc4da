package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pantheon-bots/pantheon/internal/config"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and runtime settings",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.SettingsPath); err != nil {
		// Writing defaults through the store gives operators a file to
		// edit instead of guessing the key names.
		store := settings.NewStore(cfg.SettingsPath)
		if err := store.Update(func(*settings.Settings) error { return nil }); err != nil {
			return fmt.Errorf("write settings: %w", err)
		}
		fmt.Printf("✓ Created settings at %s\n", cfg.SettingsPath)
	}

	fmt.Printf("\n%s pantheon is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Set the platform URL and relay token in %s\n", cfgPath)
	fmt.Printf("  2. Drop the agent credentials into %s\n", cfg.CredentialsPath)
	fmt.Println("  3. Run: pantheon relay")
	return nil
}
