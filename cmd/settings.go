package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pantheon-bots/pantheon/internal/config"
	"github.com/pantheon-bots/pantheon/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and tune the runtime settings",
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the effective runtime settings",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		st := settings.NewStore(cfg.SettingsPath).Current()
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one runtime setting (written atomically, picked up live)",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store := settings.NewStore(cfg.SettingsPath)
		if err := store.Update(func(s *settings.Settings) error { return applySetting(s, args[0], args[1]) }); err != nil {
			return err
		}
		fmt.Printf("✓ %s = %s\n", args[0], args[1])
		return nil
	},
}

// applySetting maps a settings key name to its typed field.
func applySetting(s *settings.Settings, key, value string) error {
	switch key {
	case "base_response_prob":
		return setFloat(&s.BaseResponseProb, value)
	case "bot_to_bot_prob":
		return setFloat(&s.BotToBotProb, value)
	case "max_replies_per_post":
		return setInt(&s.MaxRepliesPerPost, value)
	case "cooldown_seconds":
		return setInt(&s.CooldownSeconds, value)
	case "poll_interval_seconds":
		return setInt(&s.PollIntervalSeconds, value)
	case "reply_in_thread":
		return setBool(&s.ReplyInThread, value)
	case "allow_bot_to_bot":
		return setBool(&s.AllowBotToBot, value)
	case "residual_engagement":
		var b bool
		if err := setBool(&b, value); err != nil {
			return err
		}
		s.ResidualEngagement = &b
		return nil
	default:
		if name, ok := strings.CutPrefix(key, "temperature."); ok {
			var t float64
			if err := setFloat(&t, value); err != nil {
				return err
			}
			if s.AgentTemperatures == nil {
				s.AgentTemperatures = map[string]float64{}
			}
			s.AgentTemperatures[name] = t
			return nil
		}
		return fmt.Errorf("unknown setting %q", key)
	}
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", v)
	}
	*dst = f
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %q", v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("not a boolean: %q", v)
	}
	*dst = b
	return nil
}
