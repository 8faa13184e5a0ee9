package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recruitmate/recruitmate-cli/internal/config"
	"github.com/recruitmate/recruitmate-cli/internal/output"
)

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage recruitmate configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > .env > global > system > defaults

Config locations:
  - System: /etc/recruitmate/config.json
  - Global: ~/.config/recruitmate/config.json

Environment variables use the RECRUITMATE_ prefix, e.g. RECRUITMATE_BASE_URL.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show effective configuration",
			Long:  "Display the current effective configuration with source information.",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		newConfigSetCmd(),
		newConfigUnsetCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}

	return app.OK(app.Config.Entries(),
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			output.Breadcrumb{Action: "set", Cmd: "recruitmate config set <key> <value>", Description: "Set a value"},
		),
	)
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}
			credentials := filepath.Join(config.GlobalConfigDir(), "credentials.json")
			if app.Store.UsingKeyring() {
				credentials = "system keyring"
			}
			return app.OK(map[string]string{
				"config":      config.GlobalConfigPath(),
				"credentials": credentials,
				"history":     app.History.Path(),
				"cache_dir":   app.Config.CacheDir,
			}, output.WithSummary(config.GlobalConfigPath()))
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a value in the global config file. Keys: " + strings.Join(config.Keys, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			key, raw := args[0], args[1]
			value, err := parseConfigValue(key, raw)
			if err != nil {
				return err
			}

			path := config.GlobalConfigPath()
			data := readConfigFile(path)
			data[key] = value
			if err := writeConfigFile(path, data); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"value":  value,
				"path":   path,
				"status": "set",
			},
				output.WithSummary(fmt.Sprintf("Set %s = %v", key, value)),
				output.WithBreadcrumbs(
					output.Breadcrumb{Action: "show", Cmd: "recruitmate config show", Description: "View config"},
				),
			)
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long:  "Remove a value from the global config file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd)
			if err != nil {
				return err
			}

			key := args[0]
			path := config.GlobalConfigPath()
			data := readConfigFile(path)
			if _, ok := data[key]; !ok {
				return app.OK(map[string]any{
					"key":    key,
					"status": "not_set",
				}, output.WithSummary(fmt.Sprintf("Key not set: %s", key)))
			}

			delete(data, key)
			if err := writeConfigFile(path, data); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"status": "unset",
			}, output.WithSummary(fmt.Sprintf("Unset %s", key)))
		},
	}
}

// parseConfigValue checks raw against key's type and range.
func parseConfigValue(key, raw string) (any, error) {
	if !slices.Contains(config.Keys, key) {
		return nil, output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, strings.Join(config.Keys, ", ")))
	}

	switch key {
	case "timeout_seconds", "backoff_base_ms":
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, output.ErrUsage(key + " must be a positive whole number")
		}
		return n, nil
	case "verbose":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 2 {
			return nil, output.ErrUsage("verbose must be 0, 1, or 2")
		}
		return n, nil
	case "alpha":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, output.ErrUsage("alpha must be a number between 0 and 1")
		}
		return f, nil
	case "stats":
		b, ok := parseBoolFlag(raw)
		if !ok {
			return nil, output.ErrUsage("stats must be true/false (or 1/0)")
		}
		return b, nil
	case "format":
		if _, err := output.ParseFormat(raw); err != nil {
			return nil, err
		}
		return raw, nil
	case "base_url":
		return config.NormalizeBaseURL(raw), nil
	}
	return raw, nil
}

func parseBoolFlag(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// readConfigFile loads path as a JSON object. A missing or invalid file
// yields an empty one.
func readConfigFile(path string) map[string]any {
	data := make(map[string]any)
	if raw, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: Path is from trusted config location
		_ = json.Unmarshal(raw, &data)
	}
	return data
}

func writeConfigFile(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// atomicWriteFile writes data with 0600 permissions via temp file and rename.
func atomicWriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows rename fails when the destination exists.
	if err := os.Rename(tmpPath, path); err != nil && runtime.GOOS == "windows" {
		_ = os.Remove(path)
		return os.Rename(tmpPath, path)
	} else { //nolint:revive // two-branch rename fallback
		return err
	}
}
