// Package main provides the CLI entry point for the ouija spirit gateway.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chrisrobison/ouija/internal/config"
	"github.com/chrisrobison/ouija/internal/logging"
	"github.com/chrisrobison/ouija/internal/server"
	"github.com/chrisrobison/ouija/internal/spirit"
	"github.com/chrisrobison/ouija/internal/store"
)

var (
	// Version information (set at build time)
	version = "dev"

	configPath string

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#c9a227"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ouija",
		Short: "Ouija - a spirit persona gateway in front of a chat model",
		Long: titleStyle.Render("Ouija") + `

Keeps one generated spirit persona and its conversation, and lets you:
• Ask the current spirit questions over HTTP or chat channels
• List, search and switch between spirits that came through before
• Summon a fresh spirit when the current one hands over

` + dimStyle.Render("Use 'ouija [command] --help' for more information."),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(newServeCmd(), newSweepCmd(), newListCmd(), newChatCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads .env (if any), the YAML config and the environment, then
// validates the result and sets up logging.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.Setup(cfg.Logging, os.Stderr)
	server.Version = version
	return cfg, nil
}

// openStore opens the configured backend wrapped in the self-healing store.
func openStore(cfg *config.Config) (*spirit.Store, error) {
	backend, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	return spirit.NewStore(backend), nil
}
