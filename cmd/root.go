package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fakeyudi/partline/internal/config"
	"github.com/fakeyudi/partline/internal/logging"
	"github.com/fakeyudi/partline/internal/profile"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded annotator profile.
var activeProfile *profile.Profile

// logger is the process logger, rebuilt once cfg is known.
var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:          "partline",
	Short:        "Annotate behavioral video as contiguous, labeled partitions",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup check for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() {
			if term.IsTerminal(os.Stdin.Fd()) {
				fmt.Println()
				fmt.Println("  Welcome to partline! Looks like this is your first time.")
				if err := runSetup(true); err != nil {
					return err
				}
			}
			// Non-interactive (tests, pipes): continue with defaults, no profile required.
		}

		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		// Config files, then PARTLINE_* environment and flags on top.
		merged, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// Profile values fill in config gaps.
		cfg = applyProfile(merged, activeProfile)

		logger = logging.New(cmd.ErrOrStderr(), logging.Level(cfg.Verbose))
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyProfile fills settings still at their defaults from the annotator
// profile. Anything set in a config file, the environment or a flag wins.
func applyProfile(c config.Config, p *profile.Profile) config.Config {
	if p == nil {
		return c
	}
	defaults := config.Defaults()
	if c.DefaultFormat == defaults.DefaultFormat && p.DefaultFormat != "" {
		c.DefaultFormat = p.DefaultFormat
	}
	if c.OutputDir == defaults.OutputDir && p.OutputDir != "" {
		c.OutputDir = p.OutputDir
	}
	if c.SelectionMode == defaults.SelectionMode && p.SelectionMode != "" {
		c.SelectionMode = p.SelectionMode
	}
	if !c.DismissOnRelease() && p.DismissOnRelease {
		dismiss := true
		c.DismissSelectionOnRelease = &dismiss
	}
	return c
}

// initConfig wires PARTLINE_* environment variables into viper.
func initConfig() {
	viper.SetEnvPrefix("PARTLINE")
	viper.AutomaticEnv()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("db", "", "database file (default $XDG_DATA_HOME/partline/partline.db)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging to stderr")
	_ = viper.BindPFlag(config.KeyDBPath, rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))
}

// GetProfile returns the active annotator profile.
func GetProfile() *profile.Profile {
	return activeProfile
}
