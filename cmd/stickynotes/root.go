package main

// file: cmd/stickynotes/root.go

import (
	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
	// explicitConfig is set when --config was given, making a missing file an error.
	explicitConfig bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "stickynotes",
		Short: "MCP server for sticky notes and profile lookups",
		Long: `stickynotes is a Model Context Protocol server. It appends notes to a flat file,
exposes the latest note as a resource, offers a note summary prompt and looks up
profiles from the profile API.

Run 'stickynotes serve' from an MCP host such as Claude Desktop, or 'stickynotes setup'
to register it there.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.explicitConfig = cmd.Flags().Changed("config")
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultConfigPath(), "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newNoteCommand(opts),
		newTokenCommand(opts),
		newSetupCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// setupLoggingAndConfig loads configuration and installs the default stderr logger.
// The debug flag wins over the configured level.
func setupLoggingAndConfig(opts *rootOptions, component string) (logging.Logger, *config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.explicitConfig)
	if err != nil {
		// Logging is not configured yet; report at the default level.
		logging.SetupDefaultLogger("info")
		return logging.GetLogger(component), nil, errors.Wrap(err, "failed to load configuration")
	}

	level := cfg.Logging.Level
	if opts.debug {
		level = "debug"
	}
	logging.SetupDefaultLogger(level)
	logger := logging.GetLogger(component)
	logger.Debug("Configuration ready.", "config_path", opts.configPath, "explicit", opts.explicitConfig, "notes_path", cfg.Notes.Path)
	return logger, cfg, nil
}
