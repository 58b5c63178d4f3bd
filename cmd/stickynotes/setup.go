package main

// file: cmd/stickynotes/setup.go

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/spf13/cobra"
)

// serverEntryName is the key under mcpServers in the Claude Desktop configuration.
const serverEntryName = "stickynotes"

// MCPServerConfig represents a server configuration in Claude Desktop.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func newSetupCommand(root *rootOptions) *cobra.Command {
	var claudeConfigPath string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a default config and register the server with Claude Desktop",
		Long: `Create a default configuration file if none exists and add a "stickynotes" entry to
Claude Desktop's mcpServers. No credentials are written to either file; store the
profile API token with 'stickynotes token set'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exePath, err := os.Executable()
			if err != nil {
				return errors.Wrap(err, "failed to get executable path")
			}
			if exePath, err = filepath.Abs(exePath); err != nil {
				return errors.Wrap(err, "failed to get absolute executable path")
			}
			if claudeConfigPath == "" {
				claudeConfigPath = getClaudeConfigPath()
			}
			return runSetup(cmd.OutOrStdout(), exePath, root.configPath, claudeConfigPath)
		},
	}
	cmd.Flags().StringVar(&claudeConfigPath, "claude-config", "", "Path to claude_desktop_config.json (default depends on the OS)")
	return cmd
}

// runSetup creates the local configuration and registers the server with Claude Desktop.
// Failing to update Claude Desktop is not fatal; manual instructions are printed instead.
func runSetup(out io.Writer, exePath, configPath, claudeConfigPath string) error {
	if err := createDefaultConfig(out, configPath); err != nil {
		return errors.Wrap(err, "failed to create default configuration")
	}

	if err := configureClaudeDesktop(claudeConfigPath, exePath, configPath); err != nil {
		fmt.Fprintf(out, "Warning: Failed to configure Claude Desktop automatically: %v\n", err)
		fmt.Fprintln(out, "You'll need to configure Claude Desktop manually.")
		printManualSetupInstructions(out, exePath, configPath, claudeConfigPath)
	} else {
		fmt.Fprintf(out, "Successfully configured Claude Desktop at %s\n", claudeConfigPath)
	}

	fmt.Fprintln(out, "Setup complete.")
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "1. Run 'stickynotes token set' to store the profile API bearer token")
	fmt.Fprintln(out, "2. Restart Claude Desktop")
	fmt.Fprintln(out, "3. Ask Claude to add a note, then to read your notes")
	return nil
}

// createDefaultConfig writes a commented default configuration unless one already exists.
func createDefaultConfig(out io.Writer, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Configuration file already exists at %s\n", configPath)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return errors.Wrap(err, "failed to create configuration directory")
	}

	fmt.Fprintf(out, "Creating default configuration at %s\n", configPath)
	defaults := config.DefaultConfig()
	content := fmt.Sprintf(`server:
  name: %q
  request_timeout: %s

notes:
  # Defaults to notes.txt beside the executable.
  path: %q
  watch: true

profile:
  base_url: %q
  timeout: %s
  show_inactive_profiles: true
  # The bearer token is read from the OS keyring ('stickynotes token set') or from
  # STICKYNOTES_PROFILE_TOKEN. Avoid putting it in this file.
  # bearer_token: ""

logging:
  level: info
`, defaults.Server.Name, defaults.Server.RequestTimeout, defaults.Notes.Path,
		config.DefaultProfileBaseURL, config.DefaultProfileTimeout)

	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return errors.Wrap(err, "failed to write default configuration file")
	}
	return nil
}

// configureClaudeDesktop adds or replaces the stickynotes entry in Claude Desktop's
// configuration, keeping every other server and top-level setting.
func configureClaudeDesktop(claudeConfigPath, exePath, configPath string) error {
	document := map[string]json.RawMessage{}
	servers := map[string]json.RawMessage{}

	// #nosec G304 -- Path is determined by OS convention or an explicit flag.
	data, err := os.ReadFile(claudeConfigPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &document); err != nil {
			return errors.Wrapf(err, "existing Claude Desktop configuration is not valid JSON: %s", claudeConfigPath)
		}
		if raw, ok := document["mcpServers"]; ok {
			if err := json.Unmarshal(raw, &servers); err != nil {
				return errors.Wrap(err, "mcpServers in Claude Desktop configuration is not an object")
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return errors.Wrap(err, "failed to read Claude Desktop configuration")
	}

	entry, err := json.Marshal(MCPServerConfig{
		Command: exePath,
		Args:    []string{"serve", "--config", configPath},
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal server entry")
	}
	servers[serverEntryName] = entry

	if document["mcpServers"], err = json.Marshal(servers); err != nil {
		return errors.Wrap(err, "failed to marshal mcpServers")
	}
	out, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal Claude Desktop configuration")
	}

	if err := os.MkdirAll(filepath.Dir(claudeConfigPath), 0o700); err != nil {
		return errors.Wrap(err, "failed to create Claude Desktop configuration directory")
	}
	if err := os.WriteFile(claudeConfigPath, out, 0o600); err != nil {
		return errors.Wrap(err, "failed to write Claude Desktop configuration")
	}
	return nil
}

// getClaudeConfigPath returns the path to Claude Desktop's configuration file based on the OS.
func getClaudeConfigPath() string {
	var configDir string
	switch runtime.GOOS {
	case "darwin":
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, "Library", "Application Support", "Claude")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "Claude")
	default:
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config", "Claude")
	}
	return filepath.Join(configDir, "claude_desktop_config.json")
}

func printManualSetupInstructions(out io.Writer, exePath, configPath, claudeConfigPath string) {
	entry, _ := json.MarshalIndent(map[string]interface{}{
		"mcpServers": map[string]MCPServerConfig{
			serverEntryName: {Command: exePath, Args: []string{"serve", "--config", configPath}},
		},
	}, "", "  ")

	fmt.Fprintln(out, "\n==== Manual Claude Desktop Configuration ====")
	fmt.Fprintf(out, "1. Create or edit the file at: %s\n", claudeConfigPath)
	fmt.Fprintln(out, "2. Merge the following into it:")
	fmt.Fprintln(out, string(entry))
	fmt.Fprintln(out, "3. Restart Claude Desktop to apply the changes.")
	fmt.Fprintln(out, "==============================================")
}
