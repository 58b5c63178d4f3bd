package main

// file: cmd/stickynotes/token.go

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/auth"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/spf13/cobra"
)

// newTokenCommand manages the profile API bearer token in the OS keyring (or the token
// file when no keyring is available). The token is never printed.
func newTokenCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the profile API bearer token",
	}

	openStore := func() (auth.TokenStore, error) {
		_, cfg, err := setupLoggingAndConfig(root, "token_cli")
		if err != nil {
			return nil, err
		}
		return auth.NewTokenStore(cfg.Auth, logging.GetLogger("auth"))
	}

	setCmd := &cobra.Command{
		Use:   "set [token]",
		Short: "Store the bearer token",
		Long:  "Store the bearer token. Without an argument the token is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = strings.TrimSpace(args[0])
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "Enter bearer token: ")
				var err error
				if token, err = readTokenLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if token == "" {
				return errors.New("bearer token cannot be empty")
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.SaveToken(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bearer token saved.")
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.DeleteToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bearer token removed.")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report where the bearer token comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, cfg, err := setupLoggingAndConfig(root, "token_cli")
			if err != nil {
				return err
			}
			store, err := auth.NewTokenStore(cfg.Auth, logging.GetLogger("auth"))
			if err != nil {
				return err
			}
			token, source, err := auth.ResolveBearerToken(cfg.Profile, store, logger)
			if err != nil {
				return err
			}
			return printTokenStatus(cmd.OutOrStdout(), store, token, source)
		},
	}

	cmd.AddCommand(setCmd, clearCmd, statusCmd)
	return cmd
}

// readTokenLine reads one line from r. End of input without a newline is accepted.
func readTokenLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "failed to read bearer token")
	}
	return strings.TrimSpace(line), nil
}

func printTokenStatus(w io.Writer, store auth.TokenStore, token, source string) error {
	if token == "" {
		fmt.Fprintln(w, "No bearer token configured. Profile lookups are sent with an empty bearer value.")
		fmt.Fprintln(w, "Run 'stickynotes token set' or set STICKYNOTES_PROFILE_TOKEN.")
		return nil
	}

	fmt.Fprintf(w, "Bearer token configured (source: %s, %d characters).\n", source, len(token))
	if source != auth.SourceKeyring {
		return nil
	}
	if keyringStore, ok := store.(*auth.KeyringTokenStore); ok {
		data, err := keyringStore.GetTokenData()
		if err != nil {
			return err
		}
		if data != nil && !data.UpdatedAt.IsZero() {
			fmt.Fprintf(w, "Last updated: %s\n", data.UpdatedAt.Local().Format(time.RFC1123))
		}
	}
	return nil
}
