package main

// file: cmd/stickynotes/note.go

import (
	"fmt"
	"strings"

	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/notes"
	"github.com/spf13/cobra"
)

// newNoteCommand groups commands that work on the note file directly, without a server.
func newNoteCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Add and read notes from the terminal",
	}

	openStore := func() (*notes.Store, error) {
		_, cfg, err := setupLoggingAndConfig(root, "note_cli")
		if err != nil {
			return nil, err
		}
		return notes.NewStore(cfg.Notes.Path, logging.GetLogger("notes")), nil
	}

	addCmd := &cobra.Command{
		Use:   "add <message>...",
		Short: "Append a note",
		Long:  "Append a note. Multiple arguments are joined with single spaces.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			msg, err := store.AddNote(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			content, err := store.ReadNotes()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}

	latestCmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			latest, err := store.LatestNote()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), latest)
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, latestCmd)
	return cmd
}
