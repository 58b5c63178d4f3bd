// file: internal/mcp/interfaces.go
package mcp

import (
	"context"
	"encoding/json"
)

// NoteStore is the note persistence the handlers depend on.
// *notes.Store satisfies it.
type NoteStore interface {
	AddNote(message string) (string, error)
	ReadNotes() (string, error)
	LatestNote() (string, error)
	SummaryPrompt() (string, error)
}

// NoteWatcher is implemented by stores that can report changes made outside the server.
type NoteWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// ProfileLookup resolves a profile ID to the JSON payload handed back to the agent.
// Failures are reported inside the payload, never as an error.
type ProfileLookup interface {
	GetProfile(ctx context.Context, profileID int) json.RawMessage
}
