// Package notes implements the sticky note store: an append-only, newline-delimited
// text file holding one note per line.
//
// The store does no locking. Concurrent appends from several processes (or goroutines)
// may interleave at the operating system's write granularity; each note is written with a
// single write call, which keeps small notes intact on local filesystems but is not
// guaranteed. An interrupted append can leave a truncated last line, which reads return
// verbatim.
package notes

// file: internal/notes/store.go

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
)

const (
	// SavedMessage is returned by AddNote.
	SavedMessage = "Note saved!"
	// EmptyPlaceholder is returned by ReadNotes and LatestNote when there is nothing to show.
	EmptyPlaceholder = "No notes yet."
	// EmptySummaryPrompt is returned by SummaryPrompt for an empty store.
	EmptySummaryPrompt = "There are no notes yet."
	// SummaryPromptPrefix precedes the note content in SummaryPrompt.
	SummaryPromptPrefix = "Summarize the current notes: "
)

// Store owns a single note file.
type Store struct {
	path   string
	logger logging.Logger
}

// NewStore returns a store backed by the file at path. The file is not touched until
// the first operation.
func NewStore(path string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Store{
		path:   path,
		logger: logger.WithField("component", "note_store"),
	}
}

// Path returns the note file location.
func (s *Store) Path() string {
	return s.path
}

// EnsureFile creates the note file, empty, if it does not exist yet.
// Existing content is never truncated, so calling it repeatedly is safe.
func (s *Store) EnsureFile() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create note directory %s", dir)
		}
	}
	// O_APPEND without O_TRUNC leaves existing notes alone.
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to create note file %s", s.path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close note file %s", s.path)
	}
	return nil
}

// AddNote appends message followed by a newline and returns SavedMessage.
// Newlines inside message are written as-is and read back as separate lines.
func (s *Store) AddNote(message string) (string, error) {
	if err := s.EnsureFile(); err != nil {
		return "", err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open note file %s for append", s.path)
	}

	// One write per note.
	_, writeErr := f.WriteString(message + "\n")
	closeErr := f.Close()
	if writeErr != nil {
		return "", errors.Wrapf(writeErr, "failed to append note to %s", s.path)
	}
	if closeErr != nil {
		return "", errors.Wrapf(closeErr, "failed to close note file %s", s.path)
	}

	s.logger.Debug("Note appended.", "path", s.path, "length", len(message))
	return SavedMessage, nil
}

// ReadNotes returns every note, trailing whitespace trimmed, or EmptyPlaceholder.
func (s *Store) ReadNotes() (string, error) {
	content, err := s.readTrimmed()
	if err != nil {
		return "", err
	}
	if content == "" {
		return EmptyPlaceholder, nil
	}
	return content, nil
}

// LatestNote returns the last line of the file with trailing whitespace trimmed,
// or EmptyPlaceholder when the file has no lines. Order is append order only.
func (s *Store) LatestNote() (string, error) {
	raw, err := s.readRaw()
	if err != nil {
		return "", err
	}
	if raw == "" {
		return EmptyPlaceholder, nil
	}
	// The terminating newline closes the last line rather than opening a new one.
	raw = strings.TrimSuffix(raw, "\n")
	last := raw
	if i := strings.LastIndexByte(raw, '\n'); i >= 0 {
		last = raw[i+1:]
	}
	return trimTrailing(last), nil
}

// SummaryPrompt returns the text of the note summary prompt.
func (s *Store) SummaryPrompt() (string, error) {
	content, err := s.readTrimmed()
	if err != nil {
		return "", err
	}
	if content == "" {
		return EmptySummaryPrompt, nil
	}
	return SummaryPromptPrefix + content, nil
}

func (s *Store) readTrimmed() (string, error) {
	raw, err := s.readRaw()
	if err != nil {
		return "", err
	}
	return trimTrailing(raw), nil
}

func (s *Store) readRaw() (string, error) {
	if err := s.EnsureFile(); err != nil {
		return "", err
	}
	// #nosec G304 -- path comes from configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read note file %s", s.path)
	}
	return string(data), nil
}

func trimTrailing(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
