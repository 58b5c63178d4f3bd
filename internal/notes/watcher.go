package notes

// file: internal/notes/watcher.go

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the Create+Write bursts a single append produces.
const watchDebounce = 50 * time.Millisecond

// Watch calls onChange whenever the note file is created, written, removed or renamed,
// until ctx is done. The parent directory is watched rather than the file so that
// editors replacing the file do not silently end the watch.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	if onChange == nil {
		return errors.New("watch requires a change callback")
	}
	if err := s.EnsureFile(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create note file watcher")
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch note directory %s", dir)
	}
	target := filepath.Clean(s.path)
	s.logger.Info("Watching note file for changes.", "path", target)

	var (
		mu    sync.Mutex
		timer *time.Timer
		wg    sync.WaitGroup
	)
	fire := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil && timer.Stop() {
			// The pending callback will never run.
			wg.Done()
		}
		wg.Add(1)
		timer = time.AfterFunc(watchDebounce, func() {
			defer wg.Done()
			if ctx.Err() == nil {
				onChange()
			}
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil && timer.Stop() {
			wg.Done()
		}
		mu.Unlock()
		wg.Wait()
	}()

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Note watcher stopping.", "reason", ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&relevant == 0 {
				continue
			}
			s.logger.Debug("Note file changed.", "op", event.Op.String())
			fire()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Note watcher reported an error.", "error", werr)
		}
	}
}
