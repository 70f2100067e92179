package analyzecmder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay collapses the burst of events an editor produces while saving.
const settleDelay = 150 * time.Millisecond

// fileWatcher reports rewrites of a single file. The parent directory is
// watched so that files replaced by rename are still seen.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

func watchFile(ctx context.Context, path string, log *slog.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating image watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching image dir: %w", err)
	}

	fw := &fileWatcher{
		watcher: watcher,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go fw.loop(ctx, abs, log)

	return fw, nil
}

// Changes yields one value per settled rewrite of the file. Rewrites that
// happen while a value is pending are merged into it.
func (fw *fileWatcher) Changes() <-chan struct{} {
	return fw.changes
}

func (fw *fileWatcher) Close() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}

func (fw *fileWatcher) loop(ctx context.Context, path string, log *slog.Logger) {
	defer close(fw.done)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("image changed", "op", event.Op.String())
			settle = time.After(settleDelay)

		case <-settle:
			settle = nil
			select {
			case fw.changes <- struct{}{}:
			default:
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("image watcher error", "error", err)
		}
	}
}
