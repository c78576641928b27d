package compose

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/withobsrvr/quadctl/internal/utils/logger"
)

// debounceInterval collapses the burst of events editors emit on save.
const debounceInterval = 500 * time.Millisecond

// watchAndConvert runs convert once, then again every time the compose file
// changes, until interrupted.
//
// The containing directory is watched rather than the file itself: editors
// that replace the file on save would otherwise drop the watch.
func watchAndConvert(path string, convert func() error) error {
	if err := convert(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("Watching compose file", zap.String("file", path))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watch")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}

			logger.Debug("Compose file changed", zap.String("op", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				if err := convert(); err != nil {
					logger.Error("Conversion failed after file change", zap.Error(err))
				} else {
					logger.Info("Regenerated after file change", zap.String("file", path))
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("File watcher error", zap.Error(err))
		}
	}
}
