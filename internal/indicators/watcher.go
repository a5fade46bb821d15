package indicators

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watch reloads the registry when its file changes. The parent directory is
// watched so editors that replace the file via rename are picked up. Watch
// blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	target := filepath.Clean(r.path)
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return err
	}
	r.logger.Info("indicators.watching", "path", target, "debounce", debounce)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("indicators.watch_error", "error", err)

		case <-timerCh:
			timerCh = nil
			_ = r.Reload()
		}
	}
}
