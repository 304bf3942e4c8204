package loop

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchDir watches dir for new checkpoint index artifacts and signals on the
// returned channel so a waiting loop re-lists immediately instead of at the
// next poll tick. The watcher is best-effort: the loop's fixed-interval poll
// still catches anything the watcher misses. The returned stop function
// releases the watcher.
func WatchDir(ctx context.Context, dir string) (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, err
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".index") {
					continue
				}
				select {
				case notify <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watch errors are non-fatal; polling still runs.
			}
		}
	}()
	return notify, func() { watcher.Close() }, nil
}
