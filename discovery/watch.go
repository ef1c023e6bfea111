package discovery

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"testbed/logging"
)

// Watcher drops a resolver's cache whenever a manifest directory changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	resolver *Resolver
	onChange func(path string)
	done     chan struct{}
	stopOnce sync.Once
}

// Watch starts watching the backend's directories on behalf of resolver.
// Directories that do not exist are skipped. onChange may be nil.
func (b *ManifestBackend) Watch(resolver *Resolver, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, dir := range b.dirs {
		if err := fw.Add(dir); err != nil {
			logging.Logger.Debug("Cannot watch manifest directory", "dir", dir, "error", err)
		}
	}

	w := &Watcher{
		watcher:  fw,
		resolver: resolver,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isManifest(event.Name) {
				continue
			}

			logging.Logger.Debug("Manifest changed", "path", event.Name, "op", event.Op.String())
			w.resolver.Invalidate()
			if w.onChange != nil {
				w.onChange(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Logger.Warn("Manifest watcher error", "error", err)
		}
	}
}
