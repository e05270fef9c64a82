// Package autosync triggers a sync cycle when another process writes the
// replica database. It watches the database directory and reacts to changes
// of the database file and its sqlite sidecar files.
package autosync

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrijs2005/kopeck/internal/logging"
)

// Watcher debounces filesystem events on the replica database and invokes
// the trigger once the writes settle.
type Watcher struct {
	dbPath   string
	debounce time.Duration
	trigger  func()
	log      logging.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher builds a watcher for the database at dbPath. The trigger runs
// after writes have been quiet for the debounce interval.
func NewWatcher(dbPath string, debounce time.Duration, trigger func(), log logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dbPath:   dbPath,
		debounce: debounce,
		trigger:  trigger,
		log:      log,
	}
}

// Start begins watching the database directory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(w.dbPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	w.running = true

	w.wg.Add(1)
	go w.loop(ctx)

	w.log.Info(ctx, "replica watcher started", "dir", dir)
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit. A timer
// already armed is cancelled, so no trigger fires after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	w.watcher.Close()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.bump()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "replica watcher error", "error", err)
		}
	}
}

// relevant keeps events for the database file and its -wal/-journal
// siblings, which is where sqlite actually lands the writes.
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	dbBase := filepath.Base(w.dbPath)
	return base == dbBase || base == dbBase+"-wal" || base == dbBase+"-journal"
}

// bump resets the debounce timer so bursts of writes cause one trigger.
func (w *Watcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		w.trigger()
	}
}
