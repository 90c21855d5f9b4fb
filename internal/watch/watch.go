// Package watch triggers pipeline runs when new artifacts land in the
// intake directory. Recording devices sync files in bursts, so events are
// debounced and runs are serialized: one run at a time, with trailing
// activity coalesced into the next run.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher drives a run function from intake filesystem activity.
type Watcher struct {
	dir      string
	debounce time.Duration
	run      func(context.Context)
	log      *logrus.Entry
}

// New builds a Watcher over dir. run is invoked once at startup for any
// backlog, then after each debounced burst of activity.
func New(dir string, debounce time.Duration, run func(context.Context), log *logrus.Entry) *Watcher {
	return &Watcher{dir: dir, debounce: debounce, run: run, log: log}
}

// Run blocks until ctx is cancelled, invoking the run function as intake
// activity settles.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	// Process any backlog before waiting for events.
	w.run(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.log.WithField("intake_dir", w.dir).Info("watching intake directory")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.WithField("file", filepath.Base(event.Name)).Debug("intake activity")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.run(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithField("error", err.Error()).Warn("watcher error")
		}
	}
}

// relevant filters events down to artifact arrivals. Activity inside the
// processed subdirectory is the pipeline's own relocation and must not
// retrigger a run.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "processed"+string(filepath.Separator)) && rel != "processed"
}
