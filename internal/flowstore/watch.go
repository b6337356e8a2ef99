package flowstore

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces rapid Write+Chmod events fsnotify can fire for a
// single save, mirroring the teacher's FileWatcher debounce timers.
const debounceWindow = 250 * time.Millisecond

// Watch starts an fsnotify watcher on the store's script directory and
// triggers an immediate Reload of whichever logical document's file
// changed, instead of waiting for the next LoadAll poll tick (the poll loop
// lives in engine.WatchConfig). It runs until ctx is canceled. Both this
// path and LoadAll converge on reparse, so the atomic-publish invariant
// holds regardless of which trigger fired first.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.scriptDir); err != nil {
		w.Close()
		return err
	}

	pathToName := make(map[string]string, len(s.entries))
	for name, e := range s.entries {
		abs, err := filepath.Abs(e.path)
		if err != nil {
			abs = e.path
		}
		pathToName[abs] = name
	}

	go s.watchLoop(ctx, w, pathToName)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, pathToName map[string]string) {
	defer w.Close()

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	trigger := func(name string) {
		if err := s.Reload(name); err != nil {
			s.log.Error().Err(err).Str("doc", name).Msg("hot reload failed, keeping previous configuration")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				abs = ev.Name
			}
			name, known := pathToName[abs]
			if !known {
				continue
			}

			mu.Lock()
			if t, exists := timers[name]; exists {
				t.Stop()
			}
			timers[name] = time.AfterFunc(debounceWindow, func() { trigger(name) })
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("flowstore watcher error")
		}
	}
}
