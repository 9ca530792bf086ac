package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "gatebot/pkg/logx"
)

// Watch re-parses the config whenever the file changes and calls onChange
// with each successfully validated result. Invalid edits are logged and the
// previous config stays committed.
//
// Watching the directory (not the file) survives editors that replace the
// file via rename.
func (m *Manager) Watch(ctx context.Context, log logx.Logger, onChange func(*Config)) error {
	if log.IsZero() {
		log = logx.Nop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	// Debounce: editors commonly emit several write events per save.
	const settle = 250 * time.Millisecond
	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(settle)
				pendingC = pending.C
			} else {
				pending.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logx.Err(err))
		case <-pendingC:
			pending = nil
			pendingC = nil
			cfg, err := m.Load()
			if err != nil {
				log.Warn("config reload rejected", logx.Err(err))
				continue
			}
			log.Info("config reloaded")
			if onChange != nil {
				onChange(cfg)
			}
		}
	}
}
