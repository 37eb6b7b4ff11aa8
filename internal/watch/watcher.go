// Package watch reloads the config file when it changes on disk, so API
// keys and the model id can be swapped without restarting the dashboard.
package watch

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"jubo/internal/config"
	appLog "jubo/internal/log"
)

// Watcher monitors the config file and invokes onChange with each freshly
// loaded config.
type Watcher struct {
	path     string
	onChange func(*config.Config)
}

func New(path string, onChange func(*config.Config)) *Watcher {
	return &Watcher{path: path, onChange: onChange}
}

// Start begins watching until ctx is canceled. The parent directory is
// watched rather than the file itself, because editors and config.Save
// both replace the file via rename.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-fw.Events:
				if filepath.Clean(evt.Name) != filepath.Clean(w.path) {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := config.Load(w.path)
				if err != nil {
					appLog.Error("config reload failed; keeping previous config", err, "path", w.path)
					continue
				}
				appLog.Info("config reloaded", "path", w.path, "api_keys", len(cfg.Gemini.APIKeys), "model", cfg.Gemini.Model)
				w.onChange(cfg)
			case err := <-fw.Errors:
				appLog.Error("config watcher error", err)
			}
		}
	}()

	return fw.Add(filepath.Dir(w.path))
}
