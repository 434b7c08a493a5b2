// Package watcher monitors the configuration file and hot-reloads it when
// it changes on disk.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/envlink/envlink/internal/config"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher watches the config file for modifications.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher
	lastConfigHash string
}

// NewWatcher creates a new file watcher instance.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}, nil
}

// Start begins watching the configuration file until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory rather than the file so editors that replace the
	// file (write temp, rename) do not drop the watch.
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		log.Errorf("failed to watch config directory: %v", err)
		return err
	}
	w.lastConfigHash = w.hashFile(w.configPath)
	log.Debugf("watching config file: %s", w.configPath)

	go w.loop(ctx)
	return nil
}

// Stop tears the underlying fsnotify watcher down.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	// Debounce rapid write bursts from editors.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.EqualFold(filepath.Clean(event.Name), filepath.Clean(w.configPath)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	hash := w.hashFile(w.configPath)
	if hash == "" || hash == w.lastConfigHash {
		return
	}
	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return
	}
	w.lastConfigHash = hash
	log.Infof("config file changed, reloading")
	if w.reloadCallback != nil {
		w.reloadCallback(cfg)
	}
}

func (w *Watcher) hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
