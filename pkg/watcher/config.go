package watcher

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// DefaultConfigDebounceWindow coalesces the burst of events produced by a single editor save.
const DefaultConfigDebounceWindow = 500 * time.Millisecond

// Config watches the main configuration file and the drop-in directory and
// calls onChange, debounced, whenever one of them changes.
// The parent directories are watched so that files replaced by rename are still noticed.
type Config struct {
	configFile     string
	dropInDir      string
	debounceWindow time.Duration

	mu            sync.Mutex
	watcher       *fsnotify.Watcher
	debounceTimer *time.Timer
	stoppedCh     chan struct{}
}

var _ Watcher = (*Config)(nil)

// NewConfig returns a watcher for configFile and dropInDir, either may be empty.
func NewConfig(configFile, dropInDir string) *Config {
	debounceWindow := DefaultConfigDebounceWindow
	if env := os.Getenv("CONFIG_DEBOUNCE_WINDOW_MS"); env != "" {
		if ms, err := strconv.Atoi(env); err == nil && ms > 0 {
			debounceWindow = time.Duration(ms) * time.Millisecond
		}
	}
	w := &Config{debounceWindow: debounceWindow}
	if configFile != "" {
		w.configFile, _ = filepath.Abs(configFile)
	}
	if dropInDir != "" {
		w.dropInDir, _ = filepath.Abs(dropInDir)
	}
	return w
}

// Watch starts watching, replacing any previous watch. Nothing is watched when neither path is set.
func (w *Config) Watch(onChange func() error) {
	w.Close()
	dirs := make([]string, 0, 2)
	if w.configFile != "" {
		dirs = append(dirs, filepath.Dir(w.configFile))
	}
	if w.dropInDir != "" {
		dirs = append(dirs, w.dropInDir)
	}
	if len(dirs) == 0 {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		klog.Warningf("Failed to create configuration watcher: %v", err)
		return
	}
	for _, dir := range dirs {
		if err = watcher.Add(dir); err != nil {
			klog.V(1).Infof("Failed to watch %s: %v", dir, err)
		}
	}
	stoppedCh := make(chan struct{})
	w.mu.Lock()
	w.watcher = watcher
	w.stoppedCh = stoppedCh
	w.mu.Unlock()

	go func() {
		defer close(stoppedCh)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if w.relevant(event.Name) {
					klog.V(2).Infof("Configuration change detected: %s", event)
					w.schedule(onChange)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				klog.V(1).Infof("Configuration watcher error: %v", err)
			}
		}
	}()
}

func (w *Config) relevant(name string) bool {
	if name == w.configFile {
		return true
	}
	return w.dropInDir != "" && filepath.Dir(name) == w.dropInDir && strings.HasSuffix(name, ".toml")
}

func (w *Config) schedule(onChange func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceWindow, func() {
		if err := onChange(); err != nil {
			klog.Errorf("Failed to apply configuration change: %v", err)
		}
	})
}

func (w *Config) Close() {
	w.mu.Lock()
	watcher, stoppedCh := w.watcher, w.stoppedCh
	w.watcher, w.stoppedCh = nil, nil
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()
	if watcher != nil {
		_ = watcher.Close()
		<-stoppedCh
	}
}
