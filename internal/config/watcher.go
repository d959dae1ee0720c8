package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Watcher keeps the current Config and notifies subscribers when the
// config file changes on disk. Without a config file it never fires.
type Watcher struct {
	v *viper.Viper

	mu       sync.RWMutex
	current  Config
	handlers []func(Config)
}

// NewWatcher fails when BOOKKEEPING_CONFIG names a file that cannot be
// read, so fx startup aborts instead of running on defaults.
func NewWatcher() (*Watcher, error) {
	_ = godotenv.Load()
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	w := &Watcher{v: v, current: fromViper(v)}

	if w.current.ConfigFile != "" {
		v.OnConfigChange(w.onChange)
		v.WatchConfig()
	}
	return w, nil
}

func (w *Watcher) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to run with the reloaded Config.
func (w *Watcher) OnChange(fn func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, fn)
}

func (w *Watcher) onChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	next := fromViper(w.v)

	w.mu.Lock()
	w.current = next
	handlers := append([]func(Config){}, w.handlers...)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn(next)
	}
}
