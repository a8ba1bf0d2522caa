package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads the sessions YAML file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *File
	validate func(*File) error
	onChange []func(*File)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// File returns the current (latest) configuration.
func (l *Loader) File() *File {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*File)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// SetValidator installs a gate run on every subsequent load. A file that
// fails the gate never replaces the live configuration: Reload returns the
// error and the watcher keeps serving the previous config.
func (l *Loader) SetValidator(fn func(*File) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.validate = fn
}

// Watch starts a background goroutine that hot-reloads the config on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("session watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("session watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Keep serving the old config.
						continue
					}
					l.swap(cfg)
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*File, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.swap(cfg)
	return cfg, nil
}

func (l *Loader) swap(cfg *File) {
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*File), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func (l *Loader) load() (*File, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read sessions %s: %w", l.path, err)
	}
	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse sessions %s: %w", l.path, err)
	}
	applyDefaults(&cfg)

	l.mu.RLock()
	validate := l.validate
	l.mu.RUnlock()
	if validate != nil {
		if err := validate(&cfg); err != nil {
			return nil, fmt.Errorf("sessions %s: %w", l.path, err)
		}
	}
	return &cfg, nil
}

func applyDefaults(cfg *File) {
	for i := range cfg.Sessions {
		s := &cfg.Sessions[i]
		if s.StartYear == 0 {
			s.StartYear = 180
		}
		if s.DaysPerMonth == 0 {
			s.DaysPerMonth = 30
		}
		if s.GameSpeed == 0 {
			s.GameSpeed = 1.0
		}
	}
}
