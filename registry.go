package lumen

import (
	"sync"

	"github.com/lumenlog/lumen/internal/config"
)

// registry is the process-wide set of named loggers. Guarding first access
// with the mutex keeps concurrent GetLogger calls from attaching duplicate
// sinks for the same name.
type registry struct {
	mu      sync.Mutex
	cfg     *config.Config
	loggers map[string]*Logger
}

var defaultRegistry = &registry{loggers: make(map[string]*Logger)}

// GetLogger returns the logger registered under name, creating and
// configuring it on first access. Later calls for the same name return the
// same instance; their opts are ignored. Environment configuration is read
// once per process and a malformed environment fails here.
func GetLogger(name string, opts *Options) (*Logger, error) {
	return defaultRegistry.get(name, opts)
}

func (r *registry) get(name string, opts *Options) (*Logger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[name]; ok {
		return l, nil
	}

	if r.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		r.cfg = cfg
	}

	l, err := newLogger(name, r.cfg, opts)
	if err != nil {
		return nil, err
	}
	r.loggers[name] = l
	return l, nil
}

// CloseAll closes every registered logger and empties the registry. Meant
// for process shutdown.
func CloseAll() error {
	return defaultRegistry.closeAll()
}

func (r *registry) closeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for name, l := range r.loggers {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.loggers, name)
	}
	r.cfg = nil
	return first
}
