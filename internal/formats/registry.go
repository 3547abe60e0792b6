package formats

import (
	"sort"
	"sync"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// Factory creates a handler for a format key.
type Factory func(format string) Handler

// Registry owns one handler instance per format key, and with it the
// handler's shortening sequence. Concurrent generations use separate
// registries.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	handlers  map[string]Handler
}

// NewRegistry creates a registry with the built-in formats.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		handlers:  make(map[string]Handler),
	}
	r.Register("", func(f string) Handler { return &defaultHandler{format: f} })
	r.Register(domain.FormatPostgreSQL, func(f string) Handler {
		return &postgresHandler{defaultHandler{format: f}}
	})
	r.Register(domain.FormatSQLite, func(f string) Handler {
		return &spatialiteHandler{defaultHandler{format: f}}
	})
	r.Register(domain.FormatInterlis1, func(f string) Handler {
		return &interlisHandler{defaultHandler{format: f}}
	})
	r.Register(domain.FormatInterlis2, func(f string) Handler {
		return &interlisHandler{defaultHandler{format: f}}
	})
	r.Register(domain.FormatGeoJSON, func(f string) Handler {
		return &geojsonHandler{defaultHandler{format: f}}
	})
	return r
}

// Register adds or replaces the factory for a format key. An existing
// handler instance for the key is dropped.
func (r *Registry) Register(format string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[format] = factory
	delete(r.handlers, format)
}

// Get returns the handler for format, falling back to the default handler
// for unknown formats. The fallback handler reports the requested format.
func (r *Registry) Get(format string) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[format]; ok {
		return h
	}
	factory, ok := r.factories[format]
	if !ok {
		factory = r.factories[""]
	}
	h := factory(format)
	r.handlers[format] = h
	return h
}

// ResetSequence resets the sequence of every handler created so far.
func (r *Registry) ResetSequence() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.handlers {
		h.ResetSequence()
	}
}

// Formats returns the registered format keys, excluding the default.
func (r *Registry) Formats() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	formats := make([]string, 0, len(r.factories))
	for f := range r.factories {
		if f != "" {
			formats = append(formats, f)
		}
	}
	sort.Strings(formats)
	return formats
}
