package provider

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"flowrun/internal/model"
)

// ContextLoader resolves context://<dir>/<sub> locations against an
// in-process registry of built-in context functions (spec §6 "resolved
// against a coordinator-provided context root"; SPEC_FULL.md §4.12's
// contextlib package registers its functions here by "dir/sub" key).
type ContextLoader struct {
	log zerolog.Logger

	mu  sync.RWMutex
	reg map[string]model.Implementation
}

// NewContextLoader builds an empty ContextLoader; callers register
// built-ins via Register before resolving any manifest.
func NewContextLoader(log zerolog.Logger) *ContextLoader {
	return &ContextLoader{
		log: log.With().Str("component", "context_loader").Logger(),
		reg: make(map[string]model.Implementation),
	}
}

// Register adds a built-in under "dir/sub" (e.g. "stdio/stdout").
func (c *ContextLoader) Register(dirSub string, impl model.Implementation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reg[dirSub] = impl
}

// Resolve looks up location (a full "context://dir/sub" string).
func (c *ContextLoader) Resolve(location string) (model.Implementation, error) {
	const prefix = "context://"
	if !strings.HasPrefix(location, prefix) {
		return nil, errors.Errorf("not a context:// location: %q", location)
	}
	key := strings.TrimPrefix(location, prefix)

	c.mu.RLock()
	impl, ok := c.reg[key]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no context function registered for %q", key)
	}
	return impl, nil
}
