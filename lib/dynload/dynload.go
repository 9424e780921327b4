// Package dynload finds backends by name. Built-in backends register
// themselves with Register; anything else is treated as the path of a Go
// shared object (built with -buildmode=plugin) exporting an Onload symbol.
package dynload

import (
	"errors"
	"fmt"
	goplugin "plugin"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/plugin"
	"github.com/snowmerak/ldplugin/lib/status"
)

// EntrySymbol is the symbol looked up in a shared object.
const EntrySymbol = "Onload"

var (
	// ErrUnknownBackend is returned for a name that is neither registered nor a shared object path.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrBadEntry is returned when the entry symbol has an unexpected type.
	ErrBadEntry = errors.New("entry symbol has unexpected type")
)

var (
	builtinLock sync.RWMutex
	builtins    = make(map[string]plugin.Backend)
)

// Register makes backend available under name. Registering a name twice panics.
func Register(name string, backend plugin.Backend) {
	builtinLock.Lock()
	defer builtinLock.Unlock()

	if _, exists := builtins[name]; exists {
		panic(fmt.Sprintf("backend %s already registered", name))
	}
	builtins[name] = backend
}

// Registered returns the names of the built-in backends, sorted.
func Registered() []string {
	builtinLock.RLock()
	defer builtinLock.RUnlock()

	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the backend for name: a registered one, or the entry point
// of the shared object at name when it ends in ".so".
func Find(name string, logger *zap.Logger) (plugin.Backend, error) {
	builtinLock.RLock()
	b, ok := builtins[name]
	builtinLock.RUnlock()
	if ok {
		return b, nil
	}
	if strings.HasSuffix(name, ".so") {
		return Open(name, logger)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
}

// Open loads the shared object at path and returns its entry point. The
// object must export either
//
//	func Onload(capability.Vector) status.Status
//
// or a variable Onload of type plugin.Backend.
func Open(path string, logger *zap.Logger) (plugin.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backend %s: %w", path, err)
	}
	sym, err := p.Lookup(EntrySymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s in %s: %w", EntrySymbol, path, err)
	}

	b, err := entryPoint(sym)
	if err != nil {
		return nil, fmt.Errorf("%s in %s: %w", EntrySymbol, path, err)
	}
	logger.Debug("backend opened", zap.String("path", path), zap.String("entry", fmt.Sprintf("%T", sym)))
	return b, nil
}

// entryPoint converts a looked-up symbol into a Backend. Functions are
// returned as values and variables as pointers.
func entryPoint(sym any) (plugin.Backend, error) {
	switch v := sym.(type) {
	case func(capability.Vector) status.Status:
		return plugin.OnloadFunc(v), nil
	case *plugin.Backend:
		if v == nil || *v == nil {
			return nil, fmt.Errorf("%w: nil backend", ErrBadEntry)
		}
		return *v, nil
	case plugin.Backend:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrBadEntry, sym)
}
