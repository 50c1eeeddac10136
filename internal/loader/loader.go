// Package loader turns page-rendering module sources into runnable modules.
//
// In development a TemplateLoader compiles module source text on demand, so
// an edit is picked up by the next request without a build step. In
// production a StaticLoader hands out modules compiled into the binary.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/conneroisu/seedling/internal/page"
)

// ErrModuleNotFound is returned when no module is registered for a source.
var ErrModuleNotFound = errors.New("module not found")

// Source is the raw text of a module together with its identity.
type Source struct {
	Code     string
	Dirname  string
	Filename string
}

// Path returns the module's file path.
func (s Source) Path() string {
	return filepath.Join(s.Dirname, s.Filename)
}

// ReadSource reads the module at path.
func ReadSource(path string) (Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, fmt.Errorf("resolving module path: %w", err)
	}
	code, err := os.ReadFile(abs)
	if err != nil {
		return Source{}, fmt.Errorf("reading module: %w", err)
	}
	return Source{
		Code:     string(code),
		Dirname:  filepath.Dir(abs),
		Filename: filepath.Base(abs),
	}, nil
}

// Module is a loaded page-rendering module.
type Module interface {
	Render(ctx context.Context, opts page.Options) (string, error)
}

// Loader produces a Module from source.
type Loader interface {
	Load(src Source) (Module, error)
}

// Exports are the component trees a module defines.
type Exports struct {
	Shell   page.Tree
	Content page.Tree
}

// Builder assembles a runnable module from a module's exports.
type Builder func(Exports) (Module, error)

// StaticLoader serves precompiled modules registered by file name.
type StaticLoader struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewStaticLoader creates an empty StaticLoader.
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{modules: make(map[string]Module)}
}

// Register makes m the module for filename.
func (l *StaticLoader) Register(filename string, m Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[filepath.Base(filename)] = m
}

// Load returns the module registered for src's file name. The source text
// is ignored.
func (l *StaticLoader) Load(src Source) (Module, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[src.Filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, src.Filename)
	}
	return m, nil
}

// Cache memoizes modules by path until Reset.
type Cache struct {
	loader  Loader
	mu      sync.Mutex
	modules map[string]Module
}

// NewCache wraps l.
func NewCache(l Loader) *Cache {
	return &Cache{loader: l, modules: make(map[string]Module)}
}

// Load returns the cached module for src's path, loading it on a miss.
func (c *Cache) Load(src Source) (Module, error) {
	key := src.Path()

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.modules[key]; ok {
		return m, nil
	}
	m, err := c.loader.Load(src)
	if err != nil {
		return nil, err
	}
	c.modules[key] = m
	return m, nil
}

// LoadFile returns the module at path, reading it only on a miss.
func (c *Cache) LoadFile(path string) (Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving module path: %w", err)
	}

	c.mu.Lock()
	m, ok := c.modules[abs]
	c.mu.Unlock()
	if ok {
		return m, nil
	}

	src, err := ReadSource(abs)
	if err != nil {
		return nil, err
	}
	return c.Load(src)
}

// Reset drops every cached module.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = make(map[string]Module)
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}

// LoadFile reads the module at path and loads it with l.
func LoadFile(l Loader, path string) (Module, error) {
	src, err := ReadSource(path)
	if err != nil {
		return nil, err
	}
	return l.Load(src)
}
