// Package services holds the render business logic shared by the HTTP
// server and the CLI: choosing a module loader from configuration, building
// pipelines for loaded modules and invalidating them when files change.
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/seedling/internal/client"
	"github.com/conneroisu/seedling/internal/components"
	"github.com/conneroisu/seedling/internal/config"
	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/loader"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/metrics"
	"github.com/conneroisu/seedling/internal/page"
	"github.com/conneroisu/seedling/internal/pipeline"
	"github.com/conneroisu/seedling/internal/watcher"
)

// Doctype is prepended to every successfully rendered page.
const Doctype = "<!DOCTYPE html>\n"

// RenderService renders pages for the configured module.
type RenderService struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Recorder
	loader  loader.Loader
	cache   *loader.Cache

	mu      sync.RWMutex
	watcher *watcher.FileWatcher
}

// NewRenderService creates a render service. In template mode the module
// file is compiled on every request, or once per change while a watcher
// runs. In static mode the built-in module is registered under the
// module's file name and cached.
func NewRenderService(cfg *config.Config, logger logging.Logger, rec *metrics.Recorder) (*RenderService, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &RenderService{
		config:  cfg,
		logger:  logger.WithComponent("render"),
		metrics: rec,
	}

	if cfg.Render.Mode == config.ModeStatic {
		m, err := s.DefaultModule()
		if err != nil {
			return nil, fmt.Errorf("building default module: %w", err)
		}
		static := loader.NewStaticLoader()
		static.Register(cfg.Render.Module, m)
		s.loader = static
	} else {
		s.loader = loader.NewTemplateLoader(s.Build, components.Shell(s.metadata()))
	}
	s.cache = loader.NewCache(s.loader)
	return s, nil
}

// Build turns module exports into a pipeline configured from s's settings.
func (s *RenderService) Build(exports loader.Exports) (loader.Module, error) {
	if exports.Content == nil {
		return nil, apperrors.New(apperrors.KindModule, 0, "module has no content tree")
	}
	shell := exports.Shell
	if shell == nil {
		shell = components.Shell(s.metadata())
	}

	cfg := s.config
	return pipeline.New(pipeline.Config{
		Shell:        shell,
		Content:      exports.Content,
		BundleScript: cfg.Render.BundleScript,
		Production:   cfg.Production(),
		Parallel:     cfg.Render.Parallel,
		DataTimeout:  cfg.DataSource.Timeout,
		Harvester:    s.harvester(),
		Logger:       s.logger,
		Metrics:      s.metrics,
	}), nil
}

// DefaultModule is the built-in page: the default shell and front end.
func (s *RenderService) DefaultModule() (loader.Module, error) {
	return s.Build(loader.Exports{
		Shell:   components.Shell(s.metadata()),
		Content: components.FrontEnd,
	})
}

func (s *RenderService) metadata() components.Metadata {
	return components.Metadata{
		Title:      s.config.Render.Title,
		Stylesheet: s.config.Render.Stylesheet,
		Script:     s.config.Render.BundleScript,
	}
}

func (s *RenderService) harvester() *harvest.Harvester {
	return &harvest.Harvester{
		MaxPasses:   s.config.Render.MaxPasses,
		Concurrency: s.config.Render.Concurrency,
	}
}

// Options builds the render request for one page.
func (s *RenderService) Options(pagePath, language string) page.Options {
	if pagePath == "" {
		pagePath = "/"
	}
	return page.Options{
		DataSourceBaseURL: s.config.DataSource.BaseURL,
		DataSourceToken:   s.config.DataSource.Token,
		RouteBasePath:     s.config.Render.RouteBasePath,
		RoutePagePath:     pagePath,
		SSRTarget:         s.config.Render.SSRTarget,
		PreferredLanguage: language,
	}
}

// Module returns the configured module. Template modules are recompiled on
// every call unless a watcher is running to invalidate the cache.
func (s *RenderService) Module() (loader.Module, error) {
	var (
		m   loader.Module
		err error
	)
	if s.config.Render.Mode == config.ModeStatic {
		abs, absErr := filepath.Abs(s.config.Render.Module)
		if absErr != nil {
			return nil, apperrors.Wrap(apperrors.KindModule, absErr)
		}
		m, err = s.cache.Load(loader.Source{Dirname: filepath.Dir(abs), Filename: filepath.Base(abs)})
	} else if s.watching() {
		m, err = s.cache.LoadFile(s.config.Render.Module)
	} else {
		m, err = loader.LoadFile(s.loader, s.config.Render.Module)
	}
	if err != nil {
		s.metrics.ObserveRender(metrics.OutcomeModuleFailure)
		return nil, apperrors.Wrap(apperrors.KindModule, fmt.Errorf("loading module %s: %w", s.config.Render.Module, err))
	}
	return m, nil
}

// Render renders pagePath. Successful pages start with a doctype; failures
// are returned unchanged so callers can serve their attached document.
func (s *RenderService) Render(ctx context.Context, pagePath, language string) (string, error) {
	m, err := s.Module()
	if err != nil {
		s.logger.Error(ctx, err, "module load failed", "module", s.config.Render.Module)
		return "", err
	}

	html, err := m.Render(ctx, s.Options(pagePath, language))
	if err != nil {
		return "", err
	}
	return Doctype + html, nil
}

// Booter returns a client booter replaying the configured module's content.
func (s *RenderService) Booter() (*client.Booter, error) {
	m, err := s.Module()
	if err != nil {
		return nil, err
	}
	withContent, ok := m.(interface{ Content() page.Tree })
	if !ok {
		return nil, apperrors.New(apperrors.KindModule, 0, "module %s cannot be booted", s.config.Render.Module)
	}
	return &client.Booter{
		Content:   withContent.Content(),
		Harvester: s.harvester(),
		Token:     s.config.DataSource.Token,
	}, nil
}

// Watch drops cached modules whenever a file next to the module changes.
// It is a no-op unless development watching is enabled in template mode.
func (s *RenderService) Watch(ctx context.Context) error {
	if !s.config.Development.Watch || s.config.Render.Mode != config.ModeTemplate {
		return nil
	}

	fw, err := watcher.NewFileWatcher(s.config.Development.Debounce, s.logger)
	if err != nil {
		return fmt.Errorf("creating module watcher: %w", err)
	}
	exts := []string{".html"}
	if ext := strings.ToLower(filepath.Ext(s.config.Render.Module)); ext != "" && ext != ".html" {
		exts = append(exts, ext)
	}
	fw.AddFilter(watcher.ExtFilter(exts...))
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		s.Reload()
		s.logger.Info(ctx, "module sources changed", "files", len(events), "first", events[0].Path)
		return nil
	})

	dir := filepath.Dir(s.config.Render.Module)
	if err := fw.AddRecursive(dir); err != nil {
		_ = fw.Stop()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}
	s.mu.Lock()
	s.watcher = fw
	s.mu.Unlock()
	s.cache.Reset()
	s.logger.Info(ctx, "watching module sources", "dir", dir)
	return nil
}

// Reload drops every cached module.
func (s *RenderService) Reload() {
	s.cache.Reset()
	s.metrics.ModuleReloaded()
}

func (s *RenderService) watching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watcher != nil
}

// Close stops the watcher, if any.
func (s *RenderService) Close() error {
	s.mu.Lock()
	fw := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if fw == nil {
		return nil
	}
	return fw.Stop()
}
