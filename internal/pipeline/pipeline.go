// Package pipeline sequences a page render: the shell, then the content,
// then their composition. A content failure still yields a complete
// document carrying the client bundle, attached to the returned error.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/seedling/internal/compositor"
	"github.com/conneroisu/seedling/internal/datasource"
	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/metrics"
	"github.com/conneroisu/seedling/internal/page"
	"github.com/conneroisu/seedling/internal/renderer"
)

const tracerName = "github.com/conneroisu/seedling/internal/pipeline"

// DefaultBundleScript is the client bundle referenced by fallback pages.
const DefaultBundleScript = "index.js"

// Config configures a Pipeline.
type Config struct {
	Shell   page.Tree
	Content page.Tree

	// BundleScript is the client bundle the fallback document loads.
	BundleScript string

	// AnchorID overrides the hydration container id.
	AnchorID string

	Production bool

	// Parallel renders the shell and the content concurrently.
	Parallel bool

	// DataTimeout bounds each data source request.
	DataTimeout time.Duration

	Harvester *harvest.Harvester
	Logger    logging.Logger
	Metrics   *metrics.Recorder
}

// Pipeline renders pages. It is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	renderer   *renderer.ComponentRenderer
	compositor *compositor.Compositor
	logger     logging.Logger
	tracer     trace.Tracer
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.BundleScript == "" {
		cfg.BundleScript = DefaultBundleScript
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	logger := cfg.Logger.WithComponent("pipeline")

	return &Pipeline{
		cfg:        cfg,
		renderer:   renderer.NewComponentRenderer(cfg.Harvester, cfg.Logger),
		compositor: &compositor.Compositor{AnchorID: cfg.AnchorID, Production: cfg.Production},
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// Content returns the content tree, which the client boot replays.
func (p *Pipeline) Content() page.Tree {
	return p.cfg.Content
}

// Render renders the page for opts. Failures are returned as
// *errors.PageError whose HTML is a document to serve in place of an
// error page.
func (p *Pipeline) Render(ctx context.Context, opts page.Options) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Render", trace.WithAttributes(
		attribute.String("seedling.page_path", opts.RoutePagePath),
		attribute.String("seedling.language", opts.PreferredLanguage),
		attribute.Bool("seedling.parallel", p.cfg.Parallel),
	))
	defer span.End()

	data, err := p.dataSource(opts)
	if err != nil {
		return "", p.fallback(ctx, span, metrics.OutcomeShellFailure, err)
	}
	props := opts.Props(data)

	res := p.stages(ctx, props)
	if res.shellErr != nil {
		return "", p.fallback(ctx, span, metrics.OutcomeShellFailure, res.shellErr)
	}
	shell, content, contentErr := res.shell, res.content, res.contentErr

	var seeds harvest.Seeds
	if content != nil {
		seeds = content.Seeds
	}
	script, err := PackageOptions(opts, seeds)
	if err != nil {
		return "", p.fallback(ctx, span, metrics.OutcomeShellFailure, apperrors.Wrap(apperrors.KindContent, err))
	}

	start := time.Now()
	if contentErr != nil {
		html, err := p.compositor.ComposeError(shell, contentErr, script)
		p.cfg.Metrics.ObserveStage("compose", time.Since(start))
		if err != nil {
			return "", p.fallback(ctx, span, metrics.OutcomeShellFailure, err)
		}

		status := apperrors.StatusOf(contentErr)
		span.RecordError(contentErr)
		span.SetStatus(codes.Error, "content render failed")
		span.SetAttributes(attribute.Int("http.status_code", status))
		p.cfg.Metrics.ObserveRender(metrics.OutcomeContentFailure)
		p.logger.Warn(ctx, contentErr, "Content render failed, serving failure document",
			"path", opts.RoutePagePath,
			"status", status,
		)
		return "", &apperrors.PageError{Err: contentErr, HTML: html, Status: status}
	}

	html, err := p.compositor.Compose(shell, content.HTML, script)
	p.cfg.Metrics.ObserveStage("compose", time.Since(start))
	if err != nil {
		return "", p.fallback(ctx, span, metrics.OutcomeShellFailure, err)
	}

	span.SetAttributes(
		attribute.Int("seedling.passes", content.Passes),
		attribute.Int("seedling.seeds", len(content.Seeds)),
	)
	p.cfg.Metrics.ObserveRender(metrics.OutcomeOK)
	p.cfg.Metrics.ObserveHarvest(content.Passes, len(content.Seeds))
	p.logger.Debug(ctx, "Rendered page",
		"path", opts.RoutePagePath,
		"passes", content.Passes,
		"seeds", len(content.Seeds),
		"bytes", len(html),
	)
	return html, nil
}

type stageResult struct {
	shell      string
	content    *renderer.Content
	shellErr   error
	contentErr error
}

// stages renders the shell and then the content. A shell failure skips the
// content render; in parallel mode it cancels it.
func (p *Pipeline) stages(ctx context.Context, props page.Props) stageResult {
	var res stageResult

	renderShell := func(ctx context.Context) error {
		ctx, span := p.tracer.Start(ctx, "pipeline.shell")
		defer span.End()

		start := time.Now()
		html, err := p.renderer.RenderShell(ctx, p.cfg.Shell, props)
		p.cfg.Metrics.ObserveStage("shell", time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "shell render failed")
			return err
		}
		res.shell = html
		return nil
	}

	renderContent := func(ctx context.Context) {
		ctx, span := p.tracer.Start(ctx, "pipeline.content")
		defer span.End()

		start := time.Now()
		res.content, res.contentErr = p.renderer.RenderContent(ctx, p.cfg.Content, props)
		p.cfg.Metrics.ObserveStage("content", time.Since(start))
		if res.contentErr != nil {
			span.RecordError(res.contentErr)
			span.SetStatus(codes.Error, "content render failed")
		}
	}

	if !p.cfg.Parallel {
		if res.shellErr = renderShell(ctx); res.shellErr != nil {
			return res
		}
		renderContent(ctx)
		return res
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return renderShell(gctx) })
	g.Go(func() error {
		renderContent(gctx)
		return nil
	})
	res.shellErr = g.Wait()
	return res
}

func (p *Pipeline) dataSource(opts page.Options) (*datasource.Client, error) {
	if opts.DataSourceBaseURL == "" {
		return nil, nil
	}
	client, err := datasource.New(opts.DataSourceBaseURL, opts.DataSourceToken, p.cfg.DataTimeout)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindShell, err)
	}
	return client, nil
}

// fallback builds the failure for errors that leave no usable shell.
func (p *Pipeline) fallback(ctx context.Context, span trace.Span, outcome string, err error) error {
	status := apperrors.StatusOf(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Int("http.status_code", status))
	p.cfg.Metrics.ObserveRender(outcome)
	p.logger.Error(ctx, err, "Render failed, serving fallback document",
		"kind", string(apperrors.KindOf(err)),
		"status", status,
	)

	return &apperrors.PageError{
		Err:    err,
		HTML:   FallbackPage(apperrors.Message(err, p.cfg.Production), p.cfg.BundleScript),
		Status: status,
	}
}
