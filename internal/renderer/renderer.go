// Package renderer turns component trees into markup for the pipeline.
//
// The shell renderer produces the data-independent document skeleton; the
// content renderer produces the page body together with the harvested seeds
// the client needs to reproduce it. Both drive their tree to completion with
// the harvester, so placeholder passes never leave this package.
package renderer

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/page"
)

// Content is the settled body markup of a page.
type Content struct {
	HTML   string
	Seeds  harvest.Seeds
	Passes int
}

// ComponentRenderer renders shell and content trees.
type ComponentRenderer struct {
	harvester *harvest.Harvester
	logger    logging.Logger
}

// NewComponentRenderer creates a new component renderer.
func NewComponentRenderer(harvester *harvest.Harvester, logger logging.Logger) *ComponentRenderer {
	if harvester == nil {
		harvester = harvest.New()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ComponentRenderer{
		harvester: harvester,
		logger:    logger.WithComponent("renderer"),
	}
}

// RenderShell renders the document shell as static markup.
func (r *ComponentRenderer) RenderShell(ctx context.Context, tree page.Tree, props page.Props) (string, error) {
	if tree == nil {
		return "", apperrors.New(apperrors.KindShell, 0, "no shell component configured")
	}

	start := time.Now()
	res, err := r.harvester.Run(ctx, tree(props))
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindShell, err)
	}
	if strings.TrimSpace(res.HTML) == "" {
		return "", apperrors.New(apperrors.KindShell, 0, "shell rendered no markup after %d passes", res.Passes)
	}

	r.logger.Debug(ctx, "Rendered shell",
		"passes", res.Passes,
		"bytes", len(res.HTML),
		"duration", time.Since(start).String(),
	)
	return res.HTML, nil
}

// RenderContent renders the page body with the full props. Failures are
// returned as *errors.RenderError so the compositor can select its failure
// path.
func (r *ComponentRenderer) RenderContent(ctx context.Context, tree page.Tree, props page.Props) (*Content, error) {
	if tree == nil {
		return nil, apperrors.New(apperrors.KindContent, 0, "no content component configured")
	}

	start := time.Now()
	res, err := r.harvester.Run(ctx, tree(props))
	if err != nil {
		rerr := apperrors.Wrap(apperrors.KindContent, fmt.Errorf("rendering %s: %w", props.PagePath, err))
		r.logger.Warn(ctx, rerr, "Content render failed",
			"path", props.PagePath,
			"status", rerr.Status,
		)
		return nil, rerr
	}

	r.logger.Debug(ctx, "Rendered content",
		"path", props.PagePath,
		"passes", res.Passes,
		"seeds", len(res.Seeds),
		"duration", time.Since(start).String(),
	)
	return &Content{HTML: res.HTML, Seeds: res.Seeds, Passes: res.Passes}, nil
}
