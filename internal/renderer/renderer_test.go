package renderer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/seedling/internal/components"
	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/page"
)

func static(markup string) page.Tree {
	return func(page.Props) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, markup)
			return err
		})
	}
}

func failing(err error) page.Tree {
	return func(page.Props) templ.Component {
		return templ.ComponentFunc(func(context.Context, io.Writer) error {
			return err
		})
	}
}

func TestNewComponentRenderer(t *testing.T) {
	r := NewComponentRenderer(nil, nil)

	assert.NotNil(t, r)
	assert.NotNil(t, r.harvester)
	assert.NotNil(t, r.logger)
}

func TestRenderShell(t *testing.T) {
	r := NewComponentRenderer(harvest.New(), nil)
	meta := components.Metadata{Title: "T", Script: "index.js"}

	html, err := r.RenderShell(context.Background(), components.Shell(meta), page.Props{Language: "de"})
	require.NoError(t, err)

	assert.Contains(t, html, `<html lang="de">`)
	assert.Contains(t, html, `<div id="ssr-container"></div>`)
}

func TestRenderShellFailures(t *testing.T) {
	r := NewComponentRenderer(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		tree page.Tree
	}{
		{"nil tree", nil},
		{"empty markup", static("  ")},
		{"component error", failing(errors.New("boom"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RenderShell(ctx, tt.tree, page.Props{})
			require.Error(t, err)
			assert.Equal(t, apperrors.KindShell, apperrors.KindOf(err))
		})
	}
}

func TestRenderContent(t *testing.T) {
	r := NewComponentRenderer(nil, nil)

	content, err := r.RenderContent(context.Background(), components.FrontEnd, page.Props{SSR: "hydrate", PagePath: "/"})
	require.NoError(t, err)

	assert.Equal(t, `<div class="front-end ssr"><div class="page-container"><h1>This is a test</h1></div></div>`, content.HTML)
	assert.Equal(t, []string{"page:/"}, content.Seeds.Keys())
	assert.Equal(t, 2, content.Passes)
}

func TestRenderContentKeepsStatus(t *testing.T) {
	r := NewComponentRenderer(nil, nil)
	notFound := apperrors.New(apperrors.KindData, http.StatusNotFound, "no such page")

	_, err := r.RenderContent(context.Background(), failing(notFound), page.Props{PagePath: "/x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	_, err = r.RenderContent(context.Background(), failing(errors.New("plain")), page.Props{PagePath: "/x"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindContent, apperrors.KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
	assert.Contains(t, err.Error(), "rendering /x")
}
