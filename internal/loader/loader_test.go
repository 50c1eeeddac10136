package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/seedling/internal/components"
	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/page"
	"github.com/conneroisu/seedling/internal/pipeline"
)

const moduleSource = `{{define "front-end"}}<div class="front-end{{if .SSR}} ssr{{end}}">` +
	`{{with await "page" "/pages/index"}}<h1>{{.title}}</h1>{{else}}<p>loading</p>{{end}}` +
	`{{require "partials/footer.html"}}</div>{{end}}`

const footerSource = `<footer>{{filename}} for {{.PagePath}}</footer>`

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, code := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(code), 0o644))
	}
	return dir
}

func pipelineBuilder(ex Exports) (Module, error) {
	return pipeline.New(pipeline.Config{Shell: ex.Shell, Content: ex.Content}), nil
}

func newLoader() *TemplateLoader {
	return NewTemplateLoader(pipelineBuilder, components.Shell(components.Metadata{Title: "t", Script: "index.js"}))
}

func dataServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pages/index" {
			_, _ = w.Write([]byte(`{"title":"<Home>"}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReadSource(t *testing.T) {
	dir := writeModule(t, map[string]string{"page.html": "x"})

	src, err := ReadSource(filepath.Join(dir, "page.html"))
	require.NoError(t, err)
	assert.Equal(t, "x", src.Code)
	assert.Equal(t, "page.html", src.Filename)
	assert.Equal(t, filepath.Join(dir, "page.html"), src.Path())

	_, err = ReadSource(filepath.Join(dir, "missing.html"))
	assert.Error(t, err)
}

func TestTemplateLoaderRender(t *testing.T) {
	srv := dataServer(t)
	dir := writeModule(t, map[string]string{
		"page.html":           moduleSource,
		"partials/footer.html": footerSource,
	})

	m, err := LoadFile(newLoader(), filepath.Join(dir, "page.html"))
	require.NoError(t, err)

	html, err := m.Render(context.Background(), page.Options{
		DataSourceBaseURL: srv.URL,
		RoutePagePath:     "/",
		SSRTarget:         "hydrate",
	})
	require.NoError(t, err)

	assert.Contains(t, html, `<div id="ssr-container"><div class="front-end ssr"><h1>&lt;Home&gt;</h1><footer>footer.html for /</footer></div></div>`)
	assert.NotContains(t, html, "loading")
}

func TestTemplateLoaderHasData(t *testing.T) {
	srv := dataServer(t)
	dir := writeModule(t, map[string]string{
		"page.html": `{{define "front-end"}}{{if hasData}}{{with await "page" "/pages/index"}}{{.title}}{{end}}{{else}}offline{{end}}{{end}}`,
	})

	m, err := LoadFile(newLoader(), filepath.Join(dir, "page.html"))
	require.NoError(t, err)

	offline, err := m.Render(context.Background(), page.Options{})
	require.NoError(t, err)
	assert.Contains(t, offline, `<div id="ssr-container">offline</div>`)

	online, err := m.Render(context.Background(), page.Options{DataSourceBaseURL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, online, `<div id="ssr-container">&lt;Home&gt;</div>`)
}

func TestTemplateLoaderModuleShell(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"page.html": `{{define "html"}}<html lang="{{.Language}}"><body><main id="ssr-container"></main><script src="app.js"></script></body></html>{{end}}` +
			`{{define "front-end"}}<p>{{dirname | printf "%.0s"}}hi</p>{{end}}`,
	})

	m, err := LoadFile(newLoader(), filepath.Join(dir, "page.html"))
	require.NoError(t, err)

	html, err := m.Render(context.Background(), page.Options{PreferredLanguage: "fr"})
	require.NoError(t, err)
	assert.Contains(t, html, `<html lang="fr"><body><main id="ssr-container"><p>hi</p></main><script id="ssr-options"`)
}

func TestTemplateLoaderFail(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"page.html": `{{define "front-end"}}{{if eq .PagePath "/gone"}}{{fail 410 "gone for good"}}{{end}}ok{{end}}`,
	})

	m, err := LoadFile(newLoader(), filepath.Join(dir, "page.html"))
	require.NoError(t, err)

	_, err = m.Render(context.Background(), page.Options{RoutePagePath: "/gone"})
	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusGone, pageErr.Status)
	assert.Contains(t, pageErr.HTML, "gone for good")
}

func TestTemplateLoaderAwaitNotFound(t *testing.T) {
	srv := dataServer(t)
	dir := writeModule(t, map[string]string{
		"page.html": `{{define "front-end"}}{{with await "p" "/pages/nope"}}{{.title}}{{end}}{{end}}`,
	})

	m, err := LoadFile(newLoader(), filepath.Join(dir, "page.html"))
	require.NoError(t, err)

	_, err = m.Render(context.Background(), page.Options{DataSourceBaseURL: srv.URL})
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestTemplateLoaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		load  bool
	}{
		{"syntax error", map[string]string{"page.html": `{{define "front-end"}}{{if}}{{end}}`}, false},
		{"no content", map[string]string{"page.html": `{{define "html"}}x{{end}}`}, false},
		{"traversal", map[string]string{"page.html": `{{define "front-end"}}{{require "../secret.html"}}{{end}}`}, true},
		{"absolute", map[string]string{"page.html": `{{define "front-end"}}{{require "/etc/passwd"}}{{end}}`}, true},
		{"missing partial", map[string]string{"page.html": `{{define "front-end"}}{{require "nope.html"}}{{end}}`}, true},
		{"recursive require", map[string]string{
			"page.html": `{{define "front-end"}}{{require "loop.html"}}{{end}}`,
			"loop.html": `{{require "loop.html"}}`,
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModule(t, tt.files)
			m, err := LoadFile(newLoader(), filepath.Join(dir, "page.html"))
			if !tt.load {
				require.Error(t, err)
				assert.Equal(t, apperrors.KindModule, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)

			_, err = m.Render(context.Background(), page.Options{})
			var pageErr *apperrors.PageError
			require.ErrorAs(t, err, &pageErr)
			assert.Contains(t, pageErr.HTML, `id="ssr-error"`)
		})
	}
}

type countingLoader struct {
	loads int
}

func (c *countingLoader) Load(src Source) (Module, error) {
	c.loads++
	if src.Code == "bad" {
		return nil, errors.New("bad module")
	}
	return pipeline.New(pipeline.Config{}), nil
}

func TestCache(t *testing.T) {
	dir := writeModule(t, map[string]string{"page.html": "good", "bad.html": "bad"})
	inner := &countingLoader{}
	cache := NewCache(inner)

	m1, err := cache.LoadFile(filepath.Join(dir, "page.html"))
	require.NoError(t, err)
	m2, err := cache.LoadFile(filepath.Join(dir, "page.html"))
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, 1, inner.loads)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.LoadFile(filepath.Join(dir, "bad.html"))
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len())

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
	_, err = cache.LoadFile(filepath.Join(dir, "page.html"))
	require.NoError(t, err)
	assert.Equal(t, 3, inner.loads)
}

func TestStaticLoader(t *testing.T) {
	l := NewStaticLoader()
	m := pipeline.New(pipeline.Config{})
	l.Register("dist/page.html", m)

	got, err := l.Load(Source{Filename: "page.html"})
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = l.Load(Source{Filename: "other.html"})
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestResolveRequire(t *testing.T) {
	dir := t.TempDir()

	p, err := resolveRequire(dir, "partials/./a.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "partials", "a.html"), p)

	for _, name := range []string{"", ".", "..", "../x", "a/../../x", "/abs"} {
		_, err := resolveRequire(dir, name)
		assert.Error(t, err, name)
	}
}
