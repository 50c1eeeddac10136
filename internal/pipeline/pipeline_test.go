package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/seedling/internal/components"
	"github.com/conneroisu/seedling/internal/compositor"
	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/metrics"
	"github.com/conneroisu/seedling/internal/page"
)

var meta = components.Metadata{Title: "Seedling", Stylesheet: "main.css", Script: "index.js"}

func dataServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pages/index":
			_, _ = w.Write([]byte(`{"title":"Home","paragraphs":["</script><b>hi</b>"]}`))
		case "/pages/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"title":"late"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func options(baseURL, path string) page.Options {
	return page.Options{
		DataSourceBaseURL: baseURL,
		RouteBasePath:     "/",
		RoutePagePath:     path,
		SSRTarget:         "hydrate",
		PreferredLanguage: "en",
		DataSourceToken:   "secret-token",
	}
}

func payloadOf(t *testing.T, html string) page.Payload {
	t.Helper()
	open := `<script id="ssr-options" type="application/json">`
	i := strings.Index(html, open)
	require.GreaterOrEqual(t, i, 0, "options script missing")
	rest := html[i+len(open):]
	j := strings.Index(rest, "</script>")
	require.GreaterOrEqual(t, j, 0)

	var payload page.Payload
	require.NoError(t, json.Unmarshal([]byte(rest[:j]), &payload))
	return payload
}

func failingTree(err error) page.Tree {
	return func(page.Props) templ.Component {
		return templ.ComponentFunc(func(context.Context, io.Writer) error { return err })
	}
}

func staticTree(markup string) page.Tree {
	return func(page.Props) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, markup)
			return err
		})
	}
}

func TestRenderSuccess(t *testing.T) {
	srv := dataServer(t)
	rec := metrics.New()
	p := New(Config{Shell: components.Shell(meta), Content: components.FrontEnd, Metrics: rec})

	html, err := p.Render(context.Background(), options(srv.URL, "/"))
	require.NoError(t, err)

	inner, ok := compositor.Contents(html, compositor.DefaultAnchorID)
	require.True(t, ok)
	assert.Contains(t, inner, `<div class="front-end ssr">`)
	assert.Contains(t, inner, `<h1>Home</h1><p>&lt;/script&gt;&lt;b&gt;hi&lt;/b&gt;</p>`)
	assert.Contains(t, html, `</div></div></div><script id="ssr-options"`)
	assert.Contains(t, html, `<script type="text/javascript" src="index.js"></script>`)
	assert.False(t, compositor.HasElement(html, compositor.ErrorBlockID))
	assert.NotContains(t, html, "secret-token")
}

func TestRenderOptionsRoundTrip(t *testing.T) {
	srv := dataServer(t)
	p := New(Config{Shell: components.Shell(meta), Content: components.FrontEnd})
	opts := options(srv.URL, "/")

	html, err := p.Render(context.Background(), opts)
	require.NoError(t, err)

	payload := payloadOf(t, html)
	want := opts
	want.DataSourceToken = ""
	assert.Equal(t, want, payload.Options)

	seeds, err := harvest.DecodeSeeds(payload.Seeds)
	require.NoError(t, err)
	assert.Equal(t, []string{"page:/"}, seeds.Keys())
}

func TestRenderContentNotFoundInProduction(t *testing.T) {
	srv := dataServer(t)
	p := New(Config{Shell: components.Shell(meta), Content: components.FrontEnd, Production: true})

	html, err := p.Render(context.Background(), options(srv.URL, "/about"))
	require.Error(t, err)
	assert.Empty(t, html)

	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusNotFound, pageErr.Status)
	assert.Contains(t, pageErr.HTML, `<pre id="ssr-error"></pre><div id="ssr-container"></div><script id="ssr-options"`)
	assert.Contains(t, pageErr.HTML, `<script type="text/javascript" src="index.js"></script>`)

	inner, ok := compositor.Contents(pageErr.HTML, compositor.DefaultAnchorID)
	require.True(t, ok)
	assert.Empty(t, inner)
	assert.Empty(t, payloadOf(t, pageErr.HTML).Seeds)
}

func TestRenderContentFailureInDevelopment(t *testing.T) {
	p := New(Config{Shell: components.Shell(meta), Content: failingTree(errors.New("component exploded"))})

	_, err := p.Render(context.Background(), options("", "/"))

	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusInternalServerError, pageErr.Status)
	assert.Contains(t, pageErr.HTML, `<pre id="ssr-error">rendering /: component exploded`)
	assert.Contains(t, pageErr.HTML, "\n    at ")
	assert.Equal(t, apperrors.KindContent, apperrors.KindOf(err))
}

func TestRenderShellFailure(t *testing.T) {
	p := New(Config{Shell: failingTree(errors.New("no head")), Content: components.FrontEnd, Production: true})

	_, err := p.Render(context.Background(), options("", "/"))

	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusInternalServerError, pageErr.Status)
	assert.True(t, strings.HasPrefix(pageErr.HTML, "<!DOCTYPE html>"))
	assert.Contains(t, pageErr.HTML, "<pre>no head</pre>")
	assert.Contains(t, pageErr.HTML, `<script type="text/javascript" src="index.js"></script>`)
	assert.NotContains(t, pageErr.HTML, "ssr-container")
}

func TestRenderMalformedShell(t *testing.T) {
	p := New(Config{Shell: staticTree(`<html><body><main></main></body></html>`), Content: components.FrontEnd, BundleScript: "app.js"})

	_, err := p.Render(context.Background(), options("", "/"))

	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.ErrorIs(t, err, apperrors.ErrTemplateMalformed)
	assert.Equal(t, apperrors.KindTemplate, apperrors.KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, pageErr.Status)
	assert.True(t, strings.HasPrefix(pageErr.HTML, "<!DOCTYPE html>"))
	assert.Contains(t, pageErr.HTML, `src="app.js"`)
}

func TestRenderInvalidDataSource(t *testing.T) {
	p := New(Config{Shell: components.Shell(meta), Content: components.FrontEnd})

	_, err := p.Render(context.Background(), options("ftp://example.com", "/"))

	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.True(t, strings.HasPrefix(pageErr.HTML, "<!DOCTYPE html>"))
}

func TestRenderParallel(t *testing.T) {
	srv := dataServer(t)

	t.Run("success", func(t *testing.T) {
		p := New(Config{Shell: components.Shell(meta), Content: components.FrontEnd, Parallel: true})
		html, err := p.Render(context.Background(), options(srv.URL, "/"))
		require.NoError(t, err)
		assert.Contains(t, html, "<h1>Home</h1>")
	})

	t.Run("shell failure wins", func(t *testing.T) {
		p := New(Config{Shell: failingTree(errors.New("no head")), Content: components.FrontEnd, Parallel: true})
		_, err := p.Render(context.Background(), options(srv.URL, "/slow"))

		var pageErr *apperrors.PageError
		require.ErrorAs(t, err, &pageErr)
		assert.Equal(t, apperrors.KindShell, apperrors.KindOf(err))
		assert.True(t, strings.HasPrefix(pageErr.HTML, "<!DOCTYPE html>"))
	})
}

func TestRenderDeadline(t *testing.T) {
	srv := dataServer(t)
	p := New(Config{Shell: components.Shell(meta), Content: components.FrontEnd})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Render(ctx, options(srv.URL, "/slow"))

	var pageErr *apperrors.PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, http.StatusGatewayTimeout, pageErr.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFallbackPage(t *testing.T) {
	html := FallbackPage("<oops>", "index.js")

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>\n"))
	assert.Contains(t, html, "<pre>&lt;oops&gt;</pre>")
	assert.Contains(t, html, `<script type="text/javascript" src="index.js"></script>`)
}

func TestPackageOptionsEscapesMarkup(t *testing.T) {
	script, err := PackageOptions(page.Options{RoutePagePath: "/</script><script>alert(1)"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(script, "</script>"))
	assert.Contains(t, script, `</script>`)
}
