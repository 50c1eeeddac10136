package compositor

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/seedling/internal/errors"
)

const shell = `<html lang="en"><head><title>t</title></head><body><div id="ssr-container"></div><script type="text/javascript" src="index.js"></script></body></html>`

const script = `<script id="ssr-options" type="application/json">{}</script>`

func TestLocate(t *testing.T) {
	a, err := Locate(shell, DefaultAnchorID)
	require.NoError(t, err)

	assert.Equal(t, `<html lang="en"><head><title>t</title></head><body>`, a.Before)
	assert.Equal(t, `<div id="ssr-container">`, a.Open)
	assert.Equal(t, `</div>`, a.Close)
	assert.Equal(t, `<script type="text/javascript" src="index.js"></script></body></html>`, a.After)
}

func TestLocateKeepsOriginalCase(t *testing.T) {
	a, err := Locate(`<DIV class="x" id="ssr-container">  </DIV>`, DefaultAnchorID)
	require.NoError(t, err)

	assert.Equal(t, `<DIV class="x" id="ssr-container">`, a.Open)
	assert.Equal(t, `</DIV>`, a.Close)
}

func TestLocateMalformed(t *testing.T) {
	tests := []struct {
		name  string
		shell string
	}{
		{"missing", `<html><body><div id="root"></div></body></html>`},
		{"empty shell", ``},
		{"id in text", `<p>id="ssr-container"</p>`},
		{"duplicate", `<div id="ssr-container"></div><div id="ssr-container"></div>`},
		{"not empty", `<div id="ssr-container"><p>old</p></div>`},
		{"text content", `<div id="ssr-container">old</div>`},
		{"self closing", `<div id="ssr-container"/>`},
		{"void", `<input id="ssr-container">`},
		{"unclosed", `<div id="ssr-container">`},
		{"mismatched close", `<div id="ssr-container"></span>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Locate(tt.shell, DefaultAnchorID)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, apperrors.ErrTemplateMalformed)
			assert.Equal(t, apperrors.KindTemplate, apperrors.KindOf(err))
		})
	}
}

func TestCompose(t *testing.T) {
	c := New(false)

	out, err := c.Compose(shell, `<p>hello</p>`, script)
	require.NoError(t, err)

	assert.Contains(t, out, `<div id="ssr-container"><p>hello</p></div>`+script+`<script type="text/javascript"`)
	assert.True(t, strings.HasPrefix(out, `<html lang="en">`))
}

func TestComposeMalformedReturnsNothing(t *testing.T) {
	out, err := New(false).Compose(`<html></html>`, `<p>x</p>`, script)
	assert.ErrorIs(t, err, apperrors.ErrTemplateMalformed)
	assert.Empty(t, out)

	out, err = New(false).ComposeError(`<html></html>`, errors.New("x"), script)
	assert.ErrorIs(t, err, apperrors.ErrTemplateMalformed)
	assert.Empty(t, out)
}

func TestComposeError(t *testing.T) {
	renderErr := apperrors.New(apperrors.KindContent, http.StatusBadGateway, "upstream <down>")

	t.Run("development shows stack", func(t *testing.T) {
		out, err := New(false).ComposeError(shell, renderErr, script)
		require.NoError(t, err)

		assert.Contains(t, out, `<pre id="ssr-error">upstream &lt;down&gt;`+"\n    at ")
		assert.Contains(t, out, `</pre><div id="ssr-container"></div>`+script)
		assert.Contains(t, out, `src="index.js"`)
	})

	t.Run("production shows message", func(t *testing.T) {
		out, err := New(true).ComposeError(shell, renderErr, script)
		require.NoError(t, err)

		assert.Contains(t, out, `<pre id="ssr-error">upstream &lt;down&gt;</pre><div id="ssr-container"></div>`)
	})

	t.Run("production hides not found", func(t *testing.T) {
		notFound := apperrors.New(apperrors.KindData, http.StatusNotFound, "no page /about")
		out, err := New(true).ComposeError(shell, notFound, script)
		require.NoError(t, err)

		assert.Contains(t, out, `<pre id="ssr-error"></pre><div id="ssr-container"></div>`+script)
		assert.NotContains(t, out, "no page")
		inner, ok := Contents(out, DefaultAnchorID)
		assert.True(t, ok)
		assert.Empty(t, inner)
	})
}

func TestContents(t *testing.T) {
	doc := `<body><div id="ssr-container"><div class="a"><br><img src="x"/><p>t</p></div></div><p>after</p></body>`

	inner, ok := Contents(doc, DefaultAnchorID)
	require.True(t, ok)
	assert.Equal(t, `<div class="a"><br><img src="x"/><p>t</p></div>`, inner)

	_, ok = Contents(`<div id="other"></div>`, DefaultAnchorID)
	assert.False(t, ok)
}

func TestHasElement(t *testing.T) {
	assert.True(t, HasElement(`<pre id="ssr-error"></pre>`, ErrorBlockID))
	assert.False(t, HasElement(`<pre id="ssr-errors"></pre>`, ErrorBlockID))
}
