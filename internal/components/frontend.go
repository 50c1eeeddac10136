package components

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/page"
)

// DefaultHeading is shown when no data source is configured.
const DefaultHeading = "This is a test"

// PageContent is the document a data source serves for one page.
type PageContent struct {
	Title      string   `json:"title" msgpack:"title"`
	Paragraphs []string `json:"paragraphs,omitempty" msgpack:"paragraphs"`
}

// FrontEnd renders the page body. Server-rendered output carries the "ssr"
// class so styles can tell the two passes apart.
func FrontEnd(props page.Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		content, ok, err := harvest.Await(ctx, "page:"+props.PagePath, func(ctx context.Context) (PageContent, error) {
			return loadPage(ctx, props)
		})
		if err != nil {
			return err
		}

		classes := templ.Classes("front-end", templ.KV("ssr", props.SSR != ""))

		ew := &errWriter{w: w}
		ew.write(`<div class="`, templ.EscapeString(classes.String()), `">`)
		ew.write(`<div class="page-container">`)
		if ok {
			ew.write(`<h1>`, templ.EscapeString(content.Title), `</h1>`)
			for _, p := range content.Paragraphs {
				ew.write(`<p>`, templ.EscapeString(p), `</p>`)
			}
		}
		ew.write(`</div>`)
		ew.write(`</div>`)
		return ew.err
	})
}

// DataPath maps a route page path onto the data source's page document.
func DataPath(pagePath string) string {
	trimmed := strings.Trim(pagePath, "/")
	if trimmed == "" {
		trimmed = "index"
	}
	return "/pages/" + trimmed
}

func loadPage(ctx context.Context, props page.Props) (PageContent, error) {
	if props.Data == nil {
		return PageContent{Title: DefaultHeading}, nil
	}
	var content PageContent
	if err := props.Data.GetJSON(ctx, DataPath(props.PagePath), &content); err != nil {
		return PageContent{}, err
	}
	return content, nil
}
