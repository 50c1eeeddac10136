// Package components contains the default page tree: the data-independent
// document shell and the front-end content rendered into it.
package components

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/page"
)

// ContainerID identifies the hydration container in the shell.
const ContainerID = "ssr-container"

// Metadata describes the document head and the client bundle.
type Metadata struct {
	Title      string
	Stylesheet string
	Script     string
}

// Shell returns the document shell tree. The shell awaits its metadata, so
// its first pass renders nothing and the settled pass renders the document.
func Shell(meta Metadata) page.Tree {
	return func(props page.Props) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			m, ok, err := harvest.Await(ctx, "shell:metadata", func(context.Context) (Metadata, error) {
				return meta, nil
			})
			if err != nil || !ok {
				return err
			}
			return writeShell(w, m, props.Language)
		})
	}
}

func writeShell(w io.Writer, m Metadata, lang string) error {
	if lang == "" {
		lang = "en"
	}

	ew := &errWriter{w: w}
	ew.write(`<html lang="`, templ.EscapeString(lang), `">`)
	ew.write(`<head>`)
	ew.write(`<meta charset="UTF-8">`)
	ew.write(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	ew.write(`<title>`, templ.EscapeString(m.Title), `</title>`)
	if m.Stylesheet != "" {
		ew.write(`<link href="`, templ.EscapeString(m.Stylesheet), `" rel="stylesheet">`)
	}
	ew.write(`</head>`)
	ew.write(`<body>`)
	ew.write(`<div id="`, ContainerID, `"></div>`)
	ew.write(`<script type="text/javascript" src="`, templ.EscapeString(m.Script), `"></script>`)
	ew.write(`</body>`)
	ew.write(`</html>`)
	return ew.err
}

// errWriter keeps the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) write(parts ...string) {
	for _, p := range parts {
		if ew.err != nil {
			return
		}
		_, ew.err = io.WriteString(ew.w, p)
	}
}
