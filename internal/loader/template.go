package loader

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"

	apperrors "github.com/conneroisu/seedling/internal/errors"
	"github.com/conneroisu/seedling/internal/harvest"
	"github.com/conneroisu/seedling/internal/page"
)

// Names of the templates a module source exports.
const (
	ShellTemplate   = "html"
	ContentTemplate = "front-end"
)

// DefaultMaxRequireDepth bounds nested require calls.
const DefaultMaxRequireDepth = 16

// TemplateLoader compiles html/template module sources at load time.
//
// A module source defines its content as {{define "front-end"}} and may
// define its shell as {{define "html"}}. Besides the builtins, templates can
// call:
//
//	require NAME      execute a sibling file and include its markup
//	dirname           the module's directory
//	filename          the module's file name
//	hasData           whether a data source is configured
//	await KEY PATH    the data source document at PATH, nil while pending
//	fail STATUS MSG   abort the render with a status
type TemplateLoader struct {
	Build Builder

	// DefaultShell is used when a source defines no shell.
	DefaultShell page.Tree

	MaxRequireDepth int
}

// NewTemplateLoader creates a TemplateLoader.
func NewTemplateLoader(build Builder, defaultShell page.Tree) *TemplateLoader {
	return &TemplateLoader{
		Build:           build,
		DefaultShell:    defaultShell,
		MaxRequireDepth: DefaultMaxRequireDepth,
	}
}

// Load compiles src. Parse errors are returned as module errors carrying
// the parser's message.
func (l *TemplateLoader) Load(src Source) (Module, error) {
	t, err := parse(src)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindModule, err)
	}

	if t.Lookup(ContentTemplate) == nil {
		return nil, apperrors.New(apperrors.KindModule, 0, "module %s does not define %q", src.Filename, ContentTemplate)
	}

	exports := Exports{
		Shell:   l.DefaultShell,
		Content: l.tree(t, ContentTemplate, src),
	}
	if t.Lookup(ShellTemplate) != nil {
		exports.Shell = l.tree(t, ShellTemplate, src)
	}
	if exports.Shell == nil {
		return nil, apperrors.New(apperrors.KindModule, 0, "module %s does not define %q", src.Filename, ShellTemplate)
	}

	if l.Build == nil {
		return nil, apperrors.New(apperrors.KindModule, 0, "no module builder configured")
	}
	return l.Build(exports)
}

func parse(src Source) (*template.Template, error) {
	return template.New(src.Filename).Funcs(stubFuncs).Parse(src.Code)
}

// tree executes a clone of the named template with funcs bound to the
// render's context, so await suspends within the running harvest.
func (l *TemplateLoader) tree(t *template.Template, name string, src Source) page.Tree {
	return func(props page.Props) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			clone, err := t.Clone()
			if err != nil {
				return err
			}
			clone.Funcs(l.funcs(ctx, src, props, 0))
			return templ.FromGoHTML(clone.Lookup(name), props).Render(ctx, w)
		})
	}
}

var stubFuncs = template.FuncMap{
	"require":  func(string) (template.HTML, error) { return "", nil },
	"dirname":  func() string { return "" },
	"filename": func() string { return "" },
	"hasData":  func() bool { return false },
	"await":    func(string, string) (interface{}, error) { return nil, nil },
	"fail":     func(int, string) (string, error) { return "", nil },
}

func (l *TemplateLoader) funcs(ctx context.Context, src Source, props page.Props, depth int) template.FuncMap {
	return template.FuncMap{
		"dirname":  func() string { return src.Dirname },
		"filename": func() string { return src.Filename },
		"hasData":  func() bool { return props.Data != nil },
		"require": func(name string) (template.HTML, error) {
			return l.require(ctx, src, props, name, depth+1)
		},
		"await": func(key, path string) (interface{}, error) {
			v, ok, err := harvest.Await(ctx, key, func(ctx context.Context) (interface{}, error) {
				if props.Data == nil {
					return nil, apperrors.New(apperrors.KindData, 0, "await %q: no data source configured", path)
				}
				var doc interface{}
				if err := props.Data.GetJSON(ctx, path, &doc); err != nil {
					return nil, err
				}
				return doc, nil
			})
			if err != nil || !ok {
				return nil, err
			}
			return v, nil
		},
		"fail": func(status int, msg string) (string, error) {
			if http.StatusText(status) == "" {
				status = http.StatusInternalServerError
			}
			return "", apperrors.New(apperrors.KindContent, status, "%s", msg)
		},
	}
}

func (l *TemplateLoader) require(ctx context.Context, parent Source, props page.Props, name string, depth int) (template.HTML, error) {
	limit := l.MaxRequireDepth
	if limit <= 0 {
		limit = DefaultMaxRequireDepth
	}
	if depth > limit {
		return "", fmt.Errorf("require %q: nested deeper than %d", name, limit)
	}

	path, err := resolveRequire(parent.Dirname, name)
	if err != nil {
		return "", err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("require %q: %w", name, err)
	}

	src := Source{Code: string(code), Dirname: filepath.Dir(path), Filename: filepath.Base(path)}
	t, err := parse(src)
	if err != nil {
		return "", fmt.Errorf("require %q: %w", name, err)
	}
	t.Funcs(l.funcs(ctx, src, props, depth))

	return templ.ToGoHTML(ctx, templ.FromGoHTML(t, props))
}

// resolveRequire maps name onto a file inside dir.
func resolveRequire(dir, name string) (string, error) {
	clean := filepath.Clean(name)

	if clean == "" || clean == "." {
		return "", fmt.Errorf("require: empty module name")
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("require %q: absolute path not allowed", name)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("require %q: path traversal attempt detected", name)
	}

	path := filepath.Join(dir, clean)
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("require %q: outside module directory", name)
	}
	return path, nil
}
