// Package compositor splices rendered content, or a diagnostic for a failed
// render, into the document shell at its hydration container.
package compositor

import (
	"errors"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"

	apperrors "github.com/conneroisu/seedling/internal/errors"
)

const (
	// DefaultAnchorID is the id of the hydration container.
	DefaultAnchorID = "ssr-container"

	// ErrorBlockID is the id of the diagnostic block written on failure.
	// The client boot skips hydration when it finds it.
	ErrorBlockID = "ssr-error"
)

// Anchor is a shell split around its hydration container.
type Anchor struct {
	Before string
	Open   string
	Close  string
	After  string
}

// Compositor composes shell documents.
type Compositor struct {
	// AnchorID is the id attribute of the hydration container.
	AnchorID string

	// Production selects the production diagnostic policy.
	Production bool
}

// New returns a Compositor for the default container.
func New(production bool) *Compositor {
	return &Compositor{AnchorID: DefaultAnchorID, Production: production}
}

func (c *Compositor) anchorID() string {
	if c == nil || c.AnchorID == "" {
		return DefaultAnchorID
	}
	return c.AnchorID
}

// Compose places content inside the container and the options script right
// after it.
func (c *Compositor) Compose(shell, content, script string) (string, error) {
	a, err := Locate(shell, c.anchorID())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(shell) + len(content) + len(script))
	b.WriteString(a.Before)
	b.WriteString(a.Open)
	b.WriteString(content)
	b.WriteString(a.Close)
	b.WriteString(script)
	b.WriteString(a.After)
	return b.String(), nil
}

// ComposeError writes the diagnostic for renderErr before an empty container.
func (c *Compositor) ComposeError(shell string, renderErr error, script string) (string, error) {
	a, err := Locate(shell, c.anchorID())
	if err != nil {
		return "", err
	}

	block := ErrorBlock(apperrors.Message(renderErr, c != nil && c.Production))

	var b strings.Builder
	b.Grow(len(shell) + len(block) + len(script))
	b.WriteString(a.Before)
	b.WriteString(block)
	b.WriteString(a.Open)
	b.WriteString(a.Close)
	b.WriteString(script)
	b.WriteString(a.After)
	return b.String(), nil
}

// ErrorBlock renders the diagnostic block for msg.
func ErrorBlock(msg string) string {
	return `<pre id="` + ErrorBlockID + `">` + templ.EscapeString(msg) + `</pre>`
}

func malformed(format string, args ...interface{}) error {
	return apperrors.New(apperrors.KindTemplate, 500, format, args...).WithCause(apperrors.ErrTemplateMalformed)
}

// Locate splits shell around the element whose id is id. The element must be
// unique, have separate open and close tags, and hold at most whitespace,
// which is dropped.
func Locate(shell, id string) (*Anchor, error) {
	z := html.NewTokenizer(strings.NewReader(shell))

	var (
		offset     int
		openStart  = -1
		openEnd    int
		closeStart = -1
		closeEnd   int
		tag        string
	)
	inside := func() bool { return openStart >= 0 && closeStart < 0 }

	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return nil, malformed("parsing shell: %v", z.Err())
			}
			if openStart < 0 {
				return nil, malformed("shell has no hydration container #%s", id)
			}
			if closeStart < 0 {
				return nil, malformed("hydration container #%s is not closed", id)
			}
			return &Anchor{
				Before: shell[:openStart],
				Open:   shell[openStart:openEnd],
				Close:  shell[closeStart:closeEnd],
				After:  shell[closeEnd:],
			}, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, matched := scanTag(z, id)
			if inside() {
				return nil, malformed("hydration container #%s is not empty", id)
			}
			if !matched {
				continue
			}
			if openStart >= 0 {
				return nil, malformed("shell has more than one hydration container #%s", id)
			}
			if tt == html.SelfClosingTagToken || voidElements[name] {
				return nil, malformed("hydration container #%s must not be a void element", id)
			}
			openStart, openEnd, tag = start, offset, name

		case html.EndTagToken:
			if !inside() {
				continue
			}
			name, _ := z.TagName()
			if string(name) != tag {
				return nil, malformed("hydration container #%s is not closed", id)
			}
			closeStart, closeEnd = start, offset

		case html.TextToken:
			if inside() && strings.TrimSpace(string(z.Raw())) != "" {
				return nil, malformed("hydration container #%s is not empty", id)
			}

		default:
			if inside() {
				return nil, malformed("hydration container #%s is not empty", id)
			}
		}
	}
}

// Contents returns the inner markup of the first element whose id is id.
func Contents(doc, id string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		offset int
		inner  = -1
		depth  int
	)
	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			return "", false

		case html.StartTagToken:
			name, matched := scanTag(z, id)
			void := voidElements[name]
			if inner < 0 {
				if matched && !void {
					inner, depth = offset, 1
				}
				continue
			}
			if !void {
				depth++
			}

		case html.EndTagToken:
			if inner < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return doc[inner:start], true
			}
		}
	}
}

// HasElement reports whether doc contains an element whose id is id.
func HasElement(doc, id string) bool {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			if _, matched := scanTag(z, id); matched {
				return true
			}
		}
	}
}

// scanTag returns the current tag's name and whether its id is id. It
// consumes the tag, so it is called at most once per token.
func scanTag(z *html.Tokenizer, id string) (string, bool) {
	raw, more := z.TagName()
	name := string(raw)
	matched := false
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		if string(key) == "id" && string(val) == id {
			matched = true
		}
	}
	return name, matched
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}
