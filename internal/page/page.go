// Package page holds the data model shared by the server pipeline and the
// client boot: render options, component props and the payload carried from
// one to the other.
package page

import (
	"github.com/a-h/templ"

	"github.com/conneroisu/seedling/internal/datasource"
)

// OptionsScriptID is the id of the inline script carrying the Payload.
const OptionsScriptID = "ssr-options"

// Options is the immutable input to one pipeline invocation. RoutePagePath
// and PreferredLanguage vary per request; the rest is process configuration.
type Options struct {
	DataSourceBaseURL string `json:"dataSourceBaseURL"`
	RouteBasePath     string `json:"routeBasePath"`
	RoutePagePath     string `json:"routePagePath"`
	SSRTarget         string `json:"ssrTarget"`
	PreferredLanguage string `json:"preferredLanguage"`

	// DataSourceToken authenticates server-side fetches and is never
	// forwarded to the client.
	DataSourceToken string `json:"-"`
}

// Props are the attributes every component tree receives.
type Props struct {
	// SSR is non-empty while the tree is server rendered or hydrating. It
	// is cleared for the final live client render.
	SSR string

	BasePath string
	PagePath string
	Language string

	// Data is the data source components suspend on. It may be nil.
	Data *datasource.Client
}

// Props derives component props from the options.
func (o Options) Props(data *datasource.Client) Props {
	return Props{
		SSR:      o.SSRTarget,
		BasePath: o.RouteBasePath,
		PagePath: o.RoutePagePath,
		Language: o.PreferredLanguage,
		Data:     data,
	}
}

// WithoutSSR returns a copy of p for a fully client-driven render.
func (p Props) WithoutSSR() Props {
	p.SSR = ""
	return p
}

// Tree builds the root of a component tree for the given props.
type Tree func(Props) templ.Component

// Payload is what the server hands to the client boot.
type Payload struct {
	Options Options `json:"options"`

	// Seeds is the encoded harvest snapshot; empty when nothing was
	// harvested or the render failed.
	Seeds string `json:"seeds,omitempty"`
}
