// Package middleware composes the HTTP middleware stack of the seedling
// server.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/conneroisu/seedling/internal/config"
	"github.com/conneroisu/seedling/internal/logging"
	"github.com/conneroisu/seedling/internal/metrics"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered middleware stack. Middlewares run in the order they
// were added: the first one added is the outermost wrapper.
type Chain struct {
	middlewares []Middleware
}

// Dependencies are what the default stack needs.
type Dependencies struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *metrics.Recorder
}

// NewChain returns an empty chain.
func NewChain(middlewares ...Middleware) *Chain {
	c := &Chain{middlewares: make([]Middleware, 0, len(middlewares))}
	for _, m := range middlewares {
		c.Add(m)
	}
	return c
}

// NewDefaultChain builds the standard stack, outer to inner: panic recovery,
// request id, request logging, security headers, then the per-client rate
// limit and the per-request deadline when configured.
func NewDefaultChain(deps Dependencies) *Chain {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("http")

	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	c := NewChain(
		Recover(logger),
		RequestID(),
		Logging(logger, deps.Metrics),
		SecurityHeaders(cfg.Production()),
	)
	if cfg.Server.RateLimit > 0 {
		c.Add(RateLimit(NewRateLimiter(cfg.Server.RateLimit, time.Minute), logger))
	}
	if cfg.Server.RequestTimeout > 0 {
		c.Add(Timeout(cfg.Server.RequestTimeout))
	}
	return c
}

// Add appends m as the new innermost middleware.
func (c *Chain) Add(m Middleware) {
	if m == nil {
		panic("middleware: nil middleware")
	}
	c.middlewares = append(c.middlewares, m)
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler with every middleware in the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware: nil handler")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("middleware: middleware %d returned a nil handler", i))
		}
	}
	return wrapped
}
