// Package errors defines the structured errors that flow through the render
// pipeline and the policy used to turn them into diagnostics.
//
// A RenderError records where a failure happened (its Kind), the message
// shown to developers, a captured call stack, and an optional HTTP status.
// A PageError wraps any pipeline failure together with the replacement HTML
// document the HTTP layer should serve in place of a generic error page.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind categorizes the pipeline stage an error originated from.
type Kind string

const (
	KindModule   Kind = "module"
	KindShell    Kind = "shell"
	KindContent  Kind = "content"
	KindTemplate Kind = "template"
	KindData     Kind = "data"
)

// ErrTemplateMalformed is the cause of every error raised when the shell
// does not contain a usable hydration container.
var ErrTemplateMalformed = errors.New("unable to find hydration container")

// RenderError is a structured render failure.
type RenderError struct {
	Kind    Kind
	Message string
	Stack   string
	Status  int
	Cause   error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status attached to the error, or 0.
func (e *RenderError) StatusCode() int {
	return e.Status
}

// WithCause sets the cause of e and returns it.
func (e *RenderError) WithCause(cause error) *RenderError {
	e.Cause = cause
	return e
}

// New creates a RenderError and captures the caller's stack.
func New(kind Kind, status int, format string, args ...interface{}) *RenderError {
	msg := fmt.Sprintf(format, args...)
	return &RenderError{
		Kind:    kind,
		Message: msg,
		Status:  status,
		Stack:   captureStack(msg, 3),
	}
}

// Wrap converts err into a RenderError of the given kind. Errors that are
// already RenderErrors are returned unchanged so their origin, stack and
// status survive. A status carried by the cause is preserved.
func Wrap(kind Kind, err error) *RenderError {
	if err == nil {
		return nil
	}

	var re *RenderError
	if errors.As(err, &re) {
		return re
	}

	status := statusCode(err)
	if status == 0 && errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	return &RenderError{
		Kind:    kind,
		Message: err.Error(),
		Status:  status,
		Cause:   err,
		Stack:   captureStack(err.Error(), 3),
	}
}

// PageError is returned by the pipeline when a render fails. HTML holds a
// complete document that still references the client bundle.
type PageError struct {
	Err    error
	HTML   string
	Status int
}

// Error implements the error interface.
func (e *PageError) Error() string {
	if e.Err == nil {
		return "render failed"
	}
	return e.Err.Error()
}

// Unwrap returns the render failure.
func (e *PageError) Unwrap() error {
	return e.Err
}

// StatusCode returns the status the HTTP layer should respond with.
func (e *PageError) StatusCode() int {
	return e.Status
}

// statusCode returns the raw status carried by err, or 0.
func statusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func captureStack(msg string, skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	b.WriteString(msg)
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "\n    at %s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
