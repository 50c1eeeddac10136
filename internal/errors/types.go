package errors

import (
	"errors"
	"net/http"
)

// Message returns the text shown in diagnostic blocks. Development builds
// show the captured stack. Production builds show the plain message, except
// for not-found errors whose message is suppressed because the client
// re-derives and displays that state itself.
func Message(err error, production bool) string {
	if err == nil {
		return ""
	}

	if !production {
		var re *RenderError
		if errors.As(err, &re) && re.Stack != "" {
			return re.Stack
		}
		return err.Error()
	}

	if statusCode(err) == http.StatusNotFound {
		return ""
	}
	return err.Error()
}

// StatusOf returns the HTTP status to respond with for err. Missing,
// non-error and unrecognized statuses map to 500.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}

	status := statusCode(err)
	if status < 400 || status > 599 || http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

// KindOf reports the Kind of the first RenderError in err's chain.
func KindOf(err error) Kind {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
