package menu

import (
	"errors"

	"github.com/shashiranjanraj/storefront/pkg/backend"
)

// isRetryable reports whether a settled failure is worth a manual retry:
// transient errors that exhausted their attempts.
func isRetryable(err error) bool {
	return backend.IsTransient(err)
}

// Message is the text shown to a customer for a settled failure.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return ""
	case errors.Is(err, backend.ErrNotFound):
		return "This menu is not available."
	case errors.Is(err, backend.ErrPermission), errors.Is(err, backend.ErrConnection):
		return "The menu cannot be shown right now. Please contact the restaurant."
	case backend.IsTransient(err):
		return "We could not reach the menu. Check your connection and try again."
	default:
		return "Something went wrong loading the menu."
	}
}
