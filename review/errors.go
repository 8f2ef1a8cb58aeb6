package review

import (
	"errors"
	"strings"

	"auto_thread_publisher/generator"
	"auto_thread_publisher/publisher"
)

// UserMessage converts any error from this package or its collaborators into
// a sentence safe to show the end user. Causes are never included.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, generator.ErrInvalidRequest):
		// Validation messages carry no internal detail; surface the reason.
		msg := strings.TrimPrefix(err.Error(), generator.ErrInvalidRequest.Error()+": ")
		return "Invalid request: " + msg + "."
	case errors.Is(err, ErrForbidden):
		return "Only the person who created this draft can change it."
	case errors.Is(err, ErrSessionExpired):
		return "This draft session expired after inactivity. Start a new one with /create."
	case errors.Is(err, ErrAlreadyFinalized):
		return "This draft has already been finalized."
	case errors.Is(err, ErrSessionNotFound):
		return "This draft session is no longer available. Start a new one with /create."
	case errors.Is(err, generator.ErrGeneration):
		return "Generating the thread failed. Please try again in a moment."
	case errors.Is(err, publisher.ErrPublish):
		return "Publishing the draft failed. You can retry finalize or request another revision."
	default:
		return "Something went wrong. Please try again."
	}
}
