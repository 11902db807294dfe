package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/sillage/models"
)

// Classify wraps a raw fetch error into a *models.Error carrying one of the
// fetch codes, so callers can tell timeouts, navigation failures and bad
// status codes apart. Errors that already carry a code are returned as is.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var coded *models.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewError(models.ErrCodeNavigation, msg, err)
	}
}

// StatusError reports a page that answered with a non-200 status.
func StatusError(status int, url string) error {
	return models.NewError(
		models.ErrCodeHTTPStatus,
		fmt.Sprintf("HTTP %d for %s", status, url),
		nil,
	)
}

// retryable reports whether another attempt could change the outcome.
// A status code is the site's answer and is not retried.
func retryable(err error) bool {
	switch models.CodeOf(err) {
	case models.ErrCodeTimeout, models.ErrCodeNavigation:
		return true
	}
	return false
}
