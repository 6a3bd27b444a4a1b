// Package fault defines the error kinds that cross component boundaries.
//
// Components wrap these sentinels with fmt.Errorf("...: %w", ...) and callers
// match them with errors.Is. A component never recovers from a kind it does
// not understand; recovery rules per kind live with the recovering component
// (the finalization pipeline downgrades codec failures to warnings,
// the retranscription pipeline falls back on diarization failure, and so on).
package fault

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrNotFound marks a missing session, transcript, or media object.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an ownership check failure.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput marks a malformed or out-of-range request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition marks a session status change the state machine
	// does not permit.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStoreUnavailable marks a transient ephemeral-store outage. Tasks that
	// hit it are marked failed and may be retried.
	ErrStoreUnavailable = errors.New("backing store unavailable")

	// ErrServiceUnavailable marks an unreachable external inference service.
	ErrServiceUnavailable = errors.New("external service unavailable")

	// ErrCodec marks an audio transcode failure. The finalization pipeline
	// continues without audio persistence when it sees this kind.
	ErrCodec = errors.New("codec failure")

	// ErrNoMedia marks a retranscription request for a session with no
	// completed audio upload.
	ErrNoMedia = errors.New("no media available")
)

// Retryable reports whether the error kind may succeed on a later attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrServiceUnavailable)
}

// HTTPStatus maps an error kind to its HTTP status code. Unknown kinds map to
// 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoMedia):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsUnavailable folds timeouts into the external-service-unavailable kind so
// recovery code only has one kind to match. Deadline and cancellation errors
// from ctx itself are passed through unchanged.
func AsUnavailable(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrServiceUnavailable, err)
	}
	return err
}
