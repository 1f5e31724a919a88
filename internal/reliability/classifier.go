// Package reliability labels model failures for logs and metrics.
package reliability

import (
	"context"
	"errors"

	"github.com/ent0n29/sourcebot/internal/brain"
	"github.com/ent0n29/sourcebot/internal/protocol"
)

// Cause is a coarse failure label safe to use as a metric label.
type Cause string

const (
	CauseTimeout         Cause = "timeout"
	CauseCanceled        Cause = "canceled"
	CauseRateLimited     Cause = "rate_limited"
	CauseServerError     Cause = "server_error"
	CauseClientError     Cause = "client_error"
	CauseEmptyReply      Cause = "empty_reply"
	CauseMalformed       Cause = "malformed_payload"
	CauseSchemaViolation Cause = "schema_violation"
	CauseOther           Cause = "other"
)

// IsTransientHTTPStatus reports upstream statuses that usually clear up if
// the user simply sends the message again.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Classify maps a model failure to its Cause.
func Classify(err error) Cause {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, context.Canceled):
		return CauseCanceled
	case errors.Is(err, protocol.ErrSchemaViolation):
		return CauseSchemaViolation
	case errors.Is(err, protocol.ErrMalformedPayload):
		return CauseMalformed
	case errors.Is(err, brain.ErrEmptyReply):
		return CauseEmptyReply
	}

	code := brain.StatusCode(err)
	switch {
	case code == 429:
		return CauseRateLimited
	case code >= 500:
		return CauseServerError
	case code >= 400:
		return CauseClientError
	default:
		return CauseOther
	}
}

// Transient reports whether a retry by the user is likely to succeed.
func Transient(err error) bool {
	switch Classify(err) {
	case CauseTimeout, CauseEmptyReply, CauseMalformed, CauseSchemaViolation:
		return true
	}
	return IsTransientHTTPStatus(brain.StatusCode(err))
}
