package apperr

import (
	"errors"
	"net/http"

	"github.com/5w1tchy/library-web/internal/backend"
	"github.com/5w1tchy/library-web/internal/odata"
	"github.com/5w1tchy/library-web/internal/session"
	"github.com/5w1tchy/library-web/internal/validate"
)

// FromError maps an error from the services layer to a problem. n is the
// notice raised while handling the request, if any.
func FromError(err error, n *session.Notice) Problem {
	p := Problem{
		Status:    http.StatusInternalServerError,
		Detail:    backend.Message(err),
		Kind:      backend.Classify(err).String(),
		Retryable: backend.Retryable(err),
	}

	var fe validate.Errors
	var he *backend.HTTPError
	switch {
	case errors.As(err, &fe):
		p.Status = http.StatusUnprocessableEntity
		p.Title = "Validation failed"
		p.Detail = "Some fields need attention."
		p.FieldErrors = fe
	case errors.Is(err, odata.ErrInvalidValue):
		p.Status = http.StatusBadRequest
		p.Title = "Invalid filter"
		p.Kind = backend.KindValidation.String()
	case errors.Is(err, backend.ErrRelogin):
		p.Status = http.StatusUnauthorized
		p.Title = "Session invalidated"
		p.RequireRelogin = true
	case errors.Is(err, session.ErrNoSession):
		p.Status = http.StatusUnauthorized
		p.Title = "Not signed in"
		p.Detail = "Please log in to continue."
	case errors.Is(err, session.ErrLoginInProgress):
		p.Status = http.StatusConflict
		p.Title = "Login in progress"
		p.Detail = "A login is already in progress."
	case errors.Is(err, backend.ErrTimeout):
		p.Status = http.StatusGatewayTimeout
		p.Title = "Backend timeout"
	case errors.Is(err, backend.ErrNetwork):
		p.Status = http.StatusBadGateway
		p.Title = "Backend unreachable"
	case errors.As(err, &he):
		p.Status = he.Status
		if he.Status >= 500 {
			p.Status = http.StatusBadGateway
		}
		p.Title = http.StatusText(he.Status)
	default:
		p.Title = "Internal Server Error"
		p.Detail = "Something went wrong. Please try again."
	}

	if n != nil {
		p.Notice = &Notice{
			Reason:          string(n.Reason),
			Message:         n.Message,
			Redirect:        n.Redirect,
			RedirectAfterMs: n.AfterMillis(),
		}
		if n.Reason == session.ReasonFingerprintMismatch {
			p.RequireRelogin = true
		}
	}
	return p
}
