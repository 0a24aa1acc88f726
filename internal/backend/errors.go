package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTimeout = errors.New("backend: request timed out")
	ErrNetwork = errors.New("backend: network error")
	ErrRelogin = errors.New("backend: session invalidated, login required")
)

// HTTPError is a non-2xx response that was not a relogin signal.
type HTTPError struct {
	Status  int
	Message string
	Body    map[string]any
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// ReloginError is returned for a 401 carrying requireRelogin=true. The session
// it was issued for must be discarded regardless of the token's own validity.
type ReloginError struct {
	Message string
}

func (e *ReloginError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrRelogin.Error()
}

func (e *ReloginError) Is(target error) bool { return target == ErrRelogin }

// Kind is the coarse error class used by presentation adapters.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindValidation
	KindServer
	KindRelogin
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindRelogin:
		return "relogin"
	default:
		return "unknown"
	}
}

// validationError is satisfied by client-side field validation errors.
type validationError interface {
	IsValidation() bool
}

func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ve validationError
	if errors.As(err, &ve) && ve.IsValidation() {
		return KindValidation
	}
	if errors.Is(err, ErrRelogin) {
		return KindRelogin
	}
	if errors.Is(err, ErrTimeout) {
		return KindTimeout
	}
	if errors.Is(err, ErrNetwork) {
		return KindNetwork
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return KindServer
	}
	return KindUnknown
}

// Message returns text suitable for showing to a user.
func Message(err error) string {
	switch Classify(err) {
	case KindTimeout:
		return "The server took too long to respond. Please try again."
	case KindNetwork:
		return "Unable to reach the server. Check your connection and try again."
	case KindRelogin:
		var re *ReloginError
		if errors.As(err, &re) && re.Message != "" {
			return re.Message
		}
		return "Your session is no longer valid on this device. Please log in again."
	case KindServer:
		var he *HTTPError
		errors.As(err, &he)
		return he.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindNetwork, KindTimeout:
		return true
	case KindServer:
		var he *HTTPError
		errors.As(err, &he)
		return he.Status >= http.StatusInternalServerError || he.Status == http.StatusTooManyRequests
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	if errors.Is(err, ErrRelogin) {
		return http.StatusUnauthorized
	}
	return 0
}
