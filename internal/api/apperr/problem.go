package apperr

import (
	"encoding/json"
	"net/http"

	"github.com/5w1tchy/library-web/internal/validate"
)

type FieldError = validate.FieldError

// Notice tells the page to show a message and navigate after a delay.
type Notice struct {
	Reason          string `json:"reason"`
	Message         string `json:"message"`
	Redirect        string `json:"redirect,omitempty"`
	RedirectAfterMs int64  `json:"redirect_after_ms,omitempty"`
}

type Problem struct {
	Type           string       `json:"type,omitempty"`   // RFC7807 type URI
	Title          string       `json:"title"`            // short summary
	Status         int          `json:"status"`           // HTTP status code
	Detail         string       `json:"detail,omitempty"` // shown to the user
	Instance       string       `json:"instance,omitempty"`
	RequestID      string       `json:"request_id,omitempty"`
	Kind           string       `json:"kind,omitempty"`
	FieldErrors    []FieldError `json:"field_errors,omitempty"`
	Retryable      bool         `json:"retryable,omitempty"`
	RequireRelogin bool         `json:"require_relogin,omitempty"`
	Notice         *Notice      `json:"notice,omitempty"`
}

func Write(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	if p.Instance == "" && r != nil {
		p.Instance = r.URL.Path
	}
	if p.RequestID == "" && r != nil {
		if rid := r.Header.Get("X-Request-ID"); rid != "" {
			p.RequestID = rid
		}
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// WriteStatus writes a problem with just status, title and detail.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, title, detail string) {
	Write(w, r, Problem{Status: status, Title: title, Detail: detail})
}
