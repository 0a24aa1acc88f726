// Package validate checks form input before it is sent to the backend.
package validate

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	otpRe  = regexp.MustCompile(`^[0-9]{6}$`)
	isbnRe = regexp.MustCompile(`^(?:[0-9]{9}[0-9X]|[0-9]{13})$`)
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors collects field errors. The zero value is ready to use.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) IsValidation() bool { return true }

func (e *Errors) Add(field, code, msg string) {
	*e = append(*e, FieldError{Field: field, Code: code, Message: msg})
}

// Has reports whether field already has an error.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Err returns nil when no error was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Required trims s and records an error when it is empty.
func (e *Errors) Required(field, s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		e.Add(field, "required", "This field is required.")
	}
	return s
}

// Bounded trims s and enforces a rune length range.
func (e *Errors) Bounded(field, s string, min, max int) string {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		if min > 0 && n == 0 {
			e.Add(field, "required", "This field is required.")
		} else {
			e.Add(field, "length", "Must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max)+" characters.")
		}
	}
	return s
}

func (e *Errors) Email(field, s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		e.Add(field, "required", "Email is required.")
		return s
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		e.Add(field, "email", "Enter a valid email address.")
	}
	return s
}

// Confirm records a mismatch between a password and its confirmation.
func (e *Errors) Confirm(field, pwd, confirm string) {
	if pwd != confirm {
		e.Add(field, "mismatch", "Passwords do not match.")
	}
}

func (e *Errors) OTP(field, s string) string {
	s = strings.TrimSpace(s)
	if !otpRe.MatchString(s) {
		e.Add(field, "otp", "Enter the 6-digit code from the email.")
	}
	return s
}

// ISBN accepts ISBN-10 or ISBN-13 with optional hyphens or spaces and returns
// the bare digits. Empty input is allowed.
func (e *Errors) ISBN(field, s string) string {
	s = strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s)))
	if s == "" {
		return s
	}
	if !isbnRe.MatchString(s) || !isbnChecksum(s) {
		e.Add(field, "isbn", "Enter a valid ISBN-10 or ISBN-13.")
	}
	return s
}

// Year parses an optional publication year no later than next year.
func (e *Errors) Year(field, s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1000 || y > time.Now().Year()+1 {
		e.Add(field, "year", "Enter a year between 1000 and "+strconv.Itoa(time.Now().Year()+1)+".")
		return 0
	}
	return y
}

// OneOf returns the canonical spelling of s from allowed, matched
// case-insensitively.
func (e *Errors) OneOf(field, s string, allowed []string) string {
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(a, s) {
			return a
		}
	}
	e.Add(field, "enum", "Must be one of: "+strings.Join(allowed, ", ")+".")
	return s
}

// ClampLimitOffset parses and clamps paging.
func ClampLimitOffset(limitRaw, offsetRaw string, def, max int) (int, int) {
	limit := def
	if v, err := strconv.Atoi(strings.TrimSpace(limitRaw)); err == nil && v >= 1 && v <= max {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(strings.TrimSpace(offsetRaw)); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func isbnChecksum(s string) bool {
	if len(s) == 10 {
		sum := 0
		for i := 0; i < 10; i++ {
			d := int(s[i] - '0')
			if s[i] == 'X' {
				if i != 9 {
					return false
				}
				d = 10
			}
			sum += d * (10 - i)
		}
		return sum%11 == 0
	}
	sum := 0
	for i := 0; i < 13; i++ {
		d := int(s[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return sum%10 == 0
}
