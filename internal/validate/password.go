package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const PasswordMinLen = 8

// PasswordWarning is advisory; it never blocks submission.
type PasswordWarning struct {
	Score       int      `json:"score"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// Password enforces the minimum length and returns a strength warning for
// weak but acceptable passwords. hints are values the password should not
// contain, such as the user's name or email.
func (e *Errors) Password(field, pwd string, hints ...string) *PasswordWarning {
	if utf8.RuneCountInString(strings.TrimSpace(pwd)) < PasswordMinLen {
		e.Add(field, "weak_password.length", "Password must be at least 8 characters.")
		return nil
	}
	score, msg, sugg := strength(pwd, hints...)
	if score < 3 {
		return &PasswordWarning{Score: score, Message: msg, Suggestions: sugg}
	}
	return nil
}

func strength(pwd string, hints ...string) (int, string, []string) {
	n := utf8.RuneCountInString(pwd)
	var lower, upper, digit, other bool
	for _, r := range pwd {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	classes := 0
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			classes++
		}
	}
	lp := strings.ToLower(pwd)
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if at := strings.IndexByte(h, '@'); at > 0 {
			h = h[:at]
		}
		if len(h) >= 3 && strings.Contains(lp, h) && n < 16 {
			if classes > 1 {
				classes--
			}
			break
		}
	}
	switch {
	case n >= 14 && classes >= 3:
		return 4, "", nil
	case n >= 12 && classes >= 3:
		return 3, "", []string{"Consider a passphrase of three or four words."}
	case n >= 10 && classes >= 2:
		return 2, "Short or low variety.", []string{"Add length and mix letters, numbers and symbols."}
	default:
		return 1, "Too short or predictable.", []string{"Use at least 12 characters with mixed types."}
	}
}
