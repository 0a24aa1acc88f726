package backend

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/mssola/useragent"
	"golang.org/x/text/language"
)

const (
	HeaderBrowserName    = "X-Browser-Name"
	HeaderBrowserVersion = "X-Browser-Version"
	HeaderOS             = "X-Operating-System"
	HeaderLanguage       = "X-Language"
	HeaderTimezone       = "X-Timezone"
	HeaderScreen         = "X-Screen-Resolution"

	cookieTimezone = "tz"
	cookieScreen   = "screen"
)

var (
	tzRe     = regexp.MustCompile(`^[A-Za-z_]+(/[A-Za-z0-9_+\-]+){0,2}$|^UTC$`)
	screenRe = regexp.MustCompile(`^[0-9]{2,5}x[0-9]{2,5}$`)
)

// Fingerprint describes the browser a session was opened from. The backend
// compares it against the one recorded at login.
type Fingerprint struct {
	BrowserName      string `json:"browserName"`
	BrowserVersion   string `json:"browserVersion"`
	OS               string `json:"os"`
	Language         string `json:"language"`
	Timezone         string `json:"timezone"`
	ScreenResolution string `json:"screenResolution"`
}

func (f Fingerprint) Empty() bool { return f == Fingerprint{} }

func (f Fingerprint) Headers() http.Header {
	h := http.Header{}
	f.apply(h)
	return h
}

func (f Fingerprint) apply(h http.Header) {
	set := func(k, v string) {
		if v = clean(v); v != "" {
			h.Set(k, v)
		}
	}
	set(HeaderBrowserName, f.BrowserName)
	set(HeaderBrowserVersion, f.BrowserVersion)
	set(HeaderOS, f.OS)
	set(HeaderLanguage, f.Language)
	set(HeaderTimezone, f.Timezone)
	set(HeaderScreen, f.ScreenResolution)
}

// FingerprintFromRequest derives the fingerprint of the browser behind r.
// Requests without a browser user agent (bots, scripts) yield ok=false.
func FingerprintFromRequest(r *http.Request) (Fingerprint, bool) {
	uaStr := r.UserAgent()
	if strings.TrimSpace(uaStr) == "" {
		return Fingerprint{}, false
	}
	ua := useragent.New(uaStr)
	if ua.Bot() {
		return Fingerprint{}, false
	}
	name, version := ua.Browser()
	if name == "" {
		return Fingerprint{}, false
	}

	fp := Fingerprint{
		BrowserName:    name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Language:       primaryLanguage(r.Header.Get("Accept-Language")),
	}
	if tz := headerOrCookie(r, HeaderTimezone, cookieTimezone); tzRe.MatchString(tz) {
		fp.Timezone = tz
	}
	if sc := headerOrCookie(r, HeaderScreen, cookieScreen); screenRe.MatchString(sc) {
		fp.ScreenResolution = sc
	}
	return fp, true
}

func primaryLanguage(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func headerOrCookie(r *http.Request, header, cookie string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	if c, err := r.Cookie(cookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func clean(v string) string {
	v = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(v)
}

type fpKey struct{}

func WithFingerprint(ctx context.Context, fp Fingerprint) context.Context {
	return context.WithValue(ctx, fpKey{}, fp)
}

// FingerprintFromContext has the shape of Config.Fingerprint.
func FingerprintFromContext(ctx context.Context) (Fingerprint, bool) {
	fp, ok := ctx.Value(fpKey{}).(Fingerprint)
	if !ok || fp.Empty() {
		return Fingerprint{}, false
	}
	return fp, true
}
