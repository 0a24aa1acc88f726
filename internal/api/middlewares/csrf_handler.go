package middlewares

import (
	"net/http"

	"github.com/5w1tchy/library-web/internal/api/httpx"
)

// CSRFTokenHandler serves GET /csrf: it (re)sets the cookie and returns the
// token so page script can echo it in the header.
func CSRFTokenHandler(opts CSRFOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := CSRFTokenFromRequest(r, opts.CookieName)
		http.SetCookie(w, &http.Cookie{
			Name:     opts.CookieName,
			Value:    token,
			Path:     opts.CookiePath,
			Secure:   opts.CookieSecure,
			HttpOnly: true,
			SameSite: opts.CookieSameSite,
		})
		httpx.OK(w, map[string]string{"csrf_token": token})
	}
}
