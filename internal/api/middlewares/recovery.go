package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/5w1tchy/library-web/internal/api/apperr"
)

func Recovery(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					rid := GetRequestID(r)
					if rid == "" {
						rid = "unknown"
					}
					log.WithFields(logrus.Fields{
						"request_id": rid,
						"method":     r.Method,
						"path":       r.URL.Path,
						"panic":      err,
						"stack":      string(debug.Stack()),
					}).Error("panic recovered")

					// Internal details stay in the log.
					apperr.Write(w, r, apperr.Problem{
						Status: http.StatusInternalServerError,
						Title:  "Internal Server Error",
						Detail: "Something went wrong. Please try again.",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
