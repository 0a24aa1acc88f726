package middlewares

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// AccessLog writes one structured entry per request.
func AccessLog(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			e := log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     sw.status,
				"bytes":      sw.bytes,
				"duration":   time.Since(sw.start).String(),
				"request_id": GetRequestID(r),
				"ip":         clientIP(r),
			})
			switch {
			case sw.status >= 500:
				e.Error("request")
			case sw.status >= 400:
				e.Warn("request")
			default:
				e.Info("request")
			}
		})
	}
}
