package httputil

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/loft-algerie/messaging/pkg/logger"
)

const maxLoggedBody = 4 << 10

// MiddlewareBodyLogging logs JSON request and response bodies at debug level. Meant
// for local troubleshooting; enabled by logging.debug.
func MiddlewareBodyLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody string
		if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "json") && r.Body != nil {
			var buf bytes.Buffer
			b, _ := io.ReadAll(io.TeeReader(r.Body, &buf))
			r.Body = io.NopCloser(&buf)
			reqBody = truncate(string(b))
		}

		lrw := &bodyWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)

		logger.FromContext(r.Context()).Debug("http bodies",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.status,
			"req_body", reqBody,
			"resp_body", truncate(lrw.body.String()),
		)
	})
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}

type bodyWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bodyWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.body.Len() < maxLoggedBody {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}
