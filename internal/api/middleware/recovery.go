package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type errEnvelope struct {
	Error string `json:"error"`
}

const hangupMarkup = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<Response><Hangup></Hangup></Response>`

// Recoverer returns middleware that recovers from panics and logs the stack
// trace using slog. API requests get a 500 JSON response; carrier webhook
// requests get a well-formed hangup document instead, since the carrier
// cannot do anything useful with a JSON error and would keep the call open.
// It should be mounted after StructuredLogger so the request ID is available.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					"request_id", chimw.GetReqID(r.Context()),
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				if strings.HasPrefix(r.URL.Path, "/webhooks/") {
					w.Header().Set("Content-Type", "text/xml; charset=utf-8")
					w.WriteHeader(http.StatusOK)
					io.WriteString(w, hangupMarkup) //nolint:errcheck
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(errEnvelope{Error: "internal server error"}) //nolint:errcheck
			}
		}()

		next.ServeHTTP(w, r)
	})
}
