package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const maxAuditedResponse = 2048

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		entry := AuditLogEntry{
			Timestamp: started.UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			PieceID:   mux.Vars(r)["id"],
			Route:     routeName(r),
		}

		if username, _, ok := r.BasicAuth(); ok {
			entry.Operator = username
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Duration = time.Since(started)
		if body := wrw.GetBody(); len(body) <= maxAuditedResponse {
			entry.Response = string(body)
		}

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
		return route.GetName()
	}
	return "unknown"
}
