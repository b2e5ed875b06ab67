package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Router returns the HTTP surface: GET /, GET /thread/{numero}, GET /health.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.serve(func(r *http.Request) result {
		return h.root(r.Context())
	})).Methods(http.MethodGet)
	r.HandleFunc("/thread/{numero}", h.serve(func(r *http.Request) result {
		return h.thread(r.Context(), mux.Vars(r)["numero"])
	})).Methods(http.MethodGet)
	r.HandleFunc("/health", h.serve(func(r *http.Request) result {
		return h.health(r.Context())
	})).Methods(http.MethodGet)

	r.NotFoundHandler = h.serve(func(*http.Request) result { return notFound() })
	r.MethodNotAllowedHandler = h.serve(func(*http.Request) result { return methodNotAllowed() })

	logged := handlers.CustomLoggingHandler(io.Discard, r, h.logRequest)
	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(h.logger.Handler(), slog.LevelError)),
	)(logged)
	return h.withCorrelation(recovered)
}

func (h *Handler) serve(fn func(*http.Request) result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, h.guard(r.Context(), func() result { return fn(r) }))
	}
}

func (h *Handler) withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = newUUID()
		}
		r.Header.Set(correlationHeader, id)
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	h.logger.InfoContext(p.Request.Context(), "request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"bytes", p.Size,
		"correlation_id", p.Request.Header.Get(correlationHeader),
	)
}

func writeResult(w http.ResponseWriter, res result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	_, _ = w.Write(res.encode())
}
