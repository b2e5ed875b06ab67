package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"thread-manager/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	rootMessage       = "Thread Manager API is running"
)

type ThreadUseCase interface {
	GetOrCreate(ctx context.Context, identifier string) (usecase.ThreadOutput, error)
	Health(ctx context.Context) usecase.HealthOutput
}

type rootResponse struct {
	Message string `json:"message"`
}

type threadResponse struct {
	Numero string `json:"numero"`
	Thread string `json:"thread"`
}

type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// result is a transport-neutral response shared by the HTTP and Lambda paths.
type result struct {
	status int
	body   any
}

func (r result) encode() []byte {
	buf, err := json.Marshal(r.body)
	if err != nil {
		return []byte(`{"detail":"internal error: encode response"}`)
	}
	return buf
}

type Handler struct {
	svc    ThreadUseCase
	logger *slog.Logger
}

func NewHandler(svc ThreadUseCase, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}, nil
}

func (h *Handler) root(_ context.Context) result {
	return result{status: http.StatusOK, body: rootResponse{Message: rootMessage}}
}

// guard runs a route and turns a panic into an INTERNAL_ERROR response, so
// every route on both transports answers with the JSON error body.
func (h *Handler) guard(ctx context.Context, route func() result) (res result) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.ErrorContext(ctx, "panic in request", "panic", rec)
			res = errorResult(&usecase.Error{Code: usecase.ErrorInternal, Reason: "panic", Err: fmt.Errorf("%v", rec)})
		}
	}()
	return route()
}

func (h *Handler) thread(ctx context.Context, identifier string) result {
	out, err := h.svc.GetOrCreate(ctx, identifier)
	if err != nil {
		h.logger.ErrorContext(ctx, "thread lookup failed", "identifier", identifier, "err", err)
		return errorResult(err)
	}
	return result{status: http.StatusOK, body: threadResponse{Numero: out.Identifier, Thread: out.ThreadID}}
}

// health always answers 200; store state travels in the body.
func (h *Handler) health(ctx context.Context) result {
	out := h.svc.Health(ctx)
	return result{status: http.StatusOK, body: healthResponse{Status: out.Status, Redis: out.Store}}
}

func errorResult(err error) result {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		ucErr = &usecase.Error{Code: usecase.ErrorInternal, Reason: "unexpected_error", Err: err}
	}
	// Store, provider and internal failures are all server-side.
	return result{status: http.StatusInternalServerError, body: errorResponse{Detail: ucErr.Detail()}}
}

func notFound() result {
	return result{status: http.StatusNotFound, body: errorResponse{Detail: "Not Found"}}
}

func methodNotAllowed() result {
	return result{status: http.StatusMethodNotAllowed, body: errorResponse{Detail: "Method Not Allowed"}}
}

// correlationID returns the caller's X-Correlation-Id, matched
// case-insensitively, or a fresh one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return newUUID()
}

var newUUID = func() string {
	return uuid.NewString()
}
