package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Problem type URIs. Relative references per RFC 7807 section 3.1.
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeConflict    = "/errors/conflict"
)

// Problem types specific to the sales data pipeline.
const (
	TypeSchemaMismatch = "/errors/schema/mismatch"
	TypeIntegrity      = "/errors/data/integrity"
	TypeDataNotFound   = "/errors/data/not-found"
	TypeRunNotFound    = "/errors/run/not-found"
)

// problemClass pairs the HTTP status with the problem type URI an error
// category maps to.
type problemClass struct {
	status int
	typ    string
}

// appErrorClasses maps pipeline error categories onto the HTTP surface.
// Categories not listed here fall back to a plain 500.
var appErrorClasses = map[ErrorType]problemClass{
	ErrTypeSchemaMismatch: {http.StatusUnprocessableEntity, TypeSchemaMismatch},
	ErrTypeIntegrity:      {http.StatusInternalServerError, TypeIntegrity},
	ErrTypeValidation:     {http.StatusBadRequest, TypeValidation},
	ErrTypeParsing:        {http.StatusBadRequest, TypeValidation},
	ErrTypeNotFound:       {http.StatusNotFound, TypeNotFound},
	ErrTypeStorage:        {http.StatusInternalServerError, TypeInternal},
	ErrTypeConfig:         {http.StatusInternalServerError, TypeInternal},
}

// apiCodeTypes maps handler error codes onto problem type URIs. The
// status comes from the APIError itself.
var apiCodeTypes = map[string]string{
	"VALIDATION_FAILED":   TypeValidation,
	"INVALID_REQUEST":     TypeValidation,
	"INVALID_PARAMETER":   TypeValidation,
	"MISSING_PARAMETER":   TypeValidation,
	"NOT_FOUND":           TypeNotFound,
	"YEAR_NOT_FOUND":      TypeNotFound,
	"NO_SUMMARIES":        TypeNotFound,
	"NO_METRICS":          TypeNotFound,
	"NO_RUN_REPORT":       TypeNotFound,
	"CONFLICT":            TypeConflict,
	"RATE_LIMIT_EXCEEDED": TypeRateLimit,
	"SERVICE_UNAVAILABLE": TypeServiceDown,
}

// ErrorHandler turns errors into RFC 7807 problem responses. One
// instance serves the whole router.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler builds the handler. includeStack attaches stack traces
// to response bodies and belongs in development only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err, classifies it and writes the problem response.
// A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", stackTrace())
	}

	h.respond(w, r, problem)
}

// respond writes the problem with the RFC 7807 media type. render.JSON
// stamps application/json over any preset header, so the handler owns
// this write.
func (h *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write problem response",
			slog.String("error", err.Error()),
		)
	}
}

// ErrorToProblem classifies err into problem details. Typed errors carry
// their own classification; anything else is matched on message text.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	return h.plainErrorToProblem(err, r)
}

// plainErrorToProblem is the fallback for untyped errors, classifying on
// message text. Library and runtime errors land here.
func (h *ErrorHandler) plainErrorToProblem(err error, r *http.Request) *ProblemDetails {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return NewProblemDetails(
			http.StatusNotFound, TypeNotFound, "Resource Not Found", msg, r.URL.Path)

	case strings.Contains(msg, "rate limit"):
		return NewProblemDetails(
			http.StatusTooManyRequests, TypeRateLimit, "Rate Limit Exceeded",
			"Too many requests. Please try again later.", r.URL.Path,
		).WithExtension("retry_after", 60)

	case strings.Contains(msg, "conflict"):
		return NewProblemDetails(
			http.StatusConflict, TypeConflict, "Conflict", msg, r.URL.Path)
	}

	// Untyped errors never leak their message to clients.
	return NewProblemDetails(
		http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred while processing your request", r.URL.Path)
}

// appErrorToProblem maps a pipeline error onto the HTTP surface and
// copies its context fields into extensions.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	class, ok := appErrorClasses[appErr.Type]
	if !ok {
		class = problemClass{http.StatusInternalServerError, TypeInternal}
	}

	problem := NewProblemDetails(
		class.status,
		class.typ,
		http.StatusText(class.status),
		appErr.Message,
		r.URL.Path,
	).WithExtension("error_type", string(appErr.Type))

	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// apiErrorToProblem converts a handler-level error, preserving its
// status and exposing the code and details as extensions.
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := apiCodeTypes[apiErr.ErrorCode]
	if problemType == "" {
		problemType = TypeInternal
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic responds 500 to a recovered panic. The stack goes to the
// log always and to the body only when includeStack is set.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", stackTrace())
	}

	h.respond(w, r, problem)
}

// NotFound is the router's fallback for unknown paths.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	h.respond(w, r, problem)
}

// MethodNotAllowed is the router's fallback for known paths hit with the
// wrong verb.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeInternal,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	h.respond(w, r, problem)
}

// stackTrace captures the calling goroutine's stack, capped at 8KB.
func stackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
