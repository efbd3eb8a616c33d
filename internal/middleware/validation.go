package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "nycsales/internal/errors"
	"nycsales/pkg/contracts/domain"
)

// maxRequestBody caps inbound bodies. The API is read-only; anything
// sizable is a client bug.
const maxRequestBody = 1 << 20

// ValidationMiddleware checks request bodies and query structs against
// validator tags before handlers see them.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware builds the middleware with the domain rules
// registered. Field names in messages come from json tags, matching what
// the client actually sent.
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()

	v.RegisterValidation("borough", func(fl validator.FieldLevel) bool {
		return domain.IsBoroughName(fl.Field().String())
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  maxRequestBody,
	}
}

// ValidateRequest gates mutating requests: the body must fit the size cap
// and parse as JSON. Safe methods pass straight through.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]interface{}{
					"max_size": m.maxBodySize,
					"size":     r.ContentLength,
				},
			))
			return
		}

		if r.Body != nil && r.ContentLength > 0 {
			if !m.checkBody(w, r) {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// checkBody reads the body, verifies it is JSON and reinstates it for the
// handler. Returns false when a response has already been written.
func (m *ValidationMiddleware) checkBody(w http.ResponseWriter, r *http.Request) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize))
	if err != nil {
		m.logger.ErrorContext(r.Context(), "failed to read request body",
			slog.String("error", err.Error()),
			slog.String("request_id", GetReqID(r.Context())),
		)
		m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) > 0 && !json.Valid(body) {
		m.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"INVALID_JSON",
			"Request body contains invalid JSON",
		))
		return false
	}
	return true
}

// ValidateStruct runs the tag rules over v and folds failures into one
// 400-carrying APIError.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Not a rule failure; the value itself was unusable.
		return apierrors.InvalidRequestWithError(err)
	}

	failures := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		failures = append(failures, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return apierrors.NewValidationErrors(failures)
}

// messageFor renders a rule failure for humans. Only the rules this API
// uses get bespoke wording.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "borough":
		return fmt.Sprintf("%s must be a New York City borough", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
