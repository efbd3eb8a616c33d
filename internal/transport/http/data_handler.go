package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "nycsales/internal/errors"
	customMiddleware "nycsales/internal/middleware"
	"nycsales/internal/services"
)

// DataHandler serves the pipeline's output tables with RFC 7807 compliance
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validation   *customMiddleware.ValidationMiddleware
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, validation *customMiddleware.ValidationMiddleware) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
		validation:   validation,
	}
}

// summariesQuery models the supported query parameters for GET /summaries.
type summariesQuery struct {
	Year    int    `json:"year" validate:"omitempty,gte=1000,lte=9999"`
	Borough string `json:"borough" validate:"omitempty,borough"`
}

// Routes returns the data routes with proper Chi patterns
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Use render for consistent JSON responses
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summaries", h.GetSummaries)
	r.Get("/summaries/years", h.GetSummaryYears)
	r.Get("/metrics", h.GetMetrics)
	r.Get("/report", h.GetRunReport)

	return r
}

// GetSummaries handles GET /api/summaries with optional year and borough
// query parameters
func (h *DataHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	query := summariesQuery{Borough: r.URL.Query().Get("borough")}
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("year",
				fmt.Sprintf("Invalid year: %q", raw)))
			return
		}
		query.Year = parsed
	}
	if err := h.validation.ValidateStruct(query); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "fetching summaries",
		slog.String("request_id", reqID),
		slog.Int("year", query.Year),
		slog.String("borough", query.Borough),
	)

	summaries, err := h.service.GetSummaries(r.Context(), query.Year, query.Borough)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get summaries",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		switch {
		case errors.Is(err, services.ErrYearNotFound):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"YEAR_NOT_FOUND",
				fmt.Sprintf("No summary table for year %d", query.Year),
			))
		case errors.Is(err, services.ErrNoSummaries):
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_SUMMARIES",
				"No summary tables available; run the pipeline first",
			))
		default:
			h.errorHandler.HandleError(w, r, err)
		}
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summaries,
		"count":  len(summaries),
	})
}

// GetSummaryYears handles GET /api/summaries/years
func (h *DataHandler) GetSummaryYears(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	years, err := h.service.SummaryYears(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list summary years",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoSummaries) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_SUMMARIES",
				"No summary tables available; run the pipeline first",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   years,
		"count":  len(years),
	})
}

// GetMetrics handles GET /api/metrics
func (h *DataHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "fetching metrics matrix",
		slog.String("request_id", reqID),
	)

	matrix, err := h.service.GetMetrics(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get metrics",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoMetrics) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_METRICS",
				"No metrics table available; run the pipeline first",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   matrix,
		"count":  len(matrix),
	})
}

// GetRunReport handles GET /api/report
func (h *DataHandler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	report, err := h.service.GetRunReport(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get run report",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrNoRunReport) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_RUN_REPORT",
				"No pipeline run has been recorded yet",
			))
			return
		}

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   report,
	})
}
