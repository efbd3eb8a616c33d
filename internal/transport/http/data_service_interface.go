package http

import (
	"context"

	"nycsales/internal/pipeline"
	"nycsales/pkg/contracts/domain"
)

// DataServiceInterface defines the interface for data operations
type DataServiceInterface interface {
	GetSummaries(ctx context.Context, year int, borough string) ([]domain.GroupSummary, error)
	SummaryYears(ctx context.Context) ([]int, error)
	GetMetrics(ctx context.Context) (domain.MetricsMatrix, error)
	GetRunReport(ctx context.Context) (*pipeline.RunReport, error)
}
