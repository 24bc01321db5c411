// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ANALYTICS SUMMARY QUERY
// Сводка по всем сохранённым результатам: сколько студентов, сколько
// рекомендаций и распределение по уровням риска.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsSummaryDTO - ответ запроса.
type AnalyticsSummaryDTO struct {
	TotalStudents        int            `json:"total_students"`
	TotalRecommendations int            `json:"total_recommendations"`
	RiskDistribution     map[string]int `json:"risk_distribution"`

	// Coverage - отношение рекомендаций к студентам в процентах, например "87.5%".
	Coverage string `json:"coverage"`
}

// GetAnalyticsSummaryHandler выполняет запрос.
type GetAnalyticsSummaryHandler struct {
	students student.Repository
	results  recommendation.Repository
}

// NewGetAnalyticsSummaryHandler создаёт обработчик.
func NewGetAnalyticsSummaryHandler(students student.Repository, results recommendation.Repository) *GetAnalyticsSummaryHandler {
	return &GetAnalyticsSummaryHandler{students: students, results: results}
}

// Handle выполняет запрос.
func (h *GetAnalyticsSummaryHandler) Handle(ctx context.Context) (*AnalyticsSummaryDTO, error) {
	totalStudents, err := h.students.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: count students: %w", err)
	}
	totalRecommendations, err := h.results.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: count recommendations: %w", err)
	}
	byLevel, err := h.results.RiskDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: risk distribution: %w", err)
	}

	distribution := make(map[string]int, len(byLevel))
	for level, n := range byLevel {
		distribution[level.String()] += n
	}

	return &AnalyticsSummaryDTO{
		TotalStudents:        totalStudents,
		TotalRecommendations: totalRecommendations,
		RiskDistribution:     distribution,
		Coverage:             coverage(totalRecommendations, totalStudents),
	}, nil
}

func coverage(recommendations, students int) string {
	if students <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(recommendations)/float64(students)*100)
}
