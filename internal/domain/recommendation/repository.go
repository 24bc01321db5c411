package recommendation

import (
	"context"

	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
)

// Repository - хранилище результатов. Только добавление.
type Repository interface {
	// Save добавляет результат и заполняет ID и CreatedAt.
	Save(ctx context.Context, r *Result) error

	// Latest возвращает результат с наибольшим ID или ErrRecommendationNotFound.
	Latest(ctx context.Context, studentID int64) (*Result, error)

	// CountAll - общее число сохранённых результатов.
	CountAll(ctx context.Context) (int, error)

	// RiskDistribution - число результатов по уровням риска.
	RiskDistribution(ctx context.Context) (map[risk.Level]int, error)
}
