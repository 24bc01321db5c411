package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

// RecommendationRepository implements recommendation.Repository.
// Every Save is a single INSERT; rows are never updated.
type RecommendationRepository struct {
	conn *Connection
}

// NewRecommendationRepository creates a new RecommendationRepository.
func NewRecommendationRepository(conn *Connection) *RecommendationRepository {
	return &RecommendationRepository{conn: conn}
}

var _ recommendation.Repository = (*RecommendationRepository)(nil)

// Save appends a result and fills its ID and CreatedAt.
func (r *RecommendationRepository) Save(ctx context.Context, res *recommendation.Result) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	err := r.conn.QueryRow(ctx, `
		INSERT INTO recommendation_results (student_id, risk_level, recommendation, source, run_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, res.StudentID, res.RiskLevel.String(), res.Text, string(res.Source), res.RunID).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrStudentNotFound
		}
		return fmt.Errorf("failed to save recommendation for student %d: %w", res.StudentID, err)
	}
	return nil
}

// Latest returns the result with the highest ID for the student.
func (r *RecommendationRepository) Latest(ctx context.Context, studentID int64) (*recommendation.Result, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var (
		res    recommendation.Result
		level  string
		source string
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, student_id, risk_level, recommendation, source, run_id, created_at
		FROM recommendation_results
		WHERE student_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, studentID).Scan(&res.ID, &res.StudentID, &level, &res.Text, &source, &res.RunID, &res.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecommendationNotFound
		}
		return nil, fmt.Errorf("failed to get latest recommendation for student %d: %w", studentID, err)
	}

	res.RiskLevel, err = risk.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("recommendation %d: %w", res.ID, err)
	}
	res.Source = recommendation.Source(source)
	return &res, nil
}

// CountAll returns the number of stored results.
func (r *RecommendationRepository) CountAll(ctx context.Context) (int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM recommendation_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return n, nil
}

// RiskDistribution counts stored results per risk level.
func (r *RecommendationRepository) RiskDistribution(ctx context.Context) (map[risk.Level]int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	rows, err := r.conn.Query(ctx, `
		SELECT risk_level, COUNT(*) FROM recommendation_results GROUP BY risk_level
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get risk distribution: %w", err)
	}
	defer rows.Close()

	out := make(map[risk.Level]int)
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan risk distribution: %w", err)
		}
		level, err := risk.ParseLevel(label)
		if err != nil {
			continue
		}
		out[level] += n
	}
	return out, rows.Err()
}
