package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT INSIGHTS QUERY
// Признаки студента с производными показателями: динамика, индексы опроса,
// сравнение с ровесниками и сработавшие правила эвристики.
// ══════════════════════════════════════════════════════════════════════════════

// RecordExtractor строит запись признаков по ID студента.
type RecordExtractor interface {
	Extract(ctx context.Context, studentID int64) (*features.StudentFeatureRecord, error)
}

// GradeSummaryDTO - распределение оценок.
type GradeSummaryDTO struct {
	Total            int      `json:"total_grades"`
	FracA            float64  `json:"frac_a"`
	FracB            float64  `json:"frac_b"`
	FracC            float64  `json:"frac_c"`
	FracD            float64  `json:"frac_d"`
	FracUngraded     float64  `json:"frac_ungraded"`
	AveragePoints    float64  `json:"average_points"`
	CriticalSubjects []string `json:"critical_subjects"`
	Strengths        []string `json:"strengths"`
	Trend            string   `json:"trend"`
}

// RiskDTO - результат эвристики и выбранный уровень.
type RiskDTO struct {
	Level      string   `json:"level"`
	Strategy   string   `json:"strategy"`
	Score      int      `json:"heuristic_score"`
	Normalized float64  `json:"heuristic_normalized"`
	Factors    []string `json:"factors"`
}

// StudentInsightsDTO - ответ запроса.
type StudentInsightsDTO struct {
	StudentID      int64                   `json:"student_id"`
	FullName       string                  `json:"full_name"`
	GradeLevel     string                  `json:"grade_level,omitempty"`
	AcademicYear   int                     `json:"academic_year,omitempty"`
	HasGrades      bool                    `json:"has_grades"`
	HasSurvey      bool                    `json:"has_survey"`
	Grades         *GradeSummaryDTO        `json:"grades,omitempty"`
	Survey         *features.SurveyScores  `json:"survey,omitempty"`
	Indices        *features.Indices       `json:"indices,omitempty"`
	Peers          features.PeerComparison `json:"peers"`
	Risk           RiskDTO                 `json:"risk"`
	StudyResources []string                `json:"study_resources"`
}

// GetStudentInsightsHandler выполняет запрос.
type GetStudentInsightsHandler struct {
	extractor RecordExtractor
	peers     student.PeerRepository
	estimator *risk.Estimator
	log       *logger.Logger
}

// NewGetStudentInsightsHandler создаёт обработчик. peers может быть nil.
func NewGetStudentInsightsHandler(extractor RecordExtractor, peers student.PeerRepository, estimator *risk.Estimator, log *logger.Logger) *GetStudentInsightsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetStudentInsightsHandler{
		extractor: extractor,
		peers:     peers,
		estimator: estimator,
		log:       log.With(logger.Component("student_insights")),
	}
}

// Handle выполняет запрос.
func (h *GetStudentInsightsHandler) Handle(ctx context.Context, studentID int64) (*StudentInsightsDTO, error) {
	if studentID <= 0 {
		return nil, shared.ErrInvalidStudentID
	}
	rec, err := h.extractor.Extract(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}

	assessment := risk.Score(rec)
	level, strategy := h.estimator.Estimate(rec)

	dto := &StudentInsightsDTO{
		StudentID:    rec.StudentID,
		FullName:     rec.FullName,
		GradeLevel:   rec.GradeLevel,
		AcademicYear: rec.AcademicYear,
		HasGrades:    rec.HasGrades,
		HasSurvey:    rec.HasSurvey,
		Risk: RiskDTO{
			Level:      level.String(),
			Strategy:   string(strategy),
			Score:      assessment.Score,
			Normalized: shared.Round2(assessment.Normalized),
			Factors:    assessment.Fired,
		},
		StudyResources: rec.StudyResources,
	}

	if rec.HasGrades {
		dto.Grades = &GradeSummaryDTO{
			Total:            rec.TotalGrades,
			FracA:            shared.Round2(rec.FracA),
			FracB:            shared.Round2(rec.FracB),
			FracC:            shared.Round2(rec.FracC),
			FracD:            shared.Round2(rec.FracD),
			FracUngraded:     shared.Round2(rec.FracUngraded),
			AveragePoints:    shared.Round2(rec.AveragePoints),
			CriticalSubjects: rec.CriticalSubjects,
			Strengths:        rec.Strengths,
			Trend:            string(rec.Trend),
		}
		dto.Peers = h.comparePeers(ctx, rec)
	}
	if rec.HasSurvey {
		survey := rec.Survey
		dto.Survey = &survey
	}
	if idx, ok := features.ComputeIndices(rec); ok {
		dto.Indices = &idx
	}

	return dto, nil
}

func (h *GetStudentInsightsHandler) comparePeers(ctx context.Context, rec *features.StudentFeatureRecord) features.PeerComparison {
	if h.peers == nil || !rec.HasCohortGrades {
		return features.PeerComparison{}
	}
	peers, err := h.peers.GetPeerAverages(ctx, rec.Cohort())
	if err != nil {
		h.log.Warn("failed to load peer averages", logger.StudentID(rec.StudentID), logger.Err(err))
		return features.PeerComparison{}
	}
	return features.CompareWithCohort(rec, peers)
}
