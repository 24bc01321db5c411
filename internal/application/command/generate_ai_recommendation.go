package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE AI RECOMMENDATION
// Строит подсказку по всем данным студента и просит генеративную модель
// переписать рекомендацию. Любой сбой модели оставляет детерминированный текст.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateAICommand - параметры запроса.
type GenerateAICommand struct {
	StudentID int64
}

// ProseGenerator переписывает подсказку в текст рекомендации.
type ProseGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DataSourcesDTO описывает, какие данные вошли в подсказку.
type DataSourcesDTO struct {
	HasGrades        bool `json:"has_grades"`
	HasSurvey        bool `json:"has_survey"`
	TotalGrades      int  `json:"total_grades"`
	SurveyResponses  int  `json:"survey_responses"`
	SubjectsAnalyzed int  `json:"subjects_analyzed"`
}

// AIRecommendationDTO - результат запроса.
type AIRecommendationDTO struct {
	RecommendationDTO
	UsedFallback bool           `json:"used_fallback"`
	DataSources  DataSourcesDTO `json:"data_sources"`
}

// GenerateAIHandler выполняет GenerateAICommand.
type GenerateAIHandler struct {
	extractor RecordExtractor
	peers     student.PeerRepository
	estimator *risk.Estimator
	results   recommendation.Repository
	prose     ProseGenerator
	flags     FeatureGate
	publisher shared.EventPublisher
	log       *logger.Logger
}

// GenerateAIDeps - зависимости обработчика. Prose и Peers могут быть nil.
type GenerateAIDeps struct {
	Extractor RecordExtractor
	Peers     student.PeerRepository
	Estimator *risk.Estimator
	Results   recommendation.Repository
	Prose     ProseGenerator
	Flags     FeatureGate
	Publisher shared.EventPublisher
	Logger    *logger.Logger
}

// NewGenerateAIHandler создаёт обработчик.
func NewGenerateAIHandler(d GenerateAIDeps) *GenerateAIHandler {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Flags == nil {
		d.Flags = config.LoadFeatureFlags("")
	}
	return &GenerateAIHandler{
		extractor: d.Extractor,
		peers:     d.Peers,
		estimator: d.Estimator,
		results:   d.Results,
		prose:     d.Prose,
		flags:     d.Flags,
		publisher: d.Publisher,
		log:       d.Logger.With(logger.Component("ai_recommendation")),
	}
}

// Handle строит и сохраняет рекомендацию.
func (h *GenerateAIHandler) Handle(ctx context.Context, cmd GenerateAICommand) (*AIRecommendationDTO, error) {
	if cmd.StudentID <= 0 {
		return nil, shared.ErrInvalidStudentID
	}

	rec, err := h.extractor.Extract(ctx, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	if !rec.HasData() {
		return nil, shared.ErrNoStudentData
	}

	log := h.log.With(logger.StudentID(cmd.StudentID))

	assessment := risk.Score(rec)
	level, _ := h.estimator.Estimate(rec)
	deterministic := recommendation.Compose(rec, level, nil)

	prompt := recommendation.BuildPrompt(recommendation.PromptInput{
		Record:     rec,
		Level:      level,
		Assessment: assessment,
		Peers:      h.comparePeers(ctx, rec, log),
	})

	text, source := deterministic, recommendation.SourceRules
	usedFallback := true
	if h.proseEnabled(rec) {
		out, err := h.prose.Generate(ctx, prompt)
		switch {
		case err != nil:
			log.Warn("prose generation failed, using deterministic text", logger.Err(err))
		case strings.TrimSpace(out) == "":
			log.Warn("prose generation returned empty text, using deterministic text")
		default:
			text, source, usedFallback = strings.TrimSpace(out), recommendation.SourceAI, false
		}
	}

	result := recommendation.NewResult(cmd.StudentID, level, text, source, "")
	if err := h.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("generate_ai: save result: %w", err)
	}
	if err := h.publisher.Publish(shared.NewRecommendationGeneratedEvent(
		cmd.StudentID, result.ID, level.String(), string(source), "")); err != nil {
		log.Warn("failed to publish event", logger.Err(err))
	}

	return &AIRecommendationDTO{
		RecommendationDTO: *NewRecommendationDTO(result, true),
		UsedFallback:      usedFallback,
		DataSources: DataSourcesDTO{
			HasGrades:        rec.HasGrades,
			HasSurvey:        rec.HasSurvey,
			TotalGrades:      rec.TotalGrades,
			SurveyResponses:  rec.SurveyResponses,
			SubjectsAnalyzed: len(rec.Subjects),
		},
	}, nil
}

func (h *GenerateAIHandler) proseEnabled(rec *features.StudentFeatureRecord) bool {
	if h.prose == nil {
		return false
	}
	return h.flags.IsEnabled(config.FeatureProseRewrite, &config.FeatureContext{
		StudentID:  rec.StudentID,
		GradeLevel: rec.GradeLevel,
	})
}

// comparePeers сравнивает средний балл с ровесниками той же когорты.
func (h *GenerateAIHandler) comparePeers(ctx context.Context, rec *features.StudentFeatureRecord, log *logger.Logger) features.PeerComparison {
	if h.peers == nil || !rec.HasCohortGrades {
		return features.PeerComparison{}
	}
	peers, err := h.peers.GetPeerAverages(ctx, rec.Cohort())
	if err != nil {
		log.Warn("failed to load peer averages", logger.Err(err))
		return features.PeerComparison{}
	}
	return features.CompareWithCohort(rec, peers)
}
