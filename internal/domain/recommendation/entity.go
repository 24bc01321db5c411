// Package recommendation содержит результат оценки студента и сборку
// текста рекомендации.
//
// Результаты только добавляются: история оценок сохраняется, актуальным
// считается результат с наибольшим ID.
package recommendation

import (
	"time"

	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
)

// Source - происхождение текста рекомендации.
type Source string

const (
	// SourceRules - детерминированный текст из правил.
	SourceRules Source = "rules"

	// SourceAI - текст, переписанный генеративной моделью.
	SourceAI Source = "ai"
)

// FailureText сохраняется вместо рекомендации, если студента не удалось обработать.
const FailureText = "No se pudo generar recomendación"

// Result - сохранённая рекомендация.
type Result struct {
	ID        int64
	StudentID int64
	RiskLevel risk.Level
	Text      string
	Source    Source
	RunID     string
	CreatedAt time.Time
}

// NewResult создаёт несохранённый результат.
func NewResult(studentID int64, level risk.Level, text string, source Source, runID string) *Result {
	return &Result{
		StudentID: studentID,
		RiskLevel: level,
		Text:      text,
		Source:    source,
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
	}
}

// NewFailure создаёт маркер ошибки обработки студента.
func NewFailure(studentID int64, runID string) *Result {
	return NewResult(studentID, risk.LevelError, FailureText, SourceRules, runID)
}

// IsFailure сообщает, что результат - маркер ошибки.
func (r *Result) IsFailure() bool {
	return r.RiskLevel == risk.LevelError
}
