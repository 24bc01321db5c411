package features

import (
	"math"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERFORMANCE TREND
// ══════════════════════════════════════════════════════════════════════════════

// Trend - динамика успеваемости.
type Trend string

const (
	TrendImproving        Trend = "improving"
	TrendDeclining        Trend = "declining"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

const (
	// MinGradesForTrend - минимум оценок для расчёта динамики.
	MinGradesForTrend = 10
	trendThreshold    = 0.3
)

// Label возвращает испанскую подпись для текста подсказки.
func (t Trend) Label() string {
	switch t {
	case TrendImproving:
		return "en mejora"
	case TrendDeclining:
		return "en descenso"
	case TrendStable:
		return "estable"
	default:
		return "datos insuficientes"
	}
}

// computeTrend сравнивает средний балл первой и второй половины оценок.
func computeTrend(entries []student.GradeEntry) Trend {
	if len(entries) < MinGradesForTrend {
		return TrendInsufficientData
	}
	mid := len(entries) / 2
	diff := averagePoints(entries[mid:]) - averagePoints(entries[:mid])
	switch {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func averagePoints(entries []student.GradeEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.EffectiveLevel().Points()
	}
	return float64(sum) / float64(len(entries))
}

// ══════════════════════════════════════════════════════════════════════════════
// INDICES
// ══════════════════════════════════════════════════════════════════════════════

// Indices - сводные показатели опроса в диапазоне 0..1, округлённые до сотых.
type Indices struct {
	Engagement float64 `json:"engagement_index"`
	Wellness   float64 `json:"wellness_index"`
	Resources  float64 `json:"resource_utilization_index"`
}

const maxCountedResources = 5

// ComputeIndices считает индексы вовлечённости, благополучия и использования ресурсов.
// Без опроса возвращает ok=false.
func ComputeIndices(r *StudentFeatureRecord) (Indices, bool) {
	if !r.HasSurvey {
		return Indices{}, false
	}
	s := r.Survey
	unit := func(v int) float64 { return shared.Ordinal(v).Unit() }

	engagement := shared.Mean(
		unit(s.ClassParticipation),
		unit(s.HelpSeeking),
		unit(s.Effort),
		unit(s.ClassEnjoyment),
	)

	extracurricular := 0.5
	if s.Extracurricular == 1 {
		extracurricular = 1
	}
	wellness := shared.Mean(
		unit(s.SleepHours),
		unit(int(shared.OrdinalMax)-s.StressLevel),
		extracurricular,
	)

	internet := 0.0
	if s.HasInternet == 1 {
		internet = 1
	}
	resources := shared.Mean(
		math.Min(float64(len(r.StudyResources))/maxCountedResources, 1),
		unit(s.TechUse),
		internet,
	)

	return Indices{
		Engagement: shared.Round2(engagement),
		Wellness:   shared.Round2(wellness),
		Resources:  shared.Round2(resources),
	}, true
}

// ══════════════════════════════════════════════════════════════════════════════
// PEER COMPARISON
// ══════════════════════════════════════════════════════════════════════════════

// PeerStatus - положение студента относительно ровесников.
type PeerStatus string

const (
	PeerAboveAverage PeerStatus = "above_average"
	PeerAverage      PeerStatus = "average"
	PeerBelowAverage PeerStatus = "below_average"
)

// Description возвращает испанское описание статуса.
func (s PeerStatus) Description() string {
	switch s {
	case PeerAboveAverage:
		return "Rendimiento superior al promedio"
	case PeerAverage:
		return "Rendimiento promedio"
	default:
		return "Rendimiento por debajo del promedio"
	}
}

// PeerComparison - результат сравнения с ровесниками.
type PeerComparison struct {
	Available      bool       `json:"comparison_available"`
	PeerCount      int        `json:"peer_count"`
	PeerAverage    float64    `json:"peer_average"`
	PercentileRank float64    `json:"percentile_rank"`
	Status         PeerStatus `json:"status,omitempty"`
}

// ComparePeers считает процент ровесников со строго меньшим средним баллом.
// peerAverages не должны включать самого студента.
func ComparePeers(studentAverage float64, peerAverages []float64) PeerComparison {
	if len(peerAverages) == 0 {
		return PeerComparison{}
	}

	lower := 0
	for _, avg := range peerAverages {
		if avg < studentAverage {
			lower++
		}
	}
	percentile := math.Round(float64(lower)/float64(len(peerAverages))*1000) / 10

	status := PeerBelowAverage
	switch {
	case percentile >= 75:
		status = PeerAboveAverage
	case percentile >= 25:
		status = PeerAverage
	}

	return PeerComparison{
		Available:      true,
		PeerCount:      len(peerAverages),
		PeerAverage:    shared.Round2(shared.Mean(peerAverages...)),
		PercentileRank: percentile,
		Status:         status,
	}
}

// CompareWithCohort сравнивает средний балл студента в его когорте со
// средними ровесников той же когорты. Сам студент из peers исключается.
func CompareWithCohort(r *StudentFeatureRecord, peers []student.PeerAverage) PeerComparison {
	if !r.HasCohortGrades {
		return PeerComparison{}
	}
	averages := make([]float64, 0, len(peers))
	for _, p := range peers {
		if p.StudentID != r.StudentID {
			averages = append(averages, p.Average)
		}
	}
	return ComparePeers(r.CohortAverage, averages)
}
