package recommendation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/patterns"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
)

func strugglingRecord() *features.StudentFeatureRecord {
	return &features.StudentFeatureRecord{
		StudentID:        7,
		FullName:         "Luis Mamani",
		HasGrades:        true,
		HasSurvey:        true,
		FracA:            0.1,
		FracD:            0.6,
		FracC:            0.3,
		CriticalSubjects: []string{"Física", "Matemática"},
		Strengths:        []string{},
		Survey: features.SurveyScores{
			StudyHours:  1,
			TechUse:     1,
			HasInternet: 1,
			SleepHours:  1,
			StressLevel: 3,
		},
	}
}

func helpfulRules() []patterns.Rule {
	return []patterns.Rule{
		{
			Antecedent: patterns.NewTraitSet(patterns.TraitStudiesALot),
			Consequent: patterns.NewTraitSet(patterns.TraitHighAchievement),
			Support:    0.4, Confidence: 0.9, Lift: 1.5,
		},
		{
			Antecedent: patterns.NewTraitSet(patterns.TraitStudiesLittle, patterns.TraitHighEffort),
			Consequent: patterns.NewTraitSet(patterns.TraitHighAchievement),
			Support:    0.2, Confidence: 0.8, Lift: 1.2,
		},
		{
			Antecedent: patterns.NewTraitSet(patterns.TraitHighStress),
			Consequent: patterns.NewTraitSet(patterns.TraitLittleSleep),
			Support:    0.3, Confidence: 0.7, Lift: 1.1,
		},
	}
}

func TestCompose_Header(t *testing.T) {
	text := Compose(strugglingRecord(), risk.LevelHigh, nil)
	assert.True(t, strings.HasPrefix(text, "NIVEL DE RIESGO: Alto\n\nRECOMENDACIONES PERSONALIZADAS:"))
}

func TestCompose_AllSections(t *testing.T) {
	text := Compose(strugglingRecord(), risk.LevelHigh, nil)

	for _, want := range []string{
		"📚 RENDIMIENTO ACADÉMICO:",
		"- Materias que requieren atención inmediata: Física, Matemática. Se recomienda tutorías específicas en estas áreas.",
		"⏰ HÁBITOS DE ESTUDIO:",
		"🙋 PARTICIPACIÓN:",
		"😴 SALUD:",
		"- El alto nivel de estrés detectado puede afectar el aprendizaje.",
		"💻 TECNOLOGÍA:",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, InsufficientDataMarker)
	assert.NotContains(t, text, "PATRONES SIMILARES")
}

func TestCompose_SectionOrder(t *testing.T) {
	text := Compose(strugglingRecord(), risk.LevelHigh, helpfulRules())

	order := []string{"RENDIMIENTO ACADÉMICO", "Materias que requieren", "HÁBITOS DE ESTUDIO",
		"PARTICIPACIÓN", "SALUD", "alto nivel de estrés", "TECNOLOGÍA", "PATRONES SIMILARES"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(text, marker)
		require.Greater(t, idx, last, marker)
		last = idx
	}
}

func TestCompose_NoData(t *testing.T) {
	r := &features.StudentFeatureRecord{StudentID: 3, CriticalSubjects: []string{}, Strengths: []string{}}
	text := Compose(r, risk.LevelUnknown, helpfulRules())

	assert.True(t, strings.HasPrefix(text, "NIVEL DE RIESGO: Desconocido"))
	assert.Contains(t, text, "⚠️ DATOS INSUFICIENTES:")
	assert.NotContains(t, text, "PATRONES SIMILARES")
}

func TestCompose_Pure(t *testing.T) {
	r := strugglingRecord()
	rules := helpfulRules()
	assert.Equal(t, Compose(r, risk.LevelMedium, rules), Compose(r, risk.LevelMedium, rules))
}

func TestCompose_HealthySurveyHasNoHabitSections(t *testing.T) {
	r := &features.StudentFeatureRecord{
		HasSurvey: true,
		Survey: features.SurveyScores{
			StudyHours: 3, ClassParticipation: 2, HelpSeeking: 2, TechUse: 3,
			HasInternet: 1, SleepHours: 3, StressLevel: 2,
		},
	}
	text := Compose(r, risk.LevelLow, nil)
	assert.Equal(t, "NIVEL DE RIESGO: Bajo\n\nRECOMENDACIONES PERSONALIZADAS:", text)
}

func TestCompose_TechnologyNeedsInternet(t *testing.T) {
	r := strugglingRecord()
	r.Survey.HasInternet = 0
	assert.NotContains(t, Compose(r, risk.LevelHigh, nil), "TECNOLOGÍA")
}

func TestPatternHints(t *testing.T) {
	hints := PatternHints(strugglingRecord(), helpfulRules())

	require.Len(t, hints, 1)
	assert.Equal(t, "- Estudiantes con características similares mejoran cuando: Alto_Esfuerzo, Estudia_Poco", hints[0])
}

func TestPatternHints_Limit(t *testing.T) {
	var rules []patterns.Rule
	for i := 0; i < 5; i++ {
		rules = append(rules, patterns.Rule{
			Antecedent: patterns.NewTraitSet(patterns.TraitHighStress),
			Consequent: patterns.NewTraitSet(patterns.TraitHighAchievement),
		})
	}
	assert.Len(t, PatternHints(strugglingRecord(), rules), MaxPatternHints)
}

func TestResultFailure(t *testing.T) {
	r := NewFailure(5, "run-1")
	assert.True(t, r.IsFailure())
	assert.Equal(t, FailureText, r.Text)
	assert.Equal(t, risk.LevelError, r.RiskLevel)
}
