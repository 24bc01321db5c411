package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
)

func gradesOnly(fracA, fracB, fracC, fracD float64, critical ...string) *features.StudentFeatureRecord {
	return &features.StudentFeatureRecord{
		StudentID:        1,
		HasGrades:        true,
		FracA:            fracA,
		FracB:            fracB,
		FracC:            fracC,
		FracD:            fracD,
		CriticalSubjects: append([]string{}, critical...),
	}
}

func surveyOnly(s features.SurveyScores) *features.StudentFeatureRecord {
	return &features.StudentFeatureRecord{
		StudentID:        2,
		HasSurvey:        true,
		Survey:           s,
		CriticalSubjects: []string{},
	}
}

func healthySurvey() features.SurveyScores {
	return features.SurveyScores{
		StudyHours:         3,
		ClassParticipation: 3,
		HelpSeeking:        2,
		Effort:             3,
		ClassEnjoyment:     3,
		TechUse:            2,
		HasInternet:        1,
		SleepHours:         3,
		StressLevel:        1,
	}
}

func TestScore_NoData(t *testing.T) {
	a := Score(&features.StudentFeatureRecord{})

	assert.Equal(t, 0, a.Groups)
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, LevelUnknown, a.Level)
	assert.Empty(t, a.Fired)
}

func TestScore_FailingGradesNoSurvey(t *testing.T) {
	a := Score(gradesOnly(0.1, 0, 0, 0.9, "Matemática"))

	assert.Equal(t, 1, a.Groups)
	assert.Equal(t, 4, a.Score)
	assert.InDelta(t, 0.8, a.Normalized, 1e-9)
	assert.Equal(t, LevelHigh, a.Level)
	assert.True(t, a.HasFired(RuleHighFailureRate))
	assert.True(t, a.HasFired(RuleSomeCriticalSubjects))
	assert.False(t, a.HasFired(RuleHighCRatio))
}

func TestScore_StressedShortStudySurvey(t *testing.T) {
	a := Score(surveyOnly(features.SurveyScores{StudyHours: 1, StressLevel: 3}))

	assert.Equal(t, 1, a.Groups)
	assert.True(t, a.HasFired(RuleInsufficientStudyTime))
	assert.True(t, a.HasFired(RuleHighStress))
	assert.NotEqual(t, LevelLow, a.Level)
	assert.Contains(t, []Level{LevelMedium, LevelHigh}, a.Level)
}

type ruleCase struct {
	name   string
	record *features.StudentFeatureRecord
	rule   string
	points int
}

func surveyWith(mutate func(*features.SurveyScores)) *features.StudentFeatureRecord {
	s := healthySurvey()
	mutate(&s)
	return surveyOnly(s)
}

func TestRules_Individually(t *testing.T) {
	tests := []ruleCase{
		{"high failure rate", gradesOnly(0.5, 0, 0.1, 0.4), RuleHighFailureRate, 3},
		{"high c ratio", gradesOnly(0.1, 0.2, 0.5, 0.2), RuleHighCRatio, 2},
		{"high b ratio", gradesOnly(0.2, 0.6, 0.2, 0), RuleHighBRatio, 1},
		{"many critical subjects", gradesOnly(1, 0, 0, 0, "Arte", "Física", "Historia"), RuleManyCriticalSubjects, 2},
		{"one critical subject", gradesOnly(1, 0, 0, 0, "Arte"), RuleSomeCriticalSubjects, 1},
		{"study time", surveyWith(func(s *features.SurveyScores) { s.StudyHours = 1 }), RuleInsufficientStudyTime, 1},
		{"participation", surveyWith(func(s *features.SurveyScores) { s.ClassParticipation = 0 }), RuleLowParticipation, 1},
		{"help seeking", surveyWith(func(s *features.SurveyScores) { s.HelpSeeking = 1 }), RuleLowHelpSeeking, 1},
		{"effort", surveyWith(func(s *features.SurveyScores) { s.Effort = 1 }), RuleLowEffort, 2},
		{"enjoyment", surveyWith(func(s *features.SurveyScores) { s.ClassEnjoyment = 0 }), RuleLowEnjoyment, 1},
		{"sleep", surveyWith(func(s *features.SurveyScores) { s.SleepHours = 1 }), RuleInsufficientSleep, 1},
		{"stress", surveyWith(func(s *features.SurveyScores) { s.StressLevel = 3 }), RuleHighStress, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Score(tt.record)
			assert.Equal(t, []string{tt.rule}, a.Fired)
			assert.Equal(t, tt.points, a.Score)
		})
	}
}

func TestScore_HealthyStudentIsLow(t *testing.T) {
	r := gradesOnly(0.7, 0.3, 0, 0)
	r.HasSurvey = true
	r.Survey = healthySurvey()

	a := Score(r)
	assert.Equal(t, 2, a.Groups)
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, LevelLow, a.Level)
}

func TestScore_MonotonicInFailureRatio(t *testing.T) {
	base := surveyOnly(features.SurveyScores{StudyHours: 2, ClassParticipation: 1, HelpSeeking: 2, Effort: 2, ClassEnjoyment: 2, SleepHours: 2, StressLevel: 2})
	base.HasGrades = true
	base.FracC = 0.45

	prevScore, prevLevel := -1, LevelUnknown
	for step := 0; step <= 11; step++ {
		r := *base
		r.FracD = float64(step) * 0.05
		a := Score(&r)

		require.GreaterOrEqual(t, a.Score, prevScore, "FracD=%.2f", r.FracD)
		require.GreaterOrEqual(t, a.Level, prevLevel, "FracD=%.2f", r.FracD)
		prevScore, prevLevel = a.Score, a.Level
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, LevelUnknown, Classify(0.9, 0))
	assert.Equal(t, LevelHigh, Classify(0.61, 1))
	assert.Equal(t, LevelMedium, Classify(0.6, 1))
	assert.Equal(t, LevelMedium, Classify(0.31, 2))
	assert.Equal(t, LevelLow, Classify(0.3, 2))
	assert.Equal(t, LevelLow, Classify(0, 2))
}

func TestParseLevel(t *testing.T) {
	for _, l := range append(AllLevels, LevelError) {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseLevel("muy alto")
	assert.Error(t, err)
}
