package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

func TestComputeTrend(t *testing.T) {
	cases := []struct {
		name   string
		levels []student.AchievementLevel
		want   Trend
	}{
		{"too few", repeat(student.LevelA, 9), TrendInsufficientData},
		{"stable", repeat(student.LevelB, 10), TrendStable},
		{"improving", append(repeat(student.LevelC, 5), repeat(student.LevelA, 5)...), TrendImproving},
		{"declining", append(repeat(student.LevelA, 5), repeat(student.LevelD, 6)...), TrendDeclining},
		{"small change", append(repeat(student.LevelB, 5), append(repeat(student.LevelB, 4), student.LevelA)...), TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, computeTrend(entries("Matemática", tc.levels...)))
		})
	}
}

func TestComputeIndices(t *testing.T) {
	_, ok := ComputeIndices(&StudentFeatureRecord{})
	assert.False(t, ok)

	r := &StudentFeatureRecord{
		HasSurvey: true,
		Survey: SurveyScores{
			ClassParticipation: 3,
			HelpSeeking:        1,
			Effort:             2,
			ClassEnjoyment:     0,
			SleepHours:         2,
			StressLevel:        3,
			Extracurricular:    0,
			TechUse:            3,
			HasInternet:        1,
		},
		StudyResources: []string{"Libros", "YouTube"},
	}

	idx, ok := ComputeIndices(r)
	assert.True(t, ok)
	assert.Equal(t, 0.5, idx.Engagement) // (1 + 1/3 + 2/3 + 0) / 4
	assert.Equal(t, 0.39, idx.Wellness)  // (2/3 + 0 + 0.5) / 3
	assert.Equal(t, 0.8, idx.Resources)  // (0.4 + 1 + 1) / 3
}

func TestComparePeers(t *testing.T) {
	assert.False(t, ComparePeers(3, nil).Available)

	peers := []float64{1.0, 2.0, 2.5, 3.5}

	top := ComparePeers(3.6, peers)
	assert.True(t, top.Available)
	assert.Equal(t, 100.0, top.PercentileRank)
	assert.Equal(t, PeerAboveAverage, top.Status)
	assert.Equal(t, 4, top.PeerCount)
	assert.Equal(t, 2.25, top.PeerAverage)

	mid := ComparePeers(2.5, peers) // strictly lower: 1.0, 2.0
	assert.Equal(t, 50.0, mid.PercentileRank)
	assert.Equal(t, PeerAverage, mid.Status)

	low := ComparePeers(1.0, peers)
	assert.Equal(t, 0.0, low.PercentileRank)
	assert.Equal(t, PeerBelowAverage, low.Status)
	assert.Equal(t, "Rendimiento por debajo del promedio", low.Status.Description())
}

func TestBuild_CohortAverageUsesLatestPeriodOnly(t *testing.T) {
	older := period(2023, entries("Matemática", repeat(student.LevelA, 4)...))
	latest := period(2024, entries("Matemática", repeat(student.LevelD, 4)...))
	latest.EducationLevel = "Secundaria"
	latest.Entries = append(latest.Entries, student.GradeEntry{Subject: "Arte", Period: "I"})

	r := Build(alice, []student.AcademicPeriod{older, latest}, nil)

	assert.InDelta(t, 20.0/9.0, r.AveragePoints, 1e-9)
	require.True(t, r.HasCohortGrades)
	assert.InDelta(t, 1.0, r.CohortAverage, 1e-9)
	assert.Equal(t, student.Cohort{EducationLevel: "Secundaria", GradeLevel: "3ro", AcademicYear: 2024}, r.Cohort())
}

func TestBuild_NoGradedEntriesInCohort(t *testing.T) {
	latest := period(2024)
	latest.Entries = []student.GradeEntry{{Subject: "Arte", Period: "I"}}

	r := Build(alice, []student.AcademicPeriod{latest}, nil)
	assert.False(t, r.HasCohortGrades)
	assert.False(t, CompareWithCohort(r, []student.PeerAverage{{StudentID: 2, Average: 3}}).Available)
}

func TestCompareWithCohort(t *testing.T) {
	r := &StudentFeatureRecord{StudentID: 1, AveragePoints: 3.9, CohortAverage: 2.5, HasCohortGrades: true}
	peers := []student.PeerAverage{
		{StudentID: 1, Average: 2.5},
		{StudentID: 2, Average: 1.0},
		{StudentID: 3, Average: 2.0},
		{StudentID: 4, Average: 3.5},
		{StudentID: 5, Average: 4.0},
	}

	got := CompareWithCohort(r, peers)
	assert.True(t, got.Available)
	assert.Equal(t, 4, got.PeerCount)
	assert.Equal(t, 50.0, got.PercentileRank)
	assert.Equal(t, PeerAverage, got.Status)
}
