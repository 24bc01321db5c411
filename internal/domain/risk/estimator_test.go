package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

// population builds n records cycling through clearly separated profiles.
func population(n int) []*features.StudentFeatureRecord {
	out := make([]*features.StudentFeatureRecord, 0, n)
	for i := 0; i < n; i++ {
		var r *features.StudentFeatureRecord
		switch i % 3 {
		case 0:
			r = gradesOnly(0.8, 0.2, 0, 0)
			r.HasSurvey = true
			r.Survey = healthySurvey()
		case 1:
			r = gradesOnly(0.1, 0.2, 0.5, 0.2, "Arte")
			r.HasSurvey = true
			r.Survey = healthySurvey()
			r.Survey.Effort = 1
		default:
			r = gradesOnly(0, 0.1, 0.1, 0.8, "Arte", "Física", "Historia")
			r.HasSurvey = true
			r.Survey = features.SurveyScores{StudyHours: 1, StressLevel: 3}
		}
		r.StudentID = int64(i + 1)
		r.Age = 12 + i%5
		out = append(out, r)
	}
	return out
}

func TestEstimator_NoData(t *testing.T) {
	e := NewEstimator(DefaultEstimatorConfig())
	_, err := e.Train(population(30))
	require.NoError(t, err)

	level, strategy := e.Estimate(&features.StudentFeatureRecord{StudentID: 99})
	assert.Equal(t, LevelUnknown, level)
	assert.Equal(t, StrategyNoData, strategy)
}

func TestEstimator_HeuristicWithoutModel(t *testing.T) {
	e := NewEstimator(DefaultEstimatorConfig())
	require.False(t, e.Trained())

	r := gradesOnly(0.1, 0, 0, 0.9, "Matemática")
	level, strategy := e.Estimate(r)
	assert.Equal(t, LevelHigh, level)
	assert.Equal(t, StrategyHeuristic, strategy)

	_, err := e.Predict(r)
	assert.ErrorIs(t, err, shared.ErrNoModel)
	assert.ErrorIs(t, err, shared.ErrEstimatorUnavailable)
}

func TestEstimator_TooFewRecords(t *testing.T) {
	e := NewEstimator(DefaultEstimatorConfig())
	records := population(9)
	records = append(records, &features.StudentFeatureRecord{}, nil)

	report, err := e.Train(records)
	require.ErrorIs(t, err, shared.ErrNotEnoughSamples)
	assert.Equal(t, 9, report.Samples)
	assert.False(t, e.Trained())

	_, strategy := e.Estimate(records[0])
	assert.Equal(t, StrategyHeuristic, strategy)
}

func TestEstimator_TrainAndPredict(t *testing.T) {
	e := NewEstimator(DefaultEstimatorConfig())

	report, err := e.Train(population(30))
	require.NoError(t, err)
	require.True(t, e.Trained())

	assert.Equal(t, 30, report.Samples)
	assert.Equal(t, 6, report.TestSize)
	assert.Equal(t, 24, report.TrainSize)
	assert.GreaterOrEqual(t, report.Accuracy, 0.0)
	assert.LessOrEqual(t, report.Accuracy, 1.0)
	assert.Equal(t, 10, report.ClassCounts[LevelLow.String()])

	r := population(3)[2]
	level, strategy := e.Estimate(r)
	assert.Equal(t, StrategyLearned, strategy)
	assert.Contains(t, []Level{LevelLow, LevelMedium, LevelHigh}, level)

	e.Reset()
	assert.False(t, e.Trained())
}

func TestEstimator_Deterministic(t *testing.T) {
	records := population(40)
	a := NewEstimator(DefaultEstimatorConfig())
	b := NewEstimator(DefaultEstimatorConfig())
	_, err := a.Train(records)
	require.NoError(t, err)
	_, err = b.Train(records)
	require.NoError(t, err)

	for _, r := range records {
		la, errA := a.Predict(r)
		lb, errB := b.Predict(r)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, la, lb)
	}
}

func TestEstimator_ShapeMismatch(t *testing.T) {
	e := NewEstimator(DefaultEstimatorConfig())
	_, err := e.Train(population(20))
	require.NoError(t, err)

	_, err = e.predictVector([]float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrFeatureShape))
	assert.True(t, errors.Is(err, shared.ErrEstimatorUnavailable))
}

func TestForest_SeparableData(t *testing.T) {
	X := [][]float64{}
	y := []int{}
	for i := 0; i < 40; i++ {
		v := float64(i)
		X = append(X, []float64{v})
		if v < 20 {
			y = append(y, 1)
		} else {
			y = append(y, 3)
		}
	}

	f := NewForest(ForestConfig{Trees: 15})
	require.NoError(t, f.Fit(X, y))
	assert.Equal(t, 1, f.NumFeatures())

	low, err := f.Predict([]float64{2})
	require.NoError(t, err)
	assert.Equal(t, 1, low)

	high, err := f.Predict([]float64{38})
	require.NoError(t, err)
	assert.Equal(t, 3, high)
}

func TestForest_FitRejectsRaggedInput(t *testing.T) {
	f := NewForest(DefaultForestConfig())
	assert.ErrorIs(t, f.Fit([][]float64{{1, 2}, {1}}, []int{0, 1}), shared.ErrFeatureShape)
	assert.ErrorIs(t, f.Fit(nil, nil), shared.ErrFeatureShape)
	assert.False(t, f.Fitted())
}

func TestStratifiedSplit(t *testing.T) {
	y := []int{1, 1, 1, 1, 1, 2, 3, 3}
	train, test := stratifiedSplit(y, 0.2, 42)

	assert.Len(t, test, 1)
	assert.Len(t, train, 7)
	assert.Equal(t, 1, y[test[0]])
}

func TestFeatureVectorMatchesSchema(t *testing.T) {
	r := population(1)[0]
	v := FeatureVector(r)
	require.Len(t, v, len(FeatureNames))
	assert.Equal(t, float64(r.Age), v[0])
	assert.Equal(t, r.FracA, v[1])
	assert.Equal(t, float64(r.Survey.StressLevel), v[len(v)-1])
}
