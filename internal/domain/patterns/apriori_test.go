package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
)

func achiever(id int64) *features.StudentFeatureRecord {
	return &features.StudentFeatureRecord{
		StudentID: id,
		HasGrades: true,
		HasSurvey: true,
		FracA:     0.8,
		FracB:     0.2,
		Survey:    features.SurveyScores{StudyHours: 3, SleepHours: 3},
	}
}

func struggler(id int64) *features.StudentFeatureRecord {
	return &features.StudentFeatureRecord{
		StudentID: id,
		HasGrades: true,
		HasSurvey: true,
		FracC:     0.5,
		FracD:     0.5,
		Survey:    features.SurveyScores{StudyHours: 1, StressLevel: 3, SleepHours: 1},
	}
}

func fivePeople() []*features.StudentFeatureRecord {
	return []*features.StudentFeatureRecord{
		achiever(1), achiever(2), achiever(3), struggler(4), struggler(5),
	}
}

func TestTraits(t *testing.T) {
	assert.Equal(t, NewTraitSet(TraitHighAchievement, TraitStudiesALot), Traits(achiever(1)))
	assert.Equal(t,
		NewTraitSet(TraitLowAchievement, TraitStudiesLittle, TraitHighStress, TraitLittleSleep),
		Traits(struggler(1)))

	gradesOnly := &features.StudentFeatureRecord{HasGrades: true, FracB: 1}
	assert.Equal(t, NewTraitSet(TraitMidAchievement), Traits(gradesOnly))

	assert.Empty(t, Traits(&features.StudentFeatureRecord{}))
}

func TestMine_SharedTraitsProduceRule(t *testing.T) {
	m := NewMiner(MinerConfig{MinTransactions: 5})
	rules := m.Mine(fivePeople())
	require.NotEmpty(t, rules)

	var found *Rule
	for i := range rules {
		r := rules[i]
		if r.Antecedent.Key() == string(TraitStudiesALot) && r.Consequent.Contains(TraitHighAchievement) {
			found = &rules[i]
			break
		}
	}
	require.NotNil(t, found)
	assert.GreaterOrEqual(t, found.Support, 0.1)
	assert.InDelta(t, 0.6, found.Support, 1e-9)
	assert.InDelta(t, 1.0, found.Confidence, 1e-9)
	assert.InDelta(t, 1.6667, found.Lift, 1e-4)
}

func TestMine_TooFewTransactions(t *testing.T) {
	m := NewMiner(DefaultMinerConfig())
	rules := m.Mine(fivePeople())
	assert.NotNil(t, rules)
	assert.Empty(t, rules)
}

func TestTransactions_OnePerStudent(t *testing.T) {
	records := append(fivePeople(), &features.StudentFeatureRecord{StudentID: 9}, nil)
	tx := Transactions(records)
	require.Len(t, tx, 6)
	assert.NotNil(t, tx[5])
	assert.Empty(t, tx[5])
}

func TestMine_StudentsWithoutDataCountInPopulation(t *testing.T) {
	records := fivePeople()
	for id := int64(6); id <= 8; id++ {
		records = append(records, &features.StudentFeatureRecord{StudentID: id})
	}

	rules := NewMiner(DefaultMinerConfig()).Mine(records)
	require.NotEmpty(t, rules)

	var found *Rule
	for i := range rules {
		if rules[i].Antecedent.Key() == string(TraitStudiesALot) && rules[i].Consequent.Contains(TraitHighAchievement) {
			found = &rules[i]
			break
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 3.0/8.0, found.Support, 1e-4)
	assert.InDelta(t, 1.0, found.Confidence, 1e-9)
}

func TestMine_EmptyTraitSetsAloneGiveNoRules(t *testing.T) {
	var records []*features.StudentFeatureRecord
	for id := int64(1); id <= 7; id++ {
		records = append(records, &features.StudentFeatureRecord{StudentID: id})
	}
	rules := NewMiner(DefaultMinerConfig()).Mine(records)
	assert.NotNil(t, rules)
	assert.Empty(t, rules)
}

func TestMine_NoFrequentItemsets(t *testing.T) {
	m := NewMiner(MinerConfig{MinSupport: 0.9, MinTransactions: 2})
	tx := []TraitSet{
		NewTraitSet(TraitHighStress),
		NewTraitSet(TraitHighEffort),
		NewTraitSet(TraitLittleSleep),
	}
	assert.Empty(t, m.MineTransactions(tx))
}

func TestMine_DeterministicOrder(t *testing.T) {
	m := NewMiner(MinerConfig{MinTransactions: 5})
	first := m.Mine(fivePeople())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Mine(fivePeople()))
	}
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Confidence, first[i].Confidence)
	}
}

func TestMine_RespectsConfidence(t *testing.T) {
	m := NewMiner(MinerConfig{MinTransactions: 5, MinConfidence: 0.5})
	for _, r := range m.Mine(fivePeople()) {
		assert.GreaterOrEqual(t, r.Confidence, 0.5)
		assert.False(t, r.Antecedent.Intersects(r.Consequent))
	}
}

func TestTraitSet(t *testing.T) {
	s := NewTraitSet(TraitHighStress, TraitHighEffort, TraitHighStress)
	assert.Len(t, s, 2)
	assert.Equal(t, "Alto_Esfuerzo,Alto_Estres", s.Key())
	assert.True(t, s.Intersects(NewTraitSet(TraitHighStress)))
	assert.False(t, s.Intersects(NewTraitSet(TraitLittleSleep)))
}
