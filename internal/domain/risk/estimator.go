package risk

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEATURE SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

// FeatureNames - фиксированная схема вектора признаков для леса.
var FeatureNames = []string{
	"age",
	"frac_a", "frac_b", "frac_c", "frac_d",
	"study_hours", "class_participation", "help_seeking", "class_enjoyment",
	"effort", "tech_use", "has_internet", "extracurricular",
	"sleep_hours", "stress_level",
}

// FeatureVector строит вектор по схеме FeatureNames.
// Отсутствующий опрос даёт нули в соответствующих позициях.
func FeatureVector(r *features.StudentFeatureRecord) []float64 {
	s := r.Survey
	return []float64{
		float64(r.Age),
		r.FracA, r.FracB, r.FracC, r.FracD,
		float64(s.StudyHours), float64(s.ClassParticipation), float64(s.HelpSeeking), float64(s.ClassEnjoyment),
		float64(s.Effort), float64(s.TechUse), float64(s.HasInternet), float64(s.Extracurricular),
		float64(s.SleepHours), float64(s.StressLevel),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ESTIMATOR
// ══════════════════════════════════════════════════════════════════════════════

// Strategy - каким способом получен уровень риска.
type Strategy string

const (
	StrategyNoData    Strategy = "no_data"
	StrategyHeuristic Strategy = "heuristic"
	StrategyLearned   Strategy = "learned"
)

// EstimatorConfig - параметры обучения.
type EstimatorConfig struct {
	MinTrainingRecords int
	HoldoutRatio       float64
	Forest             ForestConfig
}

// DefaultEstimatorConfig возвращает параметры по умолчанию.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MinTrainingRecords: 10,
		HoldoutRatio:       0.2,
		Forest:             DefaultForestConfig(),
	}
}

// TrainingReport описывает результат обучения.
type TrainingReport struct {
	Samples     int            `json:"samples"`
	TrainSize   int            `json:"train_size"`
	TestSize    int            `json:"test_size"`
	Accuracy    float64        `json:"accuracy"`
	ClassCounts map[string]int `json:"class_counts"`
}

// Estimator выбирает стратегию по полноте данных.
// Безопасен для конкурентного использования: обучение в пайплайне не мешает
// запросам по одному студенту.
type Estimator struct {
	mu     sync.RWMutex
	config EstimatorConfig
	forest *Forest
}

// NewEstimator создаёт оценщик без модели.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	def := DefaultEstimatorConfig()
	if cfg.MinTrainingRecords <= 0 {
		cfg.MinTrainingRecords = def.MinTrainingRecords
	}
	if cfg.HoldoutRatio < 0 || cfg.HoldoutRatio >= 1 {
		cfg.HoldoutRatio = def.HoldoutRatio
	}
	return &Estimator{config: cfg}
}

// Trained сообщает, есть ли обученная модель.
func (e *Estimator) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.forest != nil
}

// Reset удаляет модель.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.forest = nil
	e.mu.Unlock()
}

// Train обучает лес на записях с данными, размеченных эвристикой.
// Если таких записей меньше MinTrainingRecords, модель сбрасывается и
// возвращается ErrNotEnoughSamples.
func (e *Estimator) Train(records []*features.StudentFeatureRecord) (TrainingReport, error) {
	var X [][]float64
	var y []int
	report := TrainingReport{ClassCounts: make(map[string]int)}

	for _, r := range records {
		if r == nil || !r.HasData() {
			continue
		}
		label := Score(r).Level
		X = append(X, FeatureVector(r))
		y = append(y, int(label))
		report.ClassCounts[label.String()]++
	}
	report.Samples = len(X)

	if report.Samples < e.config.MinTrainingRecords {
		e.Reset()
		return report, shared.ErrNotEnoughSamples
	}

	trainIdx, testIdx := stratifiedSplit(y, e.config.HoldoutRatio, e.config.Forest.Seed)
	report.TrainSize = len(trainIdx)
	report.TestSize = len(testIdx)

	forest := NewForest(e.config.Forest)
	if err := forest.Fit(pickRows(X, trainIdx), pickLabels(y, trainIdx)); err != nil {
		e.Reset()
		return report, err
	}

	if len(testIdx) > 0 {
		correct := 0
		for _, i := range testIdx {
			if pred, err := forest.Predict(X[i]); err == nil && pred == y[i] {
				correct++
			}
		}
		report.Accuracy = float64(correct) / float64(len(testIdx))
	}

	e.mu.Lock()
	e.forest = forest
	e.mu.Unlock()
	return report, nil
}

// Predict возвращает уровень по модели. Ошибки имеют вид ErrEstimatorUnavailable.
func (e *Estimator) Predict(r *features.StudentFeatureRecord) (Level, error) {
	return e.predictVector(FeatureVector(r))
}

func (e *Estimator) predictVector(x []float64) (Level, error) {
	e.mu.RLock()
	forest := e.forest
	e.mu.RUnlock()

	if forest == nil {
		return LevelError, shared.ErrNoModel
	}
	class, err := forest.Predict(x)
	if err != nil {
		return LevelError, err
	}
	return Level(class), nil
}

// Estimate возвращает уровень риска и использованную стратегию.
// Сбой модели не ошибка: уровень считается эвристикой.
func (e *Estimator) Estimate(r *features.StudentFeatureRecord) (Level, Strategy) {
	if !r.HasData() {
		return LevelUnknown, StrategyNoData
	}
	if level, err := e.Predict(r); err == nil && level.IsValid() {
		return level, StrategyLearned
	}
	return Score(r).Level, StrategyHeuristic
}

// ──────────────────────────────────────────────────────────────────────────────
// Hold-out split
// ──────────────────────────────────────────────────────────────────────────────

// stratifiedSplit откладывает round(n*ratio) образцов каждого класса, но
// всегда оставляет хотя бы один образец класса для обучения.
func stratifiedSplit(y []int, ratio float64, seed int64) (train, test []int) {
	byClass := make(map[int][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * ratio))
		if nTest > len(idx)-1 {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func pickRows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for k, i := range idx {
		out[k] = X[i]
	}
	return out
}

func pickLabels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}
