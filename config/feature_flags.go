package config

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags toggles optional parts of the pipeline.
// Percentage rollout is evaluated per student with a stable FNV hash, so a
// student keeps the same answer between runs.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// studentID -> feature -> enabled
	studentOverrides map[int64]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent in 0..100.
	RolloutPercent int

	// TargetGradeLevels restricts the feature to some grade levels; empty means all.
	TargetGradeLevels []string
}

// FeatureContext carries what a flag is evaluated against.
type FeatureContext struct {
	StudentID  int64
	GradeLevel string
}

// Feature names.
const (
	FeatureLearnedEstimator = "risk.learned_estimator" // train and use the forest
	FeaturePatternMining    = "patterns.mining"        // mine behaviour rules during full runs
	FeatureProseRewrite     = "prose.rewrite"          // rewrite deterministic text with the prose API
	FeatureResultCache      = "cache.latest_results"   // cache latest results in Redis
)

// LoadFeatureFlags builds the flag table with defaults and applies a
// rollout list of the form "name=true|false|<percent>,...".
func LoadFeatureFlags(rollout string) *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		studentOverrides: make(map[int64]map[string]bool),
	}
	ff.initializeDefaults()
	ff.applyRollout(rollout)
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureLearnedEstimator] = &Feature{
		Name:           FeatureLearnedEstimator,
		Description:    "Train a random forest on heuristic labels and use it for full runs",
		Enabled:        true,
		RolloutPercent: 100,
	}
	ff.features[FeaturePatternMining] = &Feature{
		Name:           FeaturePatternMining,
		Description:    "Mine association rules across the population",
		Enabled:        true,
		RolloutPercent: 100,
	}
	ff.features[FeatureProseRewrite] = &Feature{
		Name:           FeatureProseRewrite,
		Description:    "Rewrite recommendation text with the generative API",
		Enabled:        true,
		RolloutPercent: 100,
	}
	ff.features[FeatureResultCache] = &Feature{
		Name:           FeatureResultCache,
		Description:    "Cache the latest recommendation per student in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

func (ff *FeatureFlags) applyRollout(rollout string) {
	for _, part := range strings.Split(rollout, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		feature, exists := ff.features[strings.TrimSpace(name)]
		if !exists {
			continue
		}
		val = strings.TrimSpace(val)

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			feature.RolloutPercent = 0
			if b {
				feature.RolloutPercent = 100
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context only passes fully rolled-out features.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.StudentID != 0 {
		if overrides, ok := ff.studentOverrides[ctx.StudentID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if len(feature.TargetGradeLevels) > 0 && ctx != nil && ctx.GradeLevel != "" {
		match := false
		for _, g := range feature.TargetGradeLevels {
			if g == ctx.GradeLevel {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.StudentID != 0 {
		return inRollout(ctx.StudentID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent >= 100
}

func inRollout(studentID int64, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(strconv.FormatInt(studentID, 10)))
	return int(h.Sum32()%100) < percent
}

// SetStudentOverride forces a feature on or off for one student.
func (ff *FeatureFlags) SetStudentOverride(studentID int64, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.studentOverrides[studentID]; !ok {
		ff.studentOverrides[studentID] = make(map[string]bool)
	}
	ff.studentOverrides[studentID][featureName] = enabled
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]Feature, len(ff.features))
	for k, v := range ff.features {
		result[k] = *v
	}
	return result
}

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
