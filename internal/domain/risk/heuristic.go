package risk

import (
	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEURISTIC RULES
// Баллы начисляются по двум группам: оценки и опрос. Каждая группа с
// данными добавляет 5 к знаменателю нормализации.
// ══════════════════════════════════════════════════════════════════════════════

// Group - источник данных, к которому относится правило.
type Group string

const (
	GroupGrades Group = "grades"
	GroupSurvey Group = "survey"
)

// PointsPerGroup - максимум баллов, на который нормируется одна группа.
const PointsPerGroup = 5

// Пороги нормализованного балла.
const (
	HighRiskThreshold   = 0.6
	MediumRiskThreshold = 0.3
)

// Имена правил.
const (
	RuleHighFailureRate       = "high_failure_rate"
	RuleHighCRatio            = "high_c_ratio"
	RuleHighBRatio            = "high_b_ratio"
	RuleManyCriticalSubjects  = "many_critical_subjects"
	RuleSomeCriticalSubjects  = "critical_subjects"
	RuleInsufficientStudyTime = "insufficient_study_time"
	RuleLowParticipation      = "low_participation"
	RuleLowHelpSeeking        = "low_help_seeking"
	RuleLowEffort             = "low_effort"
	RuleLowEnjoyment          = "low_enjoyment"
	RuleInsufficientSleep     = "insufficient_sleep"
	RuleHighStress            = "high_stress"
)

// Rule - одно именованное правило эвристики.
// Правила с одинаковым Exclusive взаимоисключающие: срабатывает первое подходящее.
type Rule struct {
	Name      string
	Group     Group
	Points    int
	Exclusive string
	Applies   func(r *features.StudentFeatureRecord) bool
}

// Rules - канонический набор правил в порядке проверки.
var Rules = []Rule{
	{Name: RuleHighFailureRate, Group: GroupGrades, Points: 3, Exclusive: "grade_mix",
		Applies: func(r *features.StudentFeatureRecord) bool { return r.FracD > 0.3 }},
	{Name: RuleHighCRatio, Group: GroupGrades, Points: 2, Exclusive: "grade_mix",
		Applies: func(r *features.StudentFeatureRecord) bool { return r.FracC > 0.4 }},
	{Name: RuleHighBRatio, Group: GroupGrades, Points: 1, Exclusive: "grade_mix",
		Applies: func(r *features.StudentFeatureRecord) bool { return r.FracB > 0.5 }},

	{Name: RuleManyCriticalSubjects, Group: GroupGrades, Points: 2, Exclusive: "critical",
		Applies: func(r *features.StudentFeatureRecord) bool { return len(r.CriticalSubjects) > 2 }},
	{Name: RuleSomeCriticalSubjects, Group: GroupGrades, Points: 1, Exclusive: "critical",
		Applies: func(r *features.StudentFeatureRecord) bool { return len(r.CriticalSubjects) > 0 }},

	{Name: RuleInsufficientStudyTime, Group: GroupSurvey, Points: 1,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.StudyHours < 2 }},
	{Name: RuleLowParticipation, Group: GroupSurvey, Points: 1,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.ClassParticipation < 2 }},
	{Name: RuleLowHelpSeeking, Group: GroupSurvey, Points: 1,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.HelpSeeking < 2 }},
	{Name: RuleLowEffort, Group: GroupSurvey, Points: 2,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.Effort < 2 }},
	{Name: RuleLowEnjoyment, Group: GroupSurvey, Points: 1,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.ClassEnjoyment < 2 }},
	{Name: RuleInsufficientSleep, Group: GroupSurvey, Points: 1,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.SleepHours < 2 }},
	{Name: RuleHighStress, Group: GroupSurvey, Points: 1,
		Applies: func(r *features.StudentFeatureRecord) bool { return r.Survey.StressLevel > 2 }},
}

// Assessment - результат эвристики.
type Assessment struct {
	Score      int
	Groups     int
	Normalized float64
	Level      Level
	Fired      []string
}

// HasFired сообщает, сработало ли правило с данным именем.
func (a Assessment) HasFired(name string) bool {
	for _, f := range a.Fired {
		if f == name {
			return true
		}
	}
	return false
}

// Score применяет правила к записи.
func Score(r *features.StudentFeatureRecord) Assessment {
	a := Assessment{Fired: []string{}}

	active := map[Group]bool{
		GroupGrades: r.HasGrades,
		GroupSurvey: r.HasSurvey,
	}
	for _, on := range active {
		if on {
			a.Groups++
		}
	}

	taken := make(map[string]bool)
	for _, rule := range Rules {
		if !active[rule.Group] {
			continue
		}
		if rule.Exclusive != "" && taken[rule.Exclusive] {
			continue
		}
		if !rule.Applies(r) {
			continue
		}
		a.Score += rule.Points
		a.Fired = append(a.Fired, rule.Name)
		if rule.Exclusive != "" {
			taken[rule.Exclusive] = true
		}
	}

	if a.Groups > 0 {
		a.Normalized = float64(a.Score) / float64(a.Groups*PointsPerGroup)
	}
	a.Level = Classify(a.Normalized, a.Groups)
	return a
}

// Classify переводит нормализованный балл в уровень риска.
func Classify(normalized float64, groups int) Level {
	switch {
	case groups == 0:
		return LevelUnknown
	case normalized > HighRiskThreshold:
		return LevelHigh
	case normalized > MediumRiskThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}
