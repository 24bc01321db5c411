// Package patterns ищет ассоциативные правила между признаками поведения
// студентов по всей популяции (Apriori).
//
// Поиск выполняется один раз за прогон пайплайна: правилам нужна
// поддержка на уровне популяции.
package patterns

import (
	"sort"
	"strings"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRAITS
// ══════════════════════════════════════════════════════════════════════════════

// Trait - категориальная метка студента, полученная порогом над признаком.
type Trait string

const (
	TraitHighAchievement     Trait = "Alto_Rendimiento"
	TraitLowAchievement      Trait = "Bajo_Rendimiento"
	TraitMidAchievement      Trait = "Rendimiento_Medio"
	TraitStudiesALot         Trait = "Estudia_Mucho"
	TraitStudiesLittle       Trait = "Estudia_Poco"
	TraitActiveParticipation Trait = "Participa_Activamente"
	TraitHighEffort          Trait = "Alto_Esfuerzo"
	TraitHighStress          Trait = "Alto_Estres"
	TraitLittleSleep         Trait = "Poco_Sueno"
)

// TraitSet - отсортированный набор признаков без повторов.
type TraitSet []Trait

// NewTraitSet сортирует и удаляет повторы.
func NewTraitSet(traits ...Trait) TraitSet {
	seen := make(map[Trait]struct{}, len(traits))
	out := make(TraitSet, 0, len(traits))
	for _, t := range traits {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains проверяет наличие признака.
func (s TraitSet) Contains(t Trait) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}

// Intersects сообщает, есть ли общий признак.
func (s TraitSet) Intersects(other TraitSet) bool {
	for _, t := range other {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// Key - каноническое текстовое представление набора.
func (s TraitSet) Key() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// Strings возвращает метки как строки.
func (s TraitSet) Strings() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = string(t)
	}
	return out
}

// Traits переводит запись в набор признаков. Признаки добавляются только
// для тех источников данных, которые есть у студента.
func Traits(r *features.StudentFeatureRecord) TraitSet {
	var out []Trait

	if r.HasGrades {
		switch {
		case r.FracA > 0.5:
			out = append(out, TraitHighAchievement)
		case r.FracD > features.CriticalLowGradeRatio:
			out = append(out, TraitLowAchievement)
		default:
			out = append(out, TraitMidAchievement)
		}
	}

	if r.HasSurvey {
		s := r.Survey
		if s.StudyHours >= 2 {
			out = append(out, TraitStudiesALot)
		} else {
			out = append(out, TraitStudiesLittle)
		}
		if s.ClassParticipation >= 2 {
			out = append(out, TraitActiveParticipation)
		}
		if s.Effort >= 2 {
			out = append(out, TraitHighEffort)
		}
		if s.StressLevel >= 2 {
			out = append(out, TraitHighStress)
		}
		if s.SleepHours < 2 {
			out = append(out, TraitLittleSleep)
		}
	}

	return NewTraitSet(out...)
}
