package recommendation

import (
	"fmt"
	"strings"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/patterns"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSER
// Чистая функция: одинаковый вход даёт побайтно одинаковый текст.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// LowGradeAlertRatio - доля оценок D, выше которой выводится блок об успеваемости.
	LowGradeAlertRatio = 0.2

	// MaxPatternHints - сколько подсказок из правил попадает в текст.
	MaxPatternHints = 3
)

const (
	sectionAcademic = "\n📚 RENDIMIENTO ACADÉMICO:\n" +
		"- Se detecta un alto porcentaje de calificaciones D. " +
		"Es urgente implementar un plan de recuperación académica."
	lineCriticalSubjects = "- Materias que requieren atención inmediata: %s. " +
		"Se recomienda tutorías específicas en estas áreas."
	sectionStudyHabits = "\n⏰ HÁBITOS DE ESTUDIO:\n" +
		"- Aumentar el tiempo de estudio diario a al menos 2 horas. " +
		"Establecer un horario fijo ayudará a crear el hábito."
	sectionParticipation = "\n🙋 PARTICIPACIÓN:\n" +
		"- Fomentar la participación activa en clase. " +
		"No dudar en pedir ayuda cuando algo no se entiende."
	sectionSleep = "\n😴 SALUD:\n" +
		"- Es fundamental dormir al menos 7-8 horas diarias. " +
		"El descanso adecuado mejora significativamente el rendimiento."
	lineStress = "- El alto nivel de estrés detectado puede afectar el aprendizaje. " +
		"Considerar técnicas de relajación o apoyo psicológico."
	sectionTechnology = "\n💻 TECNOLOGÍA:\n" +
		"- Aprovechar más los recursos tecnológicos disponibles. " +
		"Hay excelentes plataformas educativas gratuitas en línea."
	sectionPatterns     = "\n🔍 BASADO EN PATRONES SIMILARES:\n"
	linePatternHint     = "- Estudiantes con características similares mejoran cuando: "
	sectionInsufficient = "\n⚠️ DATOS INSUFICIENTES:\n" +
		"- No se cuenta con suficiente información para una recomendación completa. " +
		"Se sugiere completar la evaluación académica y la encuesta de hábitos."
)

// InsufficientDataMarker присутствует в тексте студента без данных.
const InsufficientDataMarker = "DATOS INSUFICIENTES"

// Compose собирает текст рекомендации из признаков, уровня риска и правил.
// rules может быть nil.
func Compose(r *features.StudentFeatureRecord, level risk.Level, rules []patterns.Rule) string {
	parts := []string{
		"NIVEL DE RIESGO: " + level.String(),
		"\nRECOMENDACIONES PERSONALIZADAS:",
	}

	if r.HasGrades {
		if r.FracD > LowGradeAlertRatio {
			parts = append(parts, sectionAcademic)
		}
		if len(r.CriticalSubjects) > 0 {
			parts = append(parts, fmt.Sprintf(lineCriticalSubjects, strings.Join(r.CriticalSubjects, ", ")))
		}
	}

	if r.HasSurvey {
		s := r.Survey
		if s.StudyHours < 2 {
			parts = append(parts, sectionStudyHabits)
		}
		if s.ClassParticipation < 2 || s.HelpSeeking < 2 {
			parts = append(parts, sectionParticipation)
		}
		if s.SleepHours < 2 {
			parts = append(parts, sectionSleep)
		}
		if s.StressLevel > 2 {
			parts = append(parts, lineStress)
		}
		if s.TechUse < 2 && s.HasInternet == 1 {
			parts = append(parts, sectionTechnology)
		}
	}

	if hints := PatternHints(r, rules); len(hints) > 0 {
		parts = append(parts, sectionPatterns+strings.Join(hints, "\n"))
	}

	if !r.HasData() {
		parts = append(parts, sectionInsufficient)
	}

	return strings.Join(parts, "\n")
}

// PatternHints выбирает до MaxPatternHints правил, чья посылка содержит
// признак студента, а следствие - высокую успеваемость.
func PatternHints(r *features.StudentFeatureRecord, rules []patterns.Rule) []string {
	if len(rules) == 0 {
		return nil
	}
	traits := studentRiskTraits(r)
	if len(traits) == 0 {
		return nil
	}

	var hints []string
	for _, rule := range rules {
		if !rule.Antecedent.Intersects(traits) || !rule.Consequent.Contains(patterns.TraitHighAchievement) {
			continue
		}
		hints = append(hints, linePatternHint+strings.Join(rule.Antecedent.Strings(), ", "))
		if len(hints) == MaxPatternHints {
			break
		}
	}
	return hints
}

func studentRiskTraits(r *features.StudentFeatureRecord) patterns.TraitSet {
	var out []patterns.Trait
	if r.HasGrades && r.FracD > features.CriticalLowGradeRatio {
		out = append(out, patterns.TraitLowAchievement)
	}
	if r.HasSurvey {
		if r.Survey.StudyHours < 2 {
			out = append(out, patterns.TraitStudiesLittle)
		}
		if r.Survey.StressLevel >= 2 {
			out = append(out, patterns.TraitHighStress)
		}
	}
	return patterns.NewTraitSet(out...)
}
