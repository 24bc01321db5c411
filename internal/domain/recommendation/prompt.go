package recommendation

import (
	"fmt"
	"strings"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROMPT
// Подсказка для генеративной модели: всё, что известно о студенте, и
// требования к структуре ответа.
// ══════════════════════════════════════════════════════════════════════════════

// PromptInput - данные для подсказки.
type PromptInput struct {
	Record     *features.StudentFeatureRecord
	Level      risk.Level
	Assessment risk.Assessment
	Peers      features.PeerComparison
}

var ruleDescriptions = map[string]string{
	risk.RuleHighFailureRate:       "Alto porcentaje de calificaciones D",
	risk.RuleHighCRatio:            "Predominio de calificaciones C",
	risk.RuleHighBRatio:            "Predominio de calificaciones B",
	risk.RuleManyCriticalSubjects:  "Más de dos materias en situación crítica",
	risk.RuleSomeCriticalSubjects:  "Materias en situación crítica",
	risk.RuleInsufficientStudyTime: "Tiempo de estudio insuficiente",
	risk.RuleLowParticipation:      "Baja participación en clase",
	risk.RuleLowHelpSeeking:        "Rara vez pide ayuda",
	risk.RuleLowEffort:             "Bajo nivel de esfuerzo",
	risk.RuleLowEnjoyment:          "Poco gusto por las clases",
	risk.RuleInsufficientSleep:     "Horas de sueño insuficientes",
	risk.RuleHighStress:            "Nivel alto de estrés o ansiedad",
}

var frequencyLabels = []string{"Nunca", "A veces", "Casi siempre", "Siempre"}

const banner = "=================================================="

// BuildPrompt собирает текст подсказки.
func BuildPrompt(in PromptInput) string {
	r := in.Record
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	section := func(title string) {
		line("\n%s", banner)
		line("%s", title)
		line("%s", banner)
	}

	line("Eres un experto en educación y psicología educativa con amplia experiencia " +
		"en el desarrollo de planes de aprendizaje personalizados. Tu tarea es analizar " +
		"los datos de un estudiante y generar recomendaciones específicas, accionables " +
		"y basadas en evidencia para mejorar su rendimiento académico y bienestar.")

	section("INFORMACIÓN DEL ESTUDIANTE")
	line("Nombre: %s", r.FullName)
	if r.Age > 0 {
		line("Edad: %d años", r.Age)
	}
	if r.Gender != "" {
		line("Género: %s", r.Gender)
	}
	if r.EducationLevel != "" {
		line("Nivel educativo: %s", r.EducationLevel)
	}
	if r.GradeLevel != "" {
		line("Grado actual: %s", strings.TrimSpace(r.GradeLevel+" "+r.Section))
	}
	line("Nivel de riesgo estimado: %s", in.Level)

	if r.HasGrades {
		section("ANÁLISIS DE RENDIMIENTO ACADÉMICO")
		line("Total de calificaciones analizadas: %d", r.TotalGrades)
		line("Tendencia general: %s", r.Trend.Label())
		line("Distribución: A %.0f%%, B %.0f%%, C %.0f%%, D %.0f%%",
			r.FracA*100, r.FracB*100, r.FracC*100, r.FracD*100)

		if len(r.CriticalSubjects) > 0 {
			line("\n### Materias que requieren atención urgente:")
			for _, st := range subjectsNamed(r, r.CriticalSubjects) {
				line("- %s: %.1f%% de calificaciones D (%d calificaciones)", st.Subject, st.RatioD()*100, st.Graded())
			}
		}
		if len(r.Strengths) > 0 {
			line("\n### Materias donde el estudiante destaca:")
			for _, st := range subjectsNamed(r, r.Strengths) {
				line("- %s: %.1f%% de calificaciones A", st.Subject, st.RatioA()*100)
			}
		}
	}

	if r.HasSurvey {
		s := r.Survey
		section("HÁBITOS DE ESTUDIO Y BIENESTAR")
		line("- Horas de estudio (1-3): %d", s.StudyHours)
		line("- Participación en clase: %s", frequencyLabel(s.ClassParticipation))
		line("- Pide ayuda: %s", frequencyLabel(s.HelpSeeking))
		line("- Esfuerzo (0-3): %d", s.Effort)
		line("- Gusto por las clases (0-3): %d", s.ClassEnjoyment)
		line("- Dificultad percibida (0-3): %d", s.PerceivedDifficulty)
		line("- Uso de tecnología: %s", frequencyLabel(s.TechUse))
		line("- Acceso a internet: %s", yesNo(s.HasInternet))
		line("- Actividades extracurriculares: %s", yesNo(s.Extracurricular))
		line("- Horas de sueño (1-3): %d", s.SleepHours)
		line("- Estrés o ansiedad: %s", frequencyLabel(s.StressLevel))

		if len(r.StudyResources) > 0 {
			line("\n### Recursos de aprendizaje que utiliza:")
			for _, res := range r.StudyResources {
				line("- %s", res)
			}
		}
		if len(r.Challenges) > 0 {
			line("\n### Desafíos identificados por el estudiante:")
			for _, c := range r.Challenges {
				line("- %s", c)
			}
		}
		if len(r.SupportNeeds) > 0 {
			line("\n### Apoyo solicitado:")
			for _, n := range r.SupportNeeds {
				line("- %s", n)
			}
		}

		if idx, ok := features.ComputeIndices(r); ok {
			line("\n### Índices de evaluación:")
			line("- Índice de compromiso: %.2f", idx.Engagement)
			line("- Índice de bienestar: %.2f", idx.Wellness)
			line("- Índice de uso de recursos: %.2f", idx.Resources)
		}
	}

	if in.Peers.Available {
		section("ANÁLISIS COMPARATIVO")
		line("Percentil en su grupo: %.1f%%", in.Peers.PercentileRank)
		line("Estado comparativo: %s", in.Peers.Status.Description())
		line("Promedio del grupo (n=%d): %.2f", in.Peers.PeerCount, in.Peers.PeerAverage)
	}

	section("ANÁLISIS DE FACTORES Y PATRONES")
	if len(in.Assessment.Fired) == 0 {
		line("No se identificaron factores de riesgo.")
	} else {
		line("### Factores de riesgo identificados:")
		for _, name := range in.Assessment.Fired {
			line("- %s", ruleDescriptions[name])
		}
	}
	if protective := protectiveFactors(r); len(protective) > 0 {
		line("\n### Factores protectores:")
		for _, p := range protective {
			line("- %s", p)
		}
	}

	section("CONSIDERACIONES ESPECIALES")
	switch {
	case !r.HasGrades && !r.HasSurvey:
		line("ALERTA: Este estudiante no tiene datos académicos ni de encuesta registrados. " +
			"Las recomendaciones deben enfocarse en establecer una línea base y crear un sistema " +
			"de seguimiento inicial.")
	case !r.HasGrades:
		line("No hay datos académicos disponibles. Las recomendaciones se basan únicamente " +
			"en los hábitos y percepciones reportadas por el estudiante.")
	case !r.HasSurvey:
		line("No hay datos de encuesta disponibles. Las recomendaciones se basan únicamente " +
			"en el rendimiento académico observado.")
	}
	if critical := criticalIndicators(r); len(critical) > 0 {
		line("\nINDICADORES CRÍTICOS:")
		for _, c := range critical {
			line("- %s", c)
		}
	}

	section("INSTRUCCIONES PARA GENERAR RECOMENDACIONES")
	line("Basándote en TODA la información anterior, genera un plan de recomendaciones breve que incluya:")
	line("1. Evaluación general del estado actual del estudiante.")
	line("2. Plan de acción inmediata con 3-5 acciones específicas y realizables.")
	line("3. Estrategias a mediano plazo para las materias críticas y el bienestar.")
	line("4. Apoyo requerido de profesores, familia e institución.")
	line("Las recomendaciones deben ser ESPECÍFICAS, REALISTAS, MEDIBLES y POSITIVAS.")
	if !r.HasGrades || !r.HasSurvey {
		line("IMPORTANTE: Dado que hay datos limitados, incluye la necesidad de completar " +
			"evaluaciones para tener un panorama más completo.")
	}

	return strings.TrimRight(b.String(), "\n")
}

func subjectsNamed(r *features.StudentFeatureRecord, names []string) []features.SubjectStat {
	out := make([]features.SubjectStat, 0, len(names))
	for _, name := range names {
		for _, st := range r.Subjects {
			if st.Subject == name {
				out = append(out, st)
				break
			}
		}
	}
	return out
}

func frequencyLabel(v int) string {
	if v < 0 || v >= len(frequencyLabels) {
		return "Sin respuesta"
	}
	return frequencyLabels[v]
}

func yesNo(v int) string {
	if v == 1 {
		return "Sí"
	}
	return "No"
}

func protectiveFactors(r *features.StudentFeatureRecord) []string {
	var out []string
	if r.HasGrades && len(r.Strengths) > 0 {
		out = append(out, "Destaca en: "+strings.Join(r.Strengths, ", "))
	}
	if r.HasSurvey {
		s := r.Survey
		if s.StudyHours >= 3 {
			out = append(out, "Dedica más de 2 horas diarias al estudio")
		}
		if s.Effort >= 3 {
			out = append(out, "Alto nivel de esfuerzo")
		}
		if s.Extracurricular == 1 {
			out = append(out, "Participa en actividades extracurriculares")
		}
	}
	return out
}

func criticalIndicators(r *features.StudentFeatureRecord) []string {
	var out []string
	if len(r.CriticalSubjects) > 3 {
		out = append(out, "Múltiples materias en situación crítica")
	}
	if r.HasSurvey && r.Survey.StressLevel >= 3 {
		out = append(out, "Niveles altos de estrés reportados")
	}
	if r.HasSurvey && r.Survey.SleepHours < 2 {
		out = append(out, "Privación de sueño severa")
	}
	return out
}
