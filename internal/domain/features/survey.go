package features

import (
	"strings"

	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANSWER TABLES
// ══════════════════════════════════════════════════════════════════════════════

var (
	studyHoursScale = map[string]int{
		"Menos de 1 hora al día":   1,
		"Entre 1 y 2 horas al día": 2,
		"Más de 2 horas al día":    3,
	}

	frequencyScale = map[string]int{
		"Nunca":        0,
		"A veces":      1,
		"Casi siempre": 2,
		"Siempre":      3,
	}

	enjoymentScale = map[string]int{
		"No me gustan": 0,
		"No mucho":     1,
		"A veces":      2,
		"Sí, mucho":    3,
	}

	difficultyScale = map[string]int{
		"Muy fáciles":   0,
		"Normales":      1,
		"Difíciles":     2,
		"Muy difíciles": 3,
	}

	effortScale = map[string]int{
		"Casi nada":    0,
		"Poco":         1,
		"Lo necesario": 2,
		"Mucho":        3,
	}

	sleepHoursScale = map[string]int{
		"Menos de 5 horas":  1,
		"Entre 5 y 7 horas": 2,
		"Más de 7 horas":    3,
	}
)

const answerYes = "Sí"

func yesNo(option string) int {
	if option == answerYes {
		return 1
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION MATCHING
// Вопросы распознаются по подстроке текста; проверка идёт по порядку,
// побеждает первое совпадение.
// ══════════════════════════════════════════════════════════════════════════════

type dimension int

const (
	dimUnknown dimension = iota
	dimStudyHours
	dimParticipation
	dimHelpSeeking
	dimEnjoyment
	dimDifficulty
	dimEffort
	dimResources
	dimInternet
	dimTechUse
	dimExtracurricular
	dimSleep
	dimStress
)

var questionMarkers = []struct {
	marker string
	dim    dimension
}{
	{"tiempo dedicas al estudio", dimStudyHours},
	{"participar en clase", dimParticipation},
	{"Pides ayuda", dimHelpSeeking},
	{"te gustan las clases", dimEnjoyment},
	{"dificultad de las materias", dimDifficulty},
	{"te esfuerzas", dimEffort},
	{"recursos utilizas", dimResources},
	{"acceso a internet", dimInternet},
	{"utilizas la tecnología", dimTechUse},
	{"actividades extracurriculares", dimExtracurricular},
	{"horas duermes", dimSleep},
	{"estrés o ansiedad", dimStress},
}

const (
	challengesMarker   = "mejorarías"
	supportNeedsMarker = "apoyo adicional"
)

func classify(question string) dimension {
	for _, m := range questionMarkers {
		if strings.Contains(question, m.marker) {
			return m.dim
		}
	}
	return dimUnknown
}

// scoreSurvey переводит ответы опроса в SurveyScores.
func scoreSurvey(s *student.Survey) (scores SurveyScores, resources, challenges, support []string) {
	resources, challenges, support = []string{}, []string{}, []string{}
	if s == nil {
		return SurveyScores{}, resources, challenges, support
	}

	seen := make(map[string]struct{})
	for _, a := range s.Answers {
		opt := strings.TrimSpace(a.SelectedOption)
		switch classify(a.QuestionText) {
		case dimStudyHours:
			scores.StudyHours = studyHoursScale[opt]
		case dimParticipation:
			scores.ClassParticipation = frequencyScale[opt]
		case dimHelpSeeking:
			scores.HelpSeeking = frequencyScale[opt]
		case dimEnjoyment:
			scores.ClassEnjoyment = enjoymentScale[opt]
		case dimDifficulty:
			scores.PerceivedDifficulty = difficultyScale[opt]
		case dimEffort:
			scores.Effort = effortScale[opt]
		case dimResources:
			if _, dup := seen[opt]; opt != "" && !dup {
				seen[opt] = struct{}{}
				resources = append(resources, opt)
			}
		case dimInternet:
			scores.HasInternet = yesNo(opt)
		case dimTechUse:
			scores.TechUse = frequencyScale[opt]
		case dimExtracurricular:
			scores.Extracurricular = yesNo(opt)
		case dimSleep:
			scores.SleepHours = sleepHoursScale[opt]
		case dimStress:
			scores.StressLevel = frequencyScale[opt]
		}
	}

	for _, t := range s.TextAnswers {
		text := strings.TrimSpace(t.Answer)
		if text == "" {
			continue
		}
		switch {
		case strings.Contains(t.QuestionText, challengesMarker):
			challenges = append(challenges, text)
		case strings.Contains(t.QuestionText, supportNeedsMarker):
			support = append(support, text)
		}
	}

	return scores, resources, challenges, support
}
