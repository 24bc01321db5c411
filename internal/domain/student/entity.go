package student

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT LEVEL
// ══════════════════════════════════════════════════════════════════════════════

// AchievementLevel - уровень достижений по критерию оценивания.
// Порядок: A > B > C > D > Ungraded.
type AchievementLevel int

const (
	LevelUngraded AchievementLevel = iota
	LevelD
	LevelC
	LevelB
	LevelA
)

// String возвращает метку уровня в том виде, в каком она хранится в базе.
func (l AchievementLevel) String() string {
	switch l {
	case LevelA:
		return "A"
	case LevelB:
		return "B"
	case LevelC:
		return "C"
	case LevelD:
		return "D"
	default:
		return "No calificado"
	}
}

// Points возвращает числовое значение уровня: A=4, B=3, C=2, D=1, без оценки 0.
func (l AchievementLevel) Points() int {
	return int(l)
}

// ParseAchievementLevel разбирает метку уровня.
// Пустая строка означает "уровень не выставлен" (ok=false); любая другая
// неизвестная метка считается как LevelUngraded.
func ParseAchievementLevel(s string) (AchievementLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return LevelA, true
	case "B":
		return LevelB, true
	case "C":
		return LevelC, true
	case "D":
		return LevelD, true
	case "":
		return LevelUngraded, false
	default:
		return LevelUngraded, true
	}
}

// Level возвращает указатель на уровень; удобно для литералов в тестах.
func Level(l AchievementLevel) *AchievementLevel {
	return &l
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Student - анкетные данные студента.
type Student struct {
	ID       int64
	Code     string
	FullName string
	Age      int
	Gender   string
}

// GradeEntry - оценка по одному критерию предмета за биместр.
// Level равен nil, если уровень не выставлен.
type GradeEntry struct {
	Subject   string
	Period    string
	Criterion string
	Level     *AchievementLevel
}

// EffectiveLevel возвращает уровень, считая nil как LevelUngraded.
func (g GradeEntry) EffectiveLevel() AchievementLevel {
	if g.Level == nil {
		return LevelUngraded
	}
	return *g.Level
}

// IsGraded сообщает, выставлен ли буквенный уровень A-D.
func (g GradeEntry) IsGraded() bool {
	return g.Level != nil && *g.Level != LevelUngraded
}

// AcademicPeriod - учебный год студента с классом, секцией и оценками.
type AcademicPeriod struct {
	ID             int64
	StudentID      int64
	AcademicYear   int
	EducationLevel string
	GradeLevel     string
	Section        string
	RecordedAt     time.Time
	Entries        []GradeEntry
}

// AllEntries собирает оценки из всех периодов в порядке периодов.
func AllEntries(history []AcademicPeriod) []GradeEntry {
	n := 0
	for _, p := range history {
		n += len(p.Entries)
	}
	out := make([]GradeEntry, 0, n)
	for _, p := range history {
		out = append(out, p.Entries...)
	}
	return out
}

// Latest возвращает последний период по году, или nil для пустой истории.
func Latest(history []AcademicPeriod) *AcademicPeriod {
	var latest *AcademicPeriod
	for i := range history {
		p := &history[i]
		if latest == nil || p.AcademicYear > latest.AcademicYear ||
			(p.AcademicYear == latest.AcademicYear && p.ID > latest.ID) {
			latest = p
		}
	}
	return latest
}

// Cohort - группа ровесников: уровень образования, класс и учебный год.
type Cohort struct {
	EducationLevel string
	GradeLevel     string
	AcademicYear   int
}

// Cohort возвращает когорту периода.
func (p AcademicPeriod) Cohort() Cohort {
	return Cohort{
		EducationLevel: p.EducationLevel,
		GradeLevel:     p.GradeLevel,
		AcademicYear:   p.AcademicYear,
	}
}

// CohortAverage - средний балл (A=4 ... D=1) по оценкам с выставленным
// уровнем во всех периодах когорты. ok=false, если таких оценок нет.
func CohortAverage(history []AcademicPeriod, c Cohort) (avg float64, ok bool) {
	points, n := 0, 0
	for _, p := range history {
		if p.Cohort() != c {
			continue
		}
		for _, e := range p.Entries {
			if !e.IsGraded() {
				continue
			}
			points += e.EffectiveLevel().Points()
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(points) / float64(n), true
}

// SurveyAnswer - выбранный вариант ответа на закрытый вопрос.
type SurveyAnswer struct {
	QuestionText   string
	SelectedOption string
}

// TextAnswer - ответ на открытый вопрос.
type TextAnswer struct {
	QuestionText string
	Answer       string
}

// Survey - заполненный опрос о привычках и самочувствии.
type Survey struct {
	ID          int64
	StudentID   int64
	TakenAt     time.Time
	Answers     []SurveyAnswer
	TextAnswers []TextAnswer
}

// IsEmpty сообщает, что в опросе нет ни одного ответа.
func (s *Survey) IsEmpty() bool {
	return s == nil || (len(s.Answers) == 0 && len(s.TextAnswers) == 0)
}
