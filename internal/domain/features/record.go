// Package features строит StudentFeatureRecord - плоский набор признаков
// студента, из которого считаются риск, паттерны и текст рекомендации.
//
// Запись не хранится: она пересобирается из истории оценок и последнего
// опроса при каждом запуске.
package features

import "github.com/alem-hub/academic-risk-hub/internal/domain/student"

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLDS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// CriticalLowGradeRatio - доля оценок D среди выставленных оценок предмета,
	// выше которой предмет считается критическим.
	CriticalLowGradeRatio = 0.3

	// StrengthTopGradeRatio - доля оценок A, выше которой предмет считается сильной стороной.
	StrengthTopGradeRatio = 0.5
)

// ══════════════════════════════════════════════════════════════════════════════
// SURVEY SCORES
// ══════════════════════════════════════════════════════════════════════════════

// SurveyScores - ответы опроса, приведённые к шкале 0..3.
// HasInternet и Extracurricular принимают 0 или 1.
// Неотвеченный вопрос или неизвестный вариант ответа дают 0.
type SurveyScores struct {
	StudyHours          int `json:"study_hours"`
	ClassParticipation  int `json:"class_participation"`
	HelpSeeking         int `json:"help_seeking"`
	Effort              int `json:"effort"`
	ClassEnjoyment      int `json:"class_enjoyment"`
	PerceivedDifficulty int `json:"perceived_difficulty"`
	TechUse             int `json:"tech_use"`
	HasInternet         int `json:"has_internet"`
	Extracurricular     int `json:"extracurricular"`
	SleepHours          int `json:"sleep_hours"`
	StressLevel         int `json:"stress_level"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT STATS
// ══════════════════════════════════════════════════════════════════════════════

// SubjectStat - распределение оценок по одному предмету.
type SubjectStat struct {
	Subject  string
	Total    int
	CountA   int
	CountB   int
	CountC   int
	CountD   int
	Ungraded int
}

// Graded возвращает количество оценок с уровнем A-D.
func (s SubjectStat) Graded() int {
	return s.CountA + s.CountB + s.CountC + s.CountD
}

// RatioD - доля D среди выставленных оценок.
func (s SubjectStat) RatioD() float64 {
	if s.Graded() == 0 {
		return 0
	}
	return float64(s.CountD) / float64(s.Graded())
}

// RatioA - доля A среди выставленных оценок.
func (s SubjectStat) RatioA() float64 {
	if s.Graded() == 0 {
		return 0
	}
	return float64(s.CountA) / float64(s.Graded())
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// StudentFeatureRecord - признаки одного студента.
type StudentFeatureRecord struct {
	StudentID int64
	FullName  string
	Age       int
	Gender    string

	HasGrades bool
	HasSurvey bool

	// Доли уровней по всем оценкам; оценка без уровня считается как Ungraded.
	// При HasGrades сумма равна 1, иначе все поля нулевые.
	FracA        float64
	FracB        float64
	FracC        float64
	FracD        float64
	FracUngraded float64
	TotalGrades  int

	// Отсортированы по алфавиту.
	CriticalSubjects []string
	Strengths        []string
	Subjects         []SubjectStat

	Survey          SurveyScores
	SurveyResponses int
	StudyResources  []string
	Challenges      []string
	SupportNeeds    []string

	// Последний учебный период.
	EducationLevel string
	GradeLevel     string
	Section        string
	AcademicYear   int

	// Средний балл (A=4 ... без оценки 0) и динамика по всем оценкам.
	AveragePoints float64
	Trend         Trend

	// Средний балл внутри когорты последнего периода, только по оценкам
	// с уровнем. Сравнивается со средними ровесников той же когорты.
	CohortAverage   float64
	HasCohortGrades bool
}

// Cohort возвращает когорту последнего периода.
func (r *StudentFeatureRecord) Cohort() student.Cohort {
	return student.Cohort{
		EducationLevel: r.EducationLevel,
		GradeLevel:     r.GradeLevel,
		AcademicYear:   r.AcademicYear,
	}
}

// HasData сообщает, есть ли у студента оценки или опрос.
func (r *StudentFeatureRecord) HasData() bool {
	return r.HasGrades || r.HasSurvey
}
