package features

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

type fakeRepo struct {
	students  map[int64]*student.Student
	histories map[int64][]student.AcademicPeriod
	surveys   map[int64]*student.Survey
	surveyErr error
}

func (f *fakeRepo) GetStudent(_ context.Context, id int64) (*student.Student, error) {
	st, ok := f.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return st, nil
}

func (f *fakeRepo) ListStudents(context.Context) ([]*student.Student, error) {
	out := make([]*student.Student, 0, len(f.students))
	for _, s := range f.students {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRepo) GetAcademicHistory(_ context.Context, id int64) ([]student.AcademicPeriod, error) {
	return f.histories[id], nil
}

func (f *fakeRepo) GetLatestSurvey(_ context.Context, id int64) (*student.Survey, error) {
	if f.surveyErr != nil {
		return nil, f.surveyErr
	}
	return f.surveys[id], nil
}

func (f *fakeRepo) Count(context.Context) (int, error) { return len(f.students), nil }

func entries(subject string, levels ...student.AchievementLevel) []student.GradeEntry {
	out := make([]student.GradeEntry, 0, len(levels))
	for _, l := range levels {
		out = append(out, student.GradeEntry{Subject: subject, Period: "I", Level: student.Level(l)})
	}
	return out
}

func repeat(l student.AchievementLevel, n int) []student.AchievementLevel {
	out := make([]student.AchievementLevel, n)
	for i := range out {
		out[i] = l
	}
	return out
}

func period(year int, e ...[]student.GradeEntry) student.AcademicPeriod {
	p := student.AcademicPeriod{ID: int64(year), AcademicYear: year, GradeLevel: "3ro", Section: "A"}
	for _, chunk := range e {
		p.Entries = append(p.Entries, chunk...)
	}
	return p
}

var alice = &student.Student{ID: 1, FullName: "Alicia Quispe", Age: 14, Gender: "femenino"}

func TestBuild_GradeFractionsSumToOne(t *testing.T) {
	history := []student.AcademicPeriod{period(2024,
		entries("Matemática", student.LevelA, student.LevelB, student.LevelC, student.LevelD),
		[]student.GradeEntry{{Subject: "Arte", Period: "I"}}, // no level
		entries("Arte", student.LevelUngraded),
	)}

	r := Build(alice, history, nil)

	require.True(t, r.HasGrades)
	assert.Equal(t, 6, r.TotalGrades)
	sum := r.FracA + r.FracB + r.FracC + r.FracD + r.FracUngraded
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 2.0/6.0, r.FracUngraded, 1e-9)
}

func TestBuild_NoData(t *testing.T) {
	r := Build(alice, nil, nil)

	assert.False(t, r.HasGrades)
	assert.False(t, r.HasSurvey)
	assert.False(t, r.HasData())
	assert.Zero(t, r.FracA+r.FracB+r.FracC+r.FracD+r.FracUngraded)
	assert.Empty(t, r.CriticalSubjects)
	assert.NotNil(t, r.CriticalSubjects)
	assert.Equal(t, TrendInsufficientData, r.Trend)

	for name, got := range map[string]any{
		"strengths":       r.Strengths,
		"subjects":        r.Subjects,
		"study_resources": r.StudyResources,
		"challenges":      r.Challenges,
		"support_needs":   r.SupportNeeds,
	} {
		assert.NotNil(t, got, name)
		assert.Empty(t, got, name)
	}

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "null")
}

func TestBuild_CriticalSubjectAndStrength(t *testing.T) {
	levels := append([]student.AchievementLevel{student.LevelA}, repeat(student.LevelD, 9)...)
	history := []student.AcademicPeriod{period(2024,
		entries("Matemática", levels...),
		entries("Comunicación", student.LevelA, student.LevelA, student.LevelB),
		entries("Ciencia", student.LevelD, student.LevelC, student.LevelB), // D ratio 0.33
		entries("Historia", student.LevelD, student.LevelC, student.LevelB, student.LevelA, student.LevelA, student.LevelB, student.LevelC, student.LevelB, student.LevelB, student.LevelC),
	)}

	r := Build(alice, history, nil)

	assert.Equal(t, []string{"Ciencia", "Matemática"}, r.CriticalSubjects)
	assert.Equal(t, []string{"Comunicación"}, r.Strengths)
	assert.Len(t, r.Subjects, 4)
}

func TestBuild_CriticalIgnoresUngraded(t *testing.T) {
	history := []student.AcademicPeriod{period(2024,
		entries("Inglés", student.LevelD, student.LevelB, student.LevelB, student.LevelB),
		[]student.GradeEntry{{Subject: "Inglés"}, {Subject: "Inglés"}, {Subject: "Inglés"}},
	)}

	r := Build(alice, history, nil)

	// 1 D of 4 graded entries is 0.25, under the threshold even though 3 entries lack a level.
	assert.Empty(t, r.CriticalSubjects)
}

func TestBuild_SurveyMapping(t *testing.T) {
	survey := &student.Survey{
		ID: 9,
		Answers: []student.SurveyAnswer{
			{QuestionText: "¿Cuánto tiempo dedicas al estudio fuera del horario escolar?", SelectedOption: "Menos de 1 hora al día"},
			{QuestionText: "¿Sientes estrés o ansiedad cuando tienes exámenes o tareas importantes?", SelectedOption: "Siempre"},
			{QuestionText: "¿Sueles participar en clase respondiendo preguntas?", SelectedOption: "Casi siempre"},
			{QuestionText: "¿Pides ayuda cuando no entiendes un tema?", SelectedOption: "Quizás"},
			{QuestionText: "En general, ¿te gustan las clases?", SelectedOption: "Sí, mucho"},
			{QuestionText: "¿Cómo calificas la dificultad de las materias en general?", SelectedOption: "Difíciles"},
			{QuestionText: "¿Cuánto te esfuerzas en las tareas y exámenes?", SelectedOption: "Lo necesario"},
			{QuestionText: "¿Qué recursos utilizas para estudiar?", SelectedOption: "Libros"},
			{QuestionText: "¿Qué recursos utilizas para estudiar?", SelectedOption: "YouTube"},
			{QuestionText: "¿Qué recursos utilizas para estudiar?", SelectedOption: "Libros"},
			{QuestionText: "¿Tienes acceso a internet en casa?", SelectedOption: "Sí"},
			{QuestionText: "¿Cuánto utilizas la tecnología para aprender?", SelectedOption: "A veces"},
			{QuestionText: "¿Participas en actividades extracurriculares (deporte, arte, clubes)?", SelectedOption: "No"},
			{QuestionText: "¿Cuántas horas duermes en promedio por noche?", SelectedOption: "Más de 7 horas"},
			{QuestionText: "¿Color favorito?", SelectedOption: "Azul"},
		},
		TextAnswers: []student.TextAnswer{
			{QuestionText: "¿Qué mejorarías de tus clases?", Answer: "Más práctica"},
			{QuestionText: "¿Qué apoyo adicional necesitas?", Answer: "Tutorías de matemática"},
			{QuestionText: "¿Qué apoyo adicional necesitas?", Answer: "   "},
		},
	}

	r := Build(alice, nil, survey)

	require.True(t, r.HasSurvey)
	assert.Equal(t, SurveyScores{
		StudyHours:          1,
		ClassParticipation:  2,
		HelpSeeking:         0,
		Effort:              2,
		ClassEnjoyment:      3,
		PerceivedDifficulty: 2,
		TechUse:             1,
		HasInternet:         1,
		Extracurricular:     0,
		SleepHours:          3,
		StressLevel:         3,
	}, r.Survey)
	assert.Equal(t, []string{"Libros", "YouTube"}, r.StudyResources)
	assert.Equal(t, []string{"Más práctica"}, r.Challenges)
	assert.Equal(t, []string{"Tutorías de matemática"}, r.SupportNeeds)
}

func TestBuild_EmptySurveyStillCounts(t *testing.T) {
	r := Build(alice, nil, &student.Survey{ID: 3})

	assert.True(t, r.HasSurvey)
	assert.Equal(t, SurveyScores{}, r.Survey)
}

func TestBuild_LatestPeriodContext(t *testing.T) {
	history := []student.AcademicPeriod{
		{ID: 2, AcademicYear: 2024, GradeLevel: "4to", Section: "B", EducationLevel: "Secundaria"},
		{ID: 1, AcademicYear: 2023, GradeLevel: "3ro", Section: "A", EducationLevel: "Secundaria"},
	}

	r := Build(alice, history, nil)

	assert.Equal(t, "4to", r.GradeLevel)
	assert.Equal(t, 2024, r.AcademicYear)
	assert.False(t, r.HasGrades, "periods without entries are not grades")
}

func TestExtractor_Extract(t *testing.T) {
	repo := &fakeRepo{
		students:  map[int64]*student.Student{1: alice},
		histories: map[int64][]student.AcademicPeriod{1: {period(2024, entries("Arte", student.LevelA))}},
		surveys:   map[int64]*student.Survey{},
	}
	ex := NewExtractor(repo)

	r, err := ex.Extract(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.StudentID)
	assert.Equal(t, 1.0, r.FracA)
	assert.False(t, r.HasSurvey)

	_, err = ex.Extract(context.Background(), 404)
	assert.True(t, shared.IsNotFound(err))

	repo.surveyErr = errors.New("boom")
	_, err = ex.Extract(context.Background(), 1)
	assert.Error(t, err)
	assert.False(t, shared.IsNotFound(err))
}
