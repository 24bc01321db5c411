package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

// ── students ─────────────────────────────────────────────────────────────────

type memStudents struct {
	students   map[int64]*student.Student
	histories  map[int64][]student.AcademicPeriod
	surveys    map[int64]*student.Survey
	historyErr map[int64]error
	listErr    error
}

func newMemStudents() *memStudents {
	return &memStudents{
		students:   make(map[int64]*student.Student),
		histories:  make(map[int64][]student.AcademicPeriod),
		surveys:    make(map[int64]*student.Survey),
		historyErr: make(map[int64]error),
	}
}

func (m *memStudents) add(id int64) *student.Student {
	st := &student.Student{ID: id, FullName: "Estudiante", Age: 13 + int(id%4), Gender: "M"}
	m.students[id] = st
	return st
}

func (m *memStudents) GetStudent(_ context.Context, id int64) (*student.Student, error) {
	st, ok := m.students[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return st, nil
}

func (m *memStudents) ListStudents(context.Context) ([]*student.Student, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*student.Student, 0, len(m.students))
	for id := int64(1); len(out) < len(m.students); id++ {
		if st, ok := m.students[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memStudents) GetAcademicHistory(_ context.Context, id int64) ([]student.AcademicPeriod, error) {
	if err := m.historyErr[id]; err != nil {
		return nil, err
	}
	return m.histories[id], nil
}

func (m *memStudents) GetLatestSurvey(_ context.Context, id int64) (*student.Survey, error) {
	return m.surveys[id], nil
}

func (m *memStudents) Count(context.Context) (int, error) { return len(m.students), nil }

func grades(subject string, levels ...student.AchievementLevel) student.AcademicPeriod {
	p := student.AcademicPeriod{ID: 1, AcademicYear: 2024, GradeLevel: "2do", Section: "A"}
	for _, l := range levels {
		p.Entries = append(p.Entries, student.GradeEntry{Subject: subject, Period: "I", Level: student.Level(l)})
	}
	return p
}

func stressedSurvey() *student.Survey {
	return &student.Survey{
		ID: 1,
		Answers: []student.SurveyAnswer{
			{QuestionText: "¿Cuánto tiempo dedicas al estudio fuera de clase?", SelectedOption: "Menos de 1 hora al día"},
			{QuestionText: "¿Con qué frecuencia sientes estrés o ansiedad?", SelectedOption: "Siempre"},
		},
	}
}

// ── results ──────────────────────────────────────────────────────────────────

type memResults struct {
	mu      sync.Mutex
	items   []*recommendation.Result
	saveErr error
}

func (m *memResults) Save(_ context.Context, r *recommendation.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	r.ID = int64(len(m.items) + 1)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.items = append(m.items, r)
	return nil
}

func (m *memResults) Latest(_ context.Context, studentID int64) (*recommendation.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *recommendation.Result
	for _, r := range m.items {
		if r.StudentID == studentID && (latest == nil || r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, shared.ErrRecommendationNotFound
	}
	return latest, nil
}

func (m *memResults) CountAll(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *memResults) RiskDistribution(context.Context) (map[risk.Level]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[risk.Level]int)
	for _, r := range m.items {
		out[r.RiskLevel]++
	}
	return out, nil
}

func (m *memResults) forStudent(id int64) []*recommendation.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*recommendation.Result
	for _, r := range m.items {
		if r.StudentID == id {
			out = append(out, r)
		}
	}
	return out
}

// ── events ───────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

// ── prose ────────────────────────────────────────────────────────────────────

type stubProse struct {
	text   string
	err    error
	calls  int
	prompt string
}

func (s *stubProse) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.text, s.err
}

var errBoom = errors.New("boom")
