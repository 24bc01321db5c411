package features

import (
	"context"
	"fmt"
	"sort"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
)

// Extractor собирает записи признаков из хранилища.
type Extractor struct {
	repo student.Repository
}

// NewExtractor создаёт Extractor поверх репозитория студентов.
func NewExtractor(repo student.Repository) *Extractor {
	return &Extractor{repo: repo}
}

// Extract загружает студента, его историю и последний опрос и строит запись.
// Для несуществующего студента возвращает ошибку с видом shared.ErrNotFound.
func (e *Extractor) Extract(ctx context.Context, studentID int64) (*StudentFeatureRecord, error) {
	st, err := e.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return e.ExtractStudent(ctx, st)
}

// ExtractStudent строит запись для уже загруженного студента.
func (e *Extractor) ExtractStudent(ctx context.Context, st *student.Student) (*StudentFeatureRecord, error) {
	history, err := e.repo.GetAcademicHistory(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("load academic history of student %d: %w", st.ID, err)
	}
	survey, err := e.repo.GetLatestSurvey(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("load survey of student %d: %w", st.ID, err)
	}
	return Build(st, history, survey), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PURE CORE
// ══════════════════════════════════════════════════════════════════════════════

// Build строит запись признаков без обращения к хранилищу.
// survey может быть nil.
func Build(st *student.Student, history []student.AcademicPeriod, survey *student.Survey) *StudentFeatureRecord {
	r := &StudentFeatureRecord{
		StudentID:        st.ID,
		FullName:         st.FullName,
		Age:              st.Age,
		Gender:           st.Gender,
		CriticalSubjects: []string{},
		Strengths:        []string{},
		Subjects:         []SubjectStat{},
		StudyResources:   []string{},
		Challenges:       []string{},
		SupportNeeds:     []string{},
		Trend:            TrendInsufficientData,
	}

	if latest := student.Latest(history); latest != nil {
		r.EducationLevel = latest.EducationLevel
		r.GradeLevel = latest.GradeLevel
		r.Section = latest.Section
		r.AcademicYear = latest.AcademicYear
		r.CohortAverage, r.HasCohortGrades = student.CohortAverage(history, latest.Cohort())
	}

	applyGrades(r, orderedEntries(history))

	if survey != nil {
		r.HasSurvey = true
		r.SurveyResponses = len(survey.Answers) + len(survey.TextAnswers)
		r.Survey, r.StudyResources, r.Challenges, r.SupportNeeds = scoreSurvey(survey)
	}

	return r
}

// orderedEntries возвращает оценки в хронологическом порядке периодов.
func orderedEntries(history []student.AcademicPeriod) []student.GradeEntry {
	periods := make([]student.AcademicPeriod, len(history))
	copy(periods, history)
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].AcademicYear != periods[j].AcademicYear {
			return periods[i].AcademicYear < periods[j].AcademicYear
		}
		return periods[i].ID < periods[j].ID
	})
	return student.AllEntries(periods)
}

func applyGrades(r *StudentFeatureRecord, entries []student.GradeEntry) {
	if len(entries) == 0 {
		return
	}
	r.HasGrades = true
	r.TotalGrades = len(entries)

	var counts [student.LevelA + 1]int
	bySubject := make(map[string]*SubjectStat)
	points := 0

	for _, e := range entries {
		lvl := e.EffectiveLevel()
		counts[lvl]++
		points += lvl.Points()

		s, ok := bySubject[e.Subject]
		if !ok {
			s = &SubjectStat{Subject: e.Subject}
			bySubject[e.Subject] = s
		}
		s.Total++
		switch lvl {
		case student.LevelA:
			s.CountA++
		case student.LevelB:
			s.CountB++
		case student.LevelC:
			s.CountC++
		case student.LevelD:
			s.CountD++
		default:
			s.Ungraded++
		}
	}

	total := len(entries)
	r.FracA = shared.RatioOf(counts[student.LevelA], total)
	r.FracB = shared.RatioOf(counts[student.LevelB], total)
	r.FracC = shared.RatioOf(counts[student.LevelC], total)
	r.FracD = shared.RatioOf(counts[student.LevelD], total)
	r.FracUngraded = shared.RatioOf(counts[student.LevelUngraded], total)
	r.AveragePoints = float64(points) / float64(total)
	r.Trend = computeTrend(entries)

	names := make([]string, 0, len(bySubject))
	for name := range bySubject {
		names = append(names, name)
	}
	sort.Strings(names)

	r.Subjects = make([]SubjectStat, 0, len(names))
	for _, name := range names {
		s := *bySubject[name]
		r.Subjects = append(r.Subjects, s)
		if s.Graded() == 0 {
			continue
		}
		if s.RatioD() > CriticalLowGradeRatio {
			r.CriticalSubjects = append(r.CriticalSubjects, name)
		}
		if s.RatioA() > StrengthTopGradeRatio {
			r.Strengths = append(r.Strengths, name)
		}
	}
}
