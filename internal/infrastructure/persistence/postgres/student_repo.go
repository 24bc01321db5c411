package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
	"github.com/alem-hub/academic-risk-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository and student.PeerRepository.
// Reads are retried on transient connection errors.
type StudentRepository struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{
		conn:    conn,
		retrier: retry.DatabaseRetrier(),
	}
}

var (
	_ student.Repository     = (*StudentRepository)(nil)
	_ student.PeerRepository = (*StudentRepository)(nil)
)

// read runs a read-only call under the query timeout, retrying transient failures.
func (r *StudentRepository) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.retrier.Do(ctx, func(ctx context.Context) error {
		qctx, cancel := r.conn.withTimeout(ctx)
		defer cancel()

		err := fn(qctx)
		if IsTransient(err) {
			return retry.Retryable(err)
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

const studentColumns = `id, COALESCE(code, ''), full_name, age, gender`

// GetStudent returns a student by ID.
func (r *StudentRepository) GetStudent(ctx context.Context, id int64) (*student.Student, error) {
	var st *student.Student
	err := r.read(ctx, func(ctx context.Context) error {
		row := r.conn.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
		var err error
		st, err = scanStudent(row)
		return err
	})
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student %d: %w", id, err)
	}
	return st, nil
}

// ListStudents returns every student ordered by ID.
func (r *StudentRepository) ListStudents(ctx context.Context) ([]*student.Student, error) {
	var out []*student.Student
	err := r.read(ctx, func(ctx context.Context) error {
		rows, err := r.conn.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			st, err := scanStudent(rows)
			if err != nil {
				return err
			}
			out = append(out, st)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return out, nil
}

// Count returns the total number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.read(ctx, func(ctx context.Context) error {
		return r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var st student.Student
	if err := row.Scan(&st.ID, &st.Code, &st.FullName, &st.Age, &st.Gender); err != nil {
		return nil, err
	}
	return &st, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Academic history
// ─────────────────────────────────────────────────────────────────────────────

// GetAcademicHistory returns the student's periods with their grade entries.
// Periods are ordered by academic year, entries by insertion order.
func (r *StudentRepository) GetAcademicHistory(ctx context.Context, studentID int64) ([]student.AcademicPeriod, error) {
	var history []student.AcademicPeriod
	err := r.read(ctx, func(ctx context.Context) error {
		var err error
		history, err = r.loadHistory(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get academic history of student %d: %w", studentID, err)
	}
	return history, nil
}

func (r *StudentRepository) loadHistory(ctx context.Context, studentID int64) ([]student.AcademicPeriod, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, academic_year, education_level, grade_level, section, recorded_at
		FROM academic_history
		WHERE student_id = $1
		ORDER BY academic_year, id
	`, studentID)
	if err != nil {
		return nil, err
	}

	var history []student.AcademicPeriod
	index := make(map[int64]int)
	for rows.Next() {
		var p student.AcademicPeriod
		if err := rows.Scan(&p.ID, &p.StudentID, &p.AcademicYear, &p.EducationLevel,
			&p.GradeLevel, &p.Section, &p.RecordedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(history)
		history = append(history, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(history))
	for i, p := range history {
		ids[i] = p.ID
	}

	grades, err := r.conn.Query(ctx, `
		SELECT history_id, subject, period, criterion, achievement_level
		FROM grades
		WHERE history_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer grades.Close()

	for grades.Next() {
		var (
			historyID int64
			entry     student.GradeEntry
			level     *string
		)
		if err := grades.Scan(&historyID, &entry.Subject, &entry.Period, &entry.Criterion, &level); err != nil {
			return nil, err
		}
		entry.Level = parseLevel(level)

		i := index[historyID]
		history[i].Entries = append(history[i].Entries, entry)
	}

	return history, grades.Err()
}

// parseLevel maps the stored label to an achievement level; NULL and empty
// labels mean "not set".
func parseLevel(label *string) *student.AchievementLevel {
	if label == nil {
		return nil
	}
	lvl, ok := student.ParseAchievementLevel(*label)
	if !ok {
		return nil
	}
	return student.Level(lvl)
}

// ─────────────────────────────────────────────────────────────────────────────
// Surveys
// ─────────────────────────────────────────────────────────────────────────────

// GetLatestSurvey returns the most recent survey with its answers, or nil.
func (r *StudentRepository) GetLatestSurvey(ctx context.Context, studentID int64) (*student.Survey, error) {
	var survey *student.Survey
	err := r.read(ctx, func(ctx context.Context) error {
		var err error
		survey, err = r.loadLatestSurvey(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get survey of student %d: %w", studentID, err)
	}
	return survey, nil
}

func (r *StudentRepository) loadLatestSurvey(ctx context.Context, studentID int64) (*student.Survey, error) {
	var s student.Survey
	err := r.conn.QueryRow(ctx, `
		SELECT id, student_id, taken_at
		FROM surveys
		WHERE student_id = $1
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`, studentID).Scan(&s.ID, &s.StudentID, &s.TakenAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT question_text, selected_option FROM survey_answers WHERE survey_id = $1 ORDER BY id
	`, s.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var a student.SurveyAnswer
		if err := rows.Scan(&a.QuestionText, &a.SelectedOption); err != nil {
			rows.Close()
			return nil, err
		}
		s.Answers = append(s.Answers, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	texts, err := r.conn.Query(ctx, `
		SELECT question_text, answer FROM survey_text_answers WHERE survey_id = $1 ORDER BY id
	`, s.ID)
	if err != nil {
		return nil, err
	}
	defer texts.Close()
	for texts.Next() {
		var a student.TextAnswer
		if err := texts.Scan(&a.QuestionText, &a.Answer); err != nil {
			return nil, err
		}
		s.TextAnswers = append(s.TextAnswers, a)
	}

	return &s, texts.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Peers
// ─────────────────────────────────────────────────────────────────────────────

// GetPeerAverages returns the grade average (A=4 ... D=1) of every student
// with at least one graded entry in the cohort. Entries without a level are
// left out of the average.
func (r *StudentRepository) GetPeerAverages(ctx context.Context, cohort student.Cohort) ([]student.PeerAverage, error) {
	var out []student.PeerAverage
	err := r.read(ctx, func(ctx context.Context) error {
		rows, err := r.conn.Query(ctx, `
			SELECT h.student_id,
			       AVG(CASE UPPER(TRIM(g.achievement_level))
			               WHEN 'A' THEN 4
			               WHEN 'B' THEN 3
			               WHEN 'C' THEN 2
			               WHEN 'D' THEN 1
			           END)::float8
			FROM academic_history h
			JOIN grades g ON g.history_id = h.id
			WHERE h.education_level = $1
			  AND h.grade_level = $2
			  AND h.academic_year = $3
			  AND UPPER(TRIM(g.achievement_level)) IN ('A', 'B', 'C', 'D')
			GROUP BY h.student_id
			ORDER BY h.student_id
		`, cohort.EducationLevel, cohort.GradeLevel, cohort.AcademicYear)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var p student.PeerAverage
			if err := rows.Scan(&p.StudentID, &p.Average); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get peer averages: %w", err)
	}
	return out, nil
}
