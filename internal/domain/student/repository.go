package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - чтение студентов, истории оценок и опросов.
type Repository interface {
	// GetStudent возвращает студента по ID.
	// Возвращает shared.ErrStudentNotFound, если студент не найден.
	GetStudent(ctx context.Context, id int64) (*Student, error)

	// ListStudents возвращает всех студентов, упорядоченных по ID.
	ListStudents(ctx context.Context) ([]*Student, error)

	// GetAcademicHistory возвращает периоды студента вместе с оценками.
	// Пустая история - не ошибка.
	GetAcademicHistory(ctx context.Context, studentID int64) ([]AcademicPeriod, error)

	// GetLatestSurvey возвращает последний опрос студента или nil, nil.
	GetLatestSurvey(ctx context.Context, studentID int64) (*Survey, error)

	// Count возвращает общее количество студентов.
	Count(ctx context.Context) (int, error)
}

// PeerAverage - средний балл одного студента внутри когорты.
type PeerAverage struct {
	StudentID int64
	Average   float64
}

// PeerRepository даёт распределение средних баллов для сравнения с ровесниками.
type PeerRepository interface {
	// GetPeerAverages возвращает средние баллы (A=4 ... D=1, оценки без
	// уровня не учитываются) всех студентов с оценками в когорте.
	GetPeerAverages(ctx context.Context, cohort Cohort) ([]PeerAverage, error)
}
