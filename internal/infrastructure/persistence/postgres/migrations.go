package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insert, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every embedded migration with its applied flag.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_students", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_academic_history", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_surveys", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_recommendation_results", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    code VARCHAR(50) UNIQUE,
    full_name VARCHAR(200) NOT NULL,
    age INTEGER NOT NULL DEFAULT 0,
    gender VARCHAR(20) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_age CHECK (age >= 0)
);

CREATE INDEX IF NOT EXISTS idx_students_full_name ON students(full_name);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS academic_history (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    academic_year INTEGER NOT NULL,
    education_level VARCHAR(50) NOT NULL DEFAULT '',
    grade_level VARCHAR(50) NOT NULL DEFAULT '',
    section VARCHAR(20) NOT NULL DEFAULT '',
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_academic_history_student ON academic_history(student_id);
CREATE INDEX IF NOT EXISTS idx_academic_history_cohort ON academic_history(grade_level, academic_year);

-- One row per (subject, bimester, criterion). A NULL level means "not set";
-- 'No calificado' is stored as given.
CREATE TABLE IF NOT EXISTS grades (
    id BIGSERIAL PRIMARY KEY,
    history_id BIGINT NOT NULL REFERENCES academic_history(id) ON DELETE CASCADE,
    subject VARCHAR(100) NOT NULL,
    period VARCHAR(50) NOT NULL,
    criterion VARCHAR(500) NOT NULL DEFAULT '',
    achievement_level VARCHAR(20)
);

CREATE INDEX IF NOT EXISTS idx_grades_history ON grades(history_id);
`

const migration002Down = `
DROP TABLE IF EXISTS grades;
DROP TABLE IF EXISTS academic_history;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS surveys (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    taken_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_surveys_student_taken ON surveys(student_id, taken_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS survey_answers (
    id BIGSERIAL PRIMARY KEY,
    survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
    question_text TEXT NOT NULL,
    selected_option TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_survey_answers_survey ON survey_answers(survey_id);

CREATE TABLE IF NOT EXISTS survey_text_answers (
    id BIGSERIAL PRIMARY KEY,
    survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
    question_text TEXT NOT NULL,
    answer TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_survey_text_answers_survey ON survey_text_answers(survey_id);
`

const migration003Down = `
DROP TABLE IF EXISTS survey_text_answers;
DROP TABLE IF EXISTS survey_answers;
DROP TABLE IF EXISTS surveys;
`

const migration004Up = `
-- Append-only: rows are never updated; the latest result has the highest id.
CREATE TABLE IF NOT EXISTS recommendation_results (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    risk_level VARCHAR(20) NOT NULL,
    recommendation TEXT NOT NULL,
    source VARCHAR(10) NOT NULL DEFAULT 'rules',
    run_id VARCHAR(64) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_risk_level CHECK (risk_level IN ('Desconocido', 'Bajo', 'Medio', 'Alto', 'Error')),
    CONSTRAINT valid_source CHECK (source IN ('rules', 'ai'))
);

CREATE INDEX IF NOT EXISTS idx_recommendation_results_student ON recommendation_results(student_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_recommendation_results_run ON recommendation_results(run_id);
`

const migration004Down = `
DROP TABLE IF EXISTS recommendation_results;
`
