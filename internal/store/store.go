package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tansaku-dev/tansaku/internal/models"
)

// SQLite is the durable Backend shared by worker processes.
type SQLite struct {
	db *sql.DB
}

var _ Backend = (*SQLite)(nil)

// Open creates a SQLite store at dbPath and runs migrations.
func Open(dbPath string) (*SQLite, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS studies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		directions TEXT NOT NULL,
		user_attrs TEXT NOT NULL DEFAULT '{}',
		system_attrs TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trials (
		id TEXT PRIMARY KEY,
		study_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		state TEXT NOT NULL DEFAULT 'running',
		params TEXT NOT NULL DEFAULT '{}',
		objective_values TEXT,
		user_attrs TEXT NOT NULL DEFAULT '{}',
		system_attrs TEXT NOT NULL DEFAULT '{}',
		datetime_start DATETIME NOT NULL,
		datetime_complete DATETIME,
		UNIQUE (study_id, number),
		FOREIGN KEY (study_id) REFERENCES studies(id)
	);

	CREATE INDEX IF NOT EXISTS idx_trials_study_id ON trials(study_id);
	CREATE INDEX IF NOT EXISTS idx_trials_state ON trials(study_id, state);
	`

	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "unique constraint")
}

// --- Study Operations ---

// CreateStudy inserts a new study. The name uniqueness check rides on the
// UNIQUE index so it is atomic with the insert.
func (s *SQLite) CreateStudy(ctx context.Context, name string, directions []models.Direction) (*models.Study, error) {
	now := time.Now().UTC()
	study := &models.Study{
		ID:          uuid.New().String(),
		Name:        name,
		Directions:  directions,
		UserAttrs:   map[string]any{},
		SystemAttrs: map[string]any{},
		CreatedAt:   now,
	}

	dirJSON, err := json.Marshal(directions)
	if err != nil {
		return nil, fmt.Errorf("marshal directions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO studies (id, name, directions, created_at) VALUES (?, ?, ?, ?)`,
		study.ID, study.Name, string(dirJSON), study.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("study %q: %w", name, ErrDuplicateStudyName)
	}
	if err != nil {
		return nil, fmt.Errorf("insert study: %w", err)
	}
	return study, nil
}

// GetStudy retrieves a study by name.
func (s *SQLite) GetStudy(ctx context.Context, name string) (*models.Study, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, directions, user_attrs, system_attrs, created_at FROM studies WHERE name = ?`,
		name,
	)
	study, err := scanStudy(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("study %q: %w", name, ErrStudyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query study: %w", err)
	}
	return study, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudy(row rowScanner) (*models.Study, error) {
	var study models.Study
	var dirJSON, userJSON, sysJSON string
	if err := row.Scan(&study.ID, &study.Name, &dirJSON, &userJSON, &sysJSON, &study.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dirJSON), &study.Directions); err != nil {
		return nil, fmt.Errorf("unmarshal directions: %w", err)
	}
	if err := json.Unmarshal([]byte(userJSON), &study.UserAttrs); err != nil {
		return nil, fmt.Errorf("unmarshal user attrs: %w", err)
	}
	if err := json.Unmarshal([]byte(sysJSON), &study.SystemAttrs); err != nil {
		return nil, fmt.Errorf("unmarshal system attrs: %w", err)
	}
	return &study, nil
}

// DeleteStudy removes a study and all its trials in a single transaction.
func (s *SQLite) DeleteStudy(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var studyID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM studies WHERE name = ?`, name).Scan(&studyID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("study %q: %w", name, ErrStudyNotFound)
	}
	if err != nil {
		return fmt.Errorf("query study: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE study_id = ?`, studyID); err != nil {
		return fmt.Errorf("delete trials: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM studies WHERE id = ?`, studyID); err != nil {
		return fmt.Errorf("delete study: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SetStudyUserAttr upserts one user attribute. Last write wins under
// concurrent calls; the read-modify-write is confined to one transaction.
func (s *SQLite) SetStudyUserAttr(ctx context.Context, studyID, key string, value any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userJSON string
	err = tx.QueryRowContext(ctx, `SELECT user_attrs FROM studies WHERE id = ?`, studyID).Scan(&userJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("study id %q: %w", studyID, ErrStudyNotFound)
	}
	if err != nil {
		return fmt.Errorf("query study attrs: %w", err)
	}

	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(userJSON), &attrs); err != nil {
		return fmt.Errorf("unmarshal user attrs: %w", err)
	}
	attrs[key] = value
	updated, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal user attrs: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE studies SET user_attrs = ? WHERE id = ?`, string(updated), studyID); err != nil {
		return fmt.Errorf("update user attrs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListStudies returns all studies ordered by creation time.
func (s *SQLite) ListStudies(ctx context.Context) ([]models.Study, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, directions, user_attrs, system_attrs, created_at FROM studies ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query studies: %w", err)
	}
	defer rows.Close()

	var studies []models.Study
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		studies = append(studies, *study)
	}
	return studies, rows.Err()
}

// ListSummaries returns one summary per study. Trial counts and earliest
// start times are aggregated over the live trial set at query time.
func (s *SQLite) ListSummaries(ctx context.Context) ([]models.StudySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.directions, COUNT(t.id), MIN(t.datetime_start)
		FROM studies s
		LEFT JOIN trials t ON t.study_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.StudySummary
	for rows.Next() {
		var sum models.StudySummary
		var dirJSON string
		var earliest sql.NullTime
		if err := rows.Scan(&sum.Name, &dirJSON, &sum.TrialCount, &earliest); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal([]byte(dirJSON), &sum.Directions); err != nil {
			return nil, fmt.Errorf("unmarshal directions: %w", err)
		}
		if earliest.Valid {
			t := earliest.Time
			sum.EarliestStart = &t
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// --- Trial Operations ---

// CreateTrial inserts a new trial in the running state with the next dense
// number for the study. The count-then-insert runs in one transaction and
// the UNIQUE(study_id, number) index backstops cross-process races: a
// collision surfaces as ErrConflict for the caller to retry.
func (s *SQLite) CreateTrial(ctx context.Context, studyID string, params map[string]models.ParamValue) (*models.Trial, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM studies WHERE id = ?`, studyID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query study: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("study id %q: %w", studyID, ErrStudyNotFound)
	}

	var number int64
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM trials WHERE study_id = ?`, studyID).Scan(&number)
	if err != nil {
		return nil, fmt.Errorf("count trials: %w", err)
	}

	now := time.Now().UTC()
	if params == nil {
		params = map[string]models.ParamValue{}
	}
	trial := &models.Trial{
		ID:            uuid.New().String(),
		StudyID:       studyID,
		Number:        number,
		State:         models.TrialStateRunning,
		Params:        params,
		UserAttrs:     map[string]any{},
		SystemAttrs:   map[string]any{},
		DatetimeStart: now,
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trials (id, study_id, number, state, params, datetime_start) VALUES (?, ?, ?, ?, ?, ?)`,
		trial.ID, trial.StudyID, trial.Number, trial.State, string(paramsJSON), trial.DatetimeStart,
	)
	if isUniqueViolation(err) {
		// Another writer took this number between our count and insert.
		return nil, fmt.Errorf("trial number %d in study %q: %w", number, studyID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert trial: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return trial, nil
}

// GetTrial retrieves a trial by study and number.
func (s *SQLite) GetTrial(ctx context.Context, studyID string, number int64) (*models.Trial, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, study_id, number, state, params, objective_values, user_attrs, system_attrs, datetime_start, datetime_complete
		 FROM trials WHERE study_id = ? AND number = ?`,
		studyID, number,
	)
	trial, err := scanTrial(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trial %d in study %q: %w", number, studyID, ErrTrialNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query trial: %w", err)
	}
	return trial, nil
}

func scanTrial(row rowScanner) (*models.Trial, error) {
	var trial models.Trial
	var paramsJSON, userJSON, sysJSON string
	var valuesJSON sql.NullString
	var complete sql.NullTime

	err := row.Scan(&trial.ID, &trial.StudyID, &trial.Number, &trial.State,
		&paramsJSON, &valuesJSON, &userJSON, &sysJSON, &trial.DatetimeStart, &complete)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &trial.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if valuesJSON.Valid && valuesJSON.String != "" {
		if err := json.Unmarshal([]byte(valuesJSON.String), &trial.Values); err != nil {
			return nil, fmt.Errorf("unmarshal values: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(userJSON), &trial.UserAttrs); err != nil {
		return nil, fmt.Errorf("unmarshal user attrs: %w", err)
	}
	if err := json.Unmarshal([]byte(sysJSON), &trial.SystemAttrs); err != nil {
		return nil, fmt.Errorf("unmarshal system attrs: %w", err)
	}
	if complete.Valid {
		t := complete.Time
		trial.DatetimeComplete = &t
	}
	return &trial, nil
}

// ListTrials returns all trials of a study in number order.
func (s *SQLite) ListTrials(ctx context.Context, studyID string) ([]models.Trial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, study_id, number, state, params, objective_values, user_attrs, system_attrs, datetime_start, datetime_complete
		 FROM trials WHERE study_id = ? ORDER BY number`,
		studyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var trials []models.Trial
	for rows.Next() {
		trial, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		trials = append(trials, *trial)
	}
	return trials, rows.Err()
}

// FinishTrial transitions a trial to a terminal state. The update is
// conditioned on the trial still being in the running state, so of any
// number of racing finalizers exactly one succeeds.
func (s *SQLite) FinishTrial(ctx context.Context, studyID string, number int64, state models.TrialState, values []float64, completedAt time.Time) error {
	var valuesJSON any
	if len(values) > 0 {
		b, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("marshal values: %w", err)
		}
		valuesJSON = string(b)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE trials SET state = ?, objective_values = ?, datetime_complete = ?
		 WHERE study_id = ? AND number = ? AND state = ?`,
		state, valuesJSON, completedAt, studyID, number, models.TrialStateRunning,
	)
	if err != nil {
		return fmt.Errorf("update trial: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: the trial is either absent or already terminal.
	var current models.TrialState
	err = s.db.QueryRowContext(ctx,
		`SELECT state FROM trials WHERE study_id = ? AND number = ?`, studyID, number,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("trial %d in study %q: %w", number, studyID, ErrTrialNotFound)
	}
	if err != nil {
		return fmt.Errorf("query trial state: %w", err)
	}
	return fmt.Errorf("trial %d in study %q is %s: %w", number, studyID, current, ErrTrialAlreadyFinished)
}

// SetTrialUserAttr upserts one user attribute on a trial.
func (s *SQLite) SetTrialUserAttr(ctx context.Context, studyID string, number int64, key string, value any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT user_attrs FROM trials WHERE study_id = ? AND number = ?`, studyID, number,
	).Scan(&userJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("trial %d in study %q: %w", number, studyID, ErrTrialNotFound)
	}
	if err != nil {
		return fmt.Errorf("query trial attrs: %w", err)
	}

	attrs := map[string]any{}
	if err := json.Unmarshal([]byte(userJSON), &attrs); err != nil {
		return fmt.Errorf("unmarshal user attrs: %w", err)
	}
	attrs[key] = value
	updated, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal user attrs: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE trials SET user_attrs = ? WHERE study_id = ? AND number = ?`,
		string(updated), studyID, number,
	); err != nil {
		return fmt.Errorf("update user attrs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
