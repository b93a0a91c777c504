package project

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	TouchProject(ctx context.Context, id string) error
	DeleteProject(ctx context.Context, id string) error
	CountProjects(ctx context.Context) (int, error)

	CreateFrame(ctx context.Context, f *FrameAsset) error
	InsertFrameAt(ctx context.Context, f *FrameAsset, position int) error
	GetFrame(ctx context.Context, id string) (*FrameAsset, error)
	ListFrames(ctx context.Context, projectID string) ([]*FrameAsset, error)
	DeleteFrame(ctx context.Context, id string) error
	CountFrames(ctx context.Context, projectID string) (int, error)
	ReorderFrames(ctx context.Context, projectID string, orderedIDs []string) error
	UpdateFrameStackID(ctx context.Context, id, stackID string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int, message string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const projectColumns = `id, title, fps, title_card, credits_mode, credits_text, credits_fields,
	audio_filename, audio_display_name, audio_duration, audio_sel_start, audio_sel_end,
	exported_at, created_at, updated_at`

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	creditsFields, err := EncodeCreditsInfo(p.Credits)
	if err != nil {
		return fmt.Errorf("encode credits: %w", err)
	}

	args := []any{
		p.ID, p.Title, p.FPS, p.TitleCard, p.CreditsMode, p.CreditsText, nullString(creditsFields),
	}
	args = append(args, audioArgs(p.Audio)...)
	args = append(args, nullTime(p.ExportedAt), p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProjectRow(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *Project) error {
	creditsFields, err := EncodeCreditsInfo(p.Credits)
	if err != nil {
		return fmt.Errorf("encode credits: %w", err)
	}

	args := []any{
		p.Title, p.FPS, p.TitleCard, p.CreditsMode, p.CreditsText, nullString(creditsFields),
	}
	args = append(args, audioArgs(p.Audio)...)
	args = append(args, nullTime(p.ExportedAt), now(), p.ID)

	_, err = r.db.ExecContext(ctx, `
		UPDATE projects SET
			title = ?, fps = ?, title_card = ?, credits_mode = ?, credits_text = ?, credits_fields = ?,
			audio_filename = ?, audio_display_name = ?, audio_duration = ?, audio_sel_start = ?, audio_sel_end = ?,
			exported_at = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	return err
}

// TouchProject bumps updated_at so edits surface in the recency-sorted
// project list without a full row rewrite.
func (r *SQLiteRepository) TouchProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE projects SET updated_at = ? WHERE id = ?", now(), id)
	return err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountProjects(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row *sql.Row) (*Project, error) {
	p, err := scanProjectFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func scanProjectRow(rows *sql.Rows) (*Project, error) {
	return scanProjectFrom(rows)
}

func scanProjectFrom(s rowScanner) (*Project, error) {
	var p Project
	var creditsFields sql.NullString
	var audioFilename, audioDisplayName sql.NullString
	var audioDuration, audioSelStart, audioSelEnd sql.NullFloat64
	var exportedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Title, &p.FPS, &p.TitleCard, &p.CreditsMode, &p.CreditsText, &creditsFields,
		&audioFilename, &audioDisplayName, &audioDuration, &audioSelStart, &audioSelEnd,
		&exportedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.CreditsMode = ParseCreditsMode(p.CreditsMode)
	p.Credits = DecodeCreditsInfo(creditsFields.String)
	if audioFilename.Valid {
		p.Audio = &AudioAttachment{
			Filename:       audioFilename.String,
			DisplayName:    audioDisplayName.String,
			Duration:       audioDuration.Float64,
			SelectionStart: audioSelStart.Float64,
			SelectionEnd:   audioSelEnd.Float64,
		}
	}
	if exportedAt.Valid {
		t, err := time.Parse(time.RFC3339, exportedAt.String)
		if err == nil {
			p.ExportedAt = &t
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) CreateFrame(ctx context.Context, f *FrameAsset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO frames (id, project_id, filename, order_index, source, stack_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.ProjectID, f.Filename, f.OrderIndex, f.Source, nullString(f.StackID), f.CreatedAt.Format(time.RFC3339))
	return err
}

// InsertFrameAt shifts every frame at or after position up by one and
// inserts f there, in a single transaction, preserving the dense
// zero-based ordering invariant.
func (r *SQLiteRepository) InsertFrameAt(ctx context.Context, f *FrameAsset, position int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE frames SET order_index = order_index + 1
		WHERE project_id = ? AND order_index >= ?
	`, f.ProjectID, position)
	if err != nil {
		return err
	}

	f.OrderIndex = position
	_, err = tx.ExecContext(ctx, `
		INSERT INTO frames (id, project_id, filename, order_index, source, stack_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.ProjectID, f.Filename, f.OrderIndex, f.Source, nullString(f.StackID), f.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetFrame(ctx context.Context, id string) (*FrameAsset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, filename, order_index, source, stack_id, created_at
		FROM frames WHERE id = ?
	`, id)

	var f FrameAsset
	var stackID sql.NullString
	var createdAt string
	err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.OrderIndex, &f.Source, &stackID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.Source = ParseSource(f.Source)
	f.StackID = stackID.String
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &f, nil
}

func (r *SQLiteRepository) ListFrames(ctx context.Context, projectID string) ([]*FrameAsset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, filename, order_index, source, stack_id, created_at
		FROM frames WHERE project_id = ? ORDER BY order_index ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*FrameAsset
	for rows.Next() {
		var f FrameAsset
		var stackID sql.NullString
		var createdAt string
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.OrderIndex, &f.Source, &stackID, &createdAt); err != nil {
			return nil, err
		}
		f.Source = ParseSource(f.Source)
		f.StackID = stackID.String
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		frames = append(frames, &f)
	}
	return frames, rows.Err()
}

func (r *SQLiteRepository) DeleteFrame(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM frames WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountFrames(ctx context.Context, projectID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM frames WHERE project_id = ?", projectID).Scan(&count)
	return count, err
}

// ReorderFrames rewrites order_index to match the given id sequence,
// 0..N-1, in one transaction. Callers pass the complete frame list of
// the project; partial lists would break the dense invariant.
func (r *SQLiteRepository) ReorderFrames(ctx context.Context, projectID string, orderedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE frames SET order_index = ? WHERE id = ? AND project_id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range orderedIDs {
		if _, err := stmt.ExecContext(ctx, i, id, projectID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) UpdateFrameStackID(ctx context.Context, id, stackID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE frames SET stack_id = ? WHERE id = ?", nullString(stackID), id)
	return err
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, project_id, type, status, progress, message, error, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, j.Type, j.Status, j.Progress,
		nullString(j.Message), nullString(j.Error), nullString(j.Payload),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, type, status, progress, message, error, payload, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	j, err := scanJobFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, type, status, progress, message, error, payload, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, type, status, progress, message, error, payload, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobFrom(s rowScanner) (*Job, error) {
	var j Job
	var message, errMsg, payload sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&j.ID, &j.ProjectID, &j.Type, &j.Status, &j.Progress, &message, &errMsg, &payload, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.Message = message.String
	j.Error = errMsg.String
	j.Payload = payload.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJobFrom(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), now(), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, message = ?, updated_at = ? WHERE id = ?
	`, progress, nullString(message), now(), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// now is the timestamp written to updated_at columns. Timestamps are
// stored as RFC3339 strings throughout; mixing in SQLite's own
// datetime() format would break the lexicographic recency sort.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func audioArgs(a *AudioAttachment) []any {
	if a == nil {
		return []any{nil, nil, nil, nil, nil}
	}
	return []any{a.Filename, a.DisplayName, a.Duration, a.SelectionStart, a.SelectionEnd}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
