package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/meeting-recorder/internal/types"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ErrNotFound is returned when a meeting id has no row
var ErrNotFound = types.ErrMeetingNotFound

// MeetingDB handles SQLite persistence of meetings and their segments
type MeetingDB struct {
	db *sql.DB
}

// NewMeetingDB opens (or creates) the meetings database
func NewMeetingDB(dbPath string) (*MeetingDB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		app_source TEXT,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		duration_ms INTEGER,
		status TEXT NOT NULL,
		audio_path TEXT,
		summary TEXT,
		action_items TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meeting_segments (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		speaker_id TEXT,
		speaker_name TEXT,
		text TEXT NOT NULL,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_meetings_started_at ON meetings(started_at);
	CREATE INDEX IF NOT EXISTS idx_segments_meeting ON meeting_segments(meeting_id, start_ms);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MeetingDB{db: db}, nil
}

const meetingColumns = `id, title, app_source, started_at, ended_at, duration_ms, status,
	audio_path, summary, action_items, created_at, updated_at`

// CreateMeeting inserts a new meeting row
func (mdb *MeetingDB) CreateMeeting(ctx context.Context, m *types.Meeting) error {
	query := `INSERT INTO meetings (` + meetingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := mdb.db.ExecContext(ctx, query,
		m.ID, m.Title, m.AppSource, formatTime(m.StartedAt), formatTimePtr(m.EndedAt),
		m.DurationMs, m.Status, m.AudioPath, m.Summary, m.ActionItems,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// UpdateMeeting overwrites every mutable column of an existing meeting
func (mdb *MeetingDB) UpdateMeeting(ctx context.Context, m *types.Meeting) error {
	query := `
	UPDATE meetings SET title = ?, app_source = ?, started_at = ?, ended_at = ?, duration_ms = ?,
		status = ?, audio_path = ?, summary = ?, action_items = ?, updated_at = ?
	WHERE id = ?
	`

	res, err := mdb.db.ExecContext(ctx, query,
		m.Title, m.AppSource, formatTime(m.StartedAt), formatTimePtr(m.EndedAt), m.DurationMs,
		m.Status, m.AudioPath, m.Summary, m.ActionItems, formatTime(m.UpdatedAt), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update meeting %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

// DeleteMeeting removes a meeting; its segments go with it
func (mdb *MeetingDB) DeleteMeeting(ctx context.Context, id string) error {
	res, err := mdb.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to delete meeting %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetMeeting retrieves a meeting by id
func (mdb *MeetingDB) GetMeeting(ctx context.Context, id string) (*types.Meeting, error) {
	row := mdb.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get meeting %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListMeetings returns meetings newest first. limit defaults to 50 and is capped at 200.
func (mdb *MeetingDB) ListMeetings(ctx context.Context, limit, offset int) ([]*types.Meeting, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := mdb.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	meetings := []*types.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// ListSegments returns a meeting's segments ordered by start offset
func (mdb *MeetingDB) ListSegments(ctx context.Context, meetingID string) ([]types.MeetingSegment, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT id, meeting_id, speaker_id, speaker_name, text, start_ms, end_ms, created_at
	FROM meeting_segments WHERE meeting_id = ? ORDER BY start_ms ASC, rowid ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	segments := []types.MeetingSegment{}
	for rows.Next() {
		var (
			s         types.MeetingSegment
			speakerID sql.NullString
			name      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.MeetingID, &speakerID, &name, &s.Text, &s.StartMs, &s.EndMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		s.SpeakerID = nullString(speakerID)
		s.SpeakerName = nullString(name)
		s.CreatedAt = parseTime(createdAt)
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// CreateSegmentsBatch inserts all segments in one transaction
func (mdb *MeetingDB) CreateSegmentsBatch(ctx context.Context, segments []types.MeetingSegment) error {
	return mdb.withTx(ctx, func(tx *sql.Tx) error {
		return insertSegments(ctx, tx, segments)
	})
}

// ReplaceSegments swaps a meeting's segments for a new set atomically
func (mdb *MeetingDB) ReplaceSegments(ctx context.Context, meetingID string, segments []types.MeetingSegment) error {
	return mdb.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meeting_segments WHERE meeting_id = ?`, meetingID); err != nil {
			return fmt.Errorf("failed to clear segments: %w", err)
		}
		return insertSegments(ctx, tx, segments)
	})
}

// RenameSpeaker rewrites speaker_name for every segment of one meeting with the given speaker id
func (mdb *MeetingDB) RenameSpeaker(ctx context.Context, meetingID, speakerID, newName string) error {
	_, err := mdb.db.ExecContext(ctx,
		`UPDATE meeting_segments SET speaker_name = ? WHERE meeting_id = ? AND speaker_id = ?`,
		newName, meetingID, speakerID)
	if err != nil {
		return fmt.Errorf("failed to rename speaker: %w", err)
	}
	return nil
}

// AudioPaths returns every audio path still referenced by a meeting
func (mdb *MeetingDB) AudioPaths(ctx context.Context) (map[string]bool, error) {
	rows, err := mdb.db.QueryContext(ctx, `SELECT audio_path FROM meetings WHERE audio_path IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan audio path: %w", err)
		}
		paths[p] = true
	}
	return paths, rows.Err()
}

// Close closes the database connection
func (mdb *MeetingDB) Close() error {
	return mdb.db.Close()
}

func (mdb *MeetingDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertSegments(ctx context.Context, tx *sql.Tx, segments []types.MeetingSegment) error {
	if len(segments) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO meeting_segments (id, meeting_id, speaker_id, speaker_name, text, start_ms, end_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range segments {
		if s.EndMs < s.StartMs {
			return fmt.Errorf("segment %s ends before it starts (%d < %d)", s.ID, s.EndMs, s.StartMs)
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.MeetingID, s.SpeakerID, s.SpeakerName, s.Text,
			s.StartMs, s.EndMs, formatTime(s.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert segment: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row scanner) (*types.Meeting, error) {
	var (
		m                               types.Meeting
		appSource, endedAt, audioPath   sql.NullString
		summary, actionItems            sql.NullString
		startedAt, createdAt, updatedAt string
		duration                        sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.Title, &appSource, &startedAt, &endedAt, &duration, &m.Status,
		&audioPath, &summary, &actionItems, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.AppSource = nullString(appSource)
	m.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		m.EndedAt = &t
	}
	if duration.Valid {
		d := duration.Int64
		m.DurationMs = &d
	}
	m.Status = types.NormalizeStatus(m.Status)
	m.AudioPath = nullString(audioPath)
	m.Summary = nullString(summary)
	m.ActionItems = nullString(actionItems)
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return types.StringPtr(ns.String)
}

// timeLayout is fixed width so lexical order in SQLite matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
