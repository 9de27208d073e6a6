package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const noteColumns = `id, message_hash, session_id, text_content, COALESCE(speaker, ''), COALESCE(duration, ''), suggested_content, explanation, status, is_bookmarked, created_at, updated_at`

func scanNote(row interface{ Scan(...any) error }) (Note, error) {
	var note Note
	err := row.Scan(
		&note.ID,
		&note.MessageHash,
		&note.SessionID,
		&note.TextContent,
		&note.Speaker,
		&note.Duration,
		&note.SuggestedContent,
		&note.Explanation,
		&note.Status,
		&note.IsBookmarked,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	return note, err
}

func (s *PostgresStore) FindNoteByHash(ctx context.Context, messageHash string) (Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE message_hash=$1`
	note, err := scanNote(s.db.QueryRowContext(ctx, query, messageHash))
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, id string) (Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id=$1`
	note, err := scanNote(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return Note{}, err
	}
	return note, nil
}

// InsertNote writes a new note. The unique index on message_hash decides
// duplicate creates: when another row already holds the hash, the existing
// note is returned with created=false and nothing is written.
func (s *PostgresStore) InsertNote(ctx context.Context, note Note) (Note, bool, error) {
	const insert = `
		INSERT INTO notes (id, message_hash, session_id, text_content, speaker, duration,
			suggested_content, explanation, status, is_bookmarked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_hash) DO NOTHING
		RETURNING ` + noteColumns
	inserted, err := scanNote(s.db.QueryRowContext(ctx, insert,
		note.ID, note.MessageHash, note.SessionID, note.TextContent,
		note.Speaker, note.Duration, note.SuggestedContent, note.Explanation,
		note.Status, note.IsBookmarked, note.CreatedAt, note.UpdatedAt,
	))
	if err == nil {
		return inserted, true, nil
	}
	if err != sql.ErrNoRows {
		return Note{}, false, fmt.Errorf("insert note: %w", err)
	}

	existing, err := s.FindNoteByHash(ctx, note.MessageHash)
	if err != nil {
		return Note{}, false, fmt.Errorf("lookup conflicting note: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, note Note) error {
	const update = `
		UPDATE notes
		SET suggested_content=$2, explanation=$3, status=$4, is_bookmarked=$5, updated_at=$6
		WHERE id=$1
	`
	result, err := s.db.ExecContext(ctx, update,
		note.ID, note.SuggestedContent, note.Explanation, note.Status,
		note.IsBookmarked, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, filter NoteFilter) ([]Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var clauses []string
	var args []any
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		clauses = append(clauses, "session_id=$"+strconv.Itoa(len(args)))
	}
	if filter.IsBookmarked != nil {
		args = append(args, *filter.IsBookmarked)
		clauses = append(clauses, "is_bookmarked=$"+strconv.Itoa(len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
