package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"voicenotes/api/internal/config"
	"voicenotes/api/internal/grammar"
	"voicenotes/api/internal/hashutil"
	"voicenotes/api/internal/store"
	"voicenotes/api/internal/util"
)

type dataStore interface {
	Ping(ctx context.Context) error
	FindNoteByHash(ctx context.Context, messageHash string) (store.Note, error)
	GetNote(ctx context.Context, id string) (store.Note, error)
	InsertNote(ctx context.Context, note store.Note) (store.Note, bool, error)
	UpdateNote(ctx context.Context, note store.Note) error
	ListNotes(ctx context.Context, filter store.NoteFilter) ([]store.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

type grammarService interface {
	Correct(ctx context.Context, text string) (grammar.Suggestion, error)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	grammar grammarService
	now     func() time.Time
}

func New(cfg config.Config, dataStore dataStore, grammarSvc grammarService) *Service {
	return &Service{
		cfg:     cfg,
		store:   dataStore,
		grammar: grammarSvc,
		now:     time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type CreateNoteInput struct {
	MessageHash      string `json:"messageHash"`
	SessionID        string `json:"sessionId"`
	TextContent      string `json:"textContent"`
	Speaker          string `json:"speaker"`
	Duration         string `json:"duration"`
	SuggestedContent string `json:"suggestedContent"`
	Explanation      string `json:"explanation"`
	Status           string `json:"status"`
}

type UpdateNoteInput struct {
	SuggestedContent *string `json:"suggestedContent"`
	Explanation      *string `json:"explanation"`
	IsBookmarked     *bool   `json:"isBookmarked"`
	// Status is accepted for wire compatibility and ignored: the server
	// stamps it from what actually changed.
	Status *string `json:"status"`
}

// FindNoteByHash distinguishes an absent note from a backend failure: a miss
// is a NOT_FOUND domain error, never a generic one.
func (s *Service) FindNoteByHash(ctx context.Context, messageHash string) (store.Note, error) {
	note, err := s.store.FindNoteByHash(ctx, messageHash)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Note{}, domainError(http.StatusNotFound, "NOT_FOUND", "Note not found", nil)
	}
	if err != nil {
		return store.Note{}, err
	}
	return note, nil
}

// CreateNote persists a new note. Duplicate message hashes are idempotent:
// the existing note comes back with created=false instead of an error, since
// create is conceptually keyed by hash.
func (s *Service) CreateNote(ctx context.Context, input CreateNoteInput) (store.Note, bool, error) {
	if err := validateCreate(input); err != nil {
		return store.Note{}, false, err
	}

	status := input.Status
	if status == "" {
		status = store.StatusProcessed
	}

	now := s.now().UTC()
	note := store.Note{
		ID:               util.NewID("note"),
		MessageHash:      input.MessageHash,
		SessionID:        input.SessionID,
		TextContent:      input.TextContent,
		Speaker:          input.Speaker,
		Duration:         input.Duration,
		SuggestedContent: input.SuggestedContent,
		Explanation:      input.Explanation,
		Status:           status,
		IsBookmarked:     false,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	saved, created, err := s.store.InsertNote(ctx, note)
	if err != nil {
		return store.Note{}, false, err
	}
	return saved, created, nil
}

func validateCreate(input CreateNoteInput) error {
	switch {
	case strings.TrimSpace(input.MessageHash) == "":
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "messageHash is required", nil)
	case strings.TrimSpace(input.SessionID) == "":
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sessionId is required", nil)
	case strings.TrimSpace(input.TextContent) == "":
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "textContent is required", nil)
	case strings.TrimSpace(input.SuggestedContent) == "":
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "suggestedContent is required", nil)
	}
	if input.Status != "" && input.Status != store.StatusProcessed && input.Status != store.StatusUserModified {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be processed or user_modified", nil)
	}
	// The hash is the join key between extension and backend; reject payloads
	// where the two ends disagree on the algorithm.
	if input.MessageHash != hashutil.MessageHash(input.TextContent) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "messageHash does not match textContent", nil)
	}
	return nil
}

// UpdateNote applies a partial update. Content-changing fields stamp
// status=user_modified server-side; bookmark-only updates leave status
// untouched. updated_at advances on every call.
func (s *Service) UpdateNote(ctx context.Context, id string, input UpdateNoteInput) (store.Note, error) {
	note, err := s.store.GetNote(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Note{}, domainError(http.StatusNotFound, "NOT_FOUND", "Note not found", nil)
	}
	if err != nil {
		return store.Note{}, err
	}

	contentChanged := false
	if input.SuggestedContent != nil {
		if strings.TrimSpace(*input.SuggestedContent) == "" {
			return store.Note{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "suggestedContent must not be empty", nil)
		}
		note.SuggestedContent = *input.SuggestedContent
		contentChanged = true
	}
	if input.Explanation != nil {
		note.Explanation = *input.Explanation
		contentChanged = true
	}
	if input.IsBookmarked != nil {
		note.IsBookmarked = *input.IsBookmarked
	}
	if contentChanged {
		note.Status = store.StatusUserModified
	}

	updatedAt := s.now().UTC()
	if !updatedAt.After(note.UpdatedAt) {
		updatedAt = note.UpdatedAt.Add(time.Microsecond)
	}
	note.UpdatedAt = updatedAt

	if err := s.store.UpdateNote(ctx, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Note{}, domainError(http.StatusNotFound, "NOT_FOUND", "Note not found", nil)
		}
		return store.Note{}, err
	}
	return note, nil
}

func (s *Service) ListNotes(ctx context.Context, filter store.NoteFilter) ([]store.Note, error) {
	return s.store.ListNotes(ctx, filter)
}

// DeleteNote exists in the service contract; no UI control drives it.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	err := s.store.DeleteNote(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Note not found", nil)
	}
	return err
}

func (s *Service) CorrectGrammar(ctx context.Context, text string) (grammar.Suggestion, error) {
	if strings.TrimSpace(text) == "" {
		return grammar.Suggestion{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	return s.grammar.Correct(ctx, text)
}
