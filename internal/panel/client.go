// Package panel drives the side-panel surface: a small state machine that
// reacts to rendered voice messages, loads or drafts the matching note, and
// pushes edits back through the notes API.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voicenotes/api/internal/grammar"
	"voicenotes/api/internal/hashutil"
	"voicenotes/api/internal/store"
)

// ErrNotFound reports a lookup miss, distinct from a backend failure.
var ErrNotFound = errors.New("note not found")

// CreateNoteRequest is the client-side create payload. MessageHash is filled
// in by the client from TextContent so every caller uses the agreed digest.
type CreateNoteRequest struct {
	MessageHash      string `json:"messageHash"`
	SessionID        string `json:"sessionId"`
	TextContent      string `json:"textContent"`
	Speaker          string `json:"speaker,omitempty"`
	Duration         string `json:"duration,omitempty"`
	SuggestedContent string `json:"suggestedContent"`
	Explanation      string `json:"explanation"`
	Status           string `json:"status,omitempty"`
}

// UpdateNoteRequest carries only the fields being changed.
type UpdateNoteRequest struct {
	SuggestedContent *string `json:"suggestedContent,omitempty"`
	Explanation      *string `json:"explanation,omitempty"`
	IsBookmarked     *bool   `json:"isBookmarked,omitempty"`
}

// Backend is everything the controller needs from the notes service.
type Backend interface {
	FindNoteByHash(ctx context.Context, messageHash string) (store.Note, error)
	CreateNote(ctx context.Context, req CreateNoteRequest) (store.Note, error)
	UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (store.Note, error)
	DeleteNote(ctx context.Context, id string) error
	CorrectGrammar(ctx context.Context, text string) (grammar.Suggestion, error)
}

// Client is the REST implementation of Backend against the notes API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: invalid response body", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := env.Message
		if message == "" {
			message = env.Error
		}
		return nil, resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, message)
	}
	return env.Data, resp.StatusCode, nil
}

func (c *Client) FindNoteByHash(ctx context.Context, messageHash string) (store.Note, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/transcripts/"+messageHash, nil)
	if status == http.StatusNotFound {
		return store.Note{}, ErrNotFound
	}
	if err != nil {
		return store.Note{}, err
	}
	var note store.Note
	if err := json.Unmarshal(data, &note); err != nil {
		return store.Note{}, fmt.Errorf("decode note: %w", err)
	}
	return note, nil
}

func (c *Client) CreateNote(ctx context.Context, req CreateNoteRequest) (store.Note, error) {
	req.MessageHash = hashutil.MessageHash(req.TextContent)
	data, _, err := c.do(ctx, http.MethodPost, "/transcripts", req)
	if err != nil {
		return store.Note{}, err
	}
	var note store.Note
	if err := json.Unmarshal(data, &note); err != nil {
		return store.Note{}, fmt.Errorf("decode note: %w", err)
	}
	return note, nil
}

func (c *Client) UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (store.Note, error) {
	data, status, err := c.do(ctx, http.MethodPut, "/transcripts/"+id, req)
	if status == http.StatusNotFound {
		return store.Note{}, ErrNotFound
	}
	if err != nil {
		return store.Note{}, err
	}
	var note store.Note
	if err := json.Unmarshal(data, &note); err != nil {
		return store.Note{}, fmt.Errorf("decode note: %w", err)
	}
	return note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	_, status, err := c.do(ctx, http.MethodDelete, "/transcripts/"+id, nil)
	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func (c *Client) CorrectGrammar(ctx context.Context, text string) (grammar.Suggestion, error) {
	data, _, err := c.do(ctx, http.MethodPost, "/grammar/correct", map[string]string{"text": text})
	if err != nil {
		return grammar.Suggestion{}, err
	}
	var suggestion grammar.Suggestion
	if err := json.Unmarshal(data, &suggestion); err != nil {
		return grammar.Suggestion{}, fmt.Errorf("decode suggestion: %w", err)
	}
	return suggestion, nil
}
