package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"voicenotes/api/internal/bridge"
	"voicenotes/api/internal/hashutil"
	"voicenotes/api/internal/store"
)

// State is the panel's lifecycle position.
type State int

const (
	StateLoading State = iota
	StateEmpty
	StateViewing
	StateEditing
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// Form holds the user-editable fields. Explanation is a per-edit annotation,
// cleared after every successful save; only the latest is retained.
type Form struct {
	SuggestedContent string
	Explanation      string
}

// MessageSender delivers a message to the bridge, e.g. the close
// notification when the panel unloads.
type MessageSender func(bridge.Message) bridge.Response

// Controller runs the panel state machine. A note with an empty ID is an
// in-memory draft that has never been persisted.
type Controller struct {
	backend Backend
	send    MessageSender

	mu              sync.Mutex
	state           State
	voice           *bridge.VoiceMessage
	note            *store.Note
	draftSuggestion string
	form            Form
	lastErr         error
}

func NewController(backend Backend, send MessageSender) *Controller {
	return &Controller{
		backend: backend,
		send:    send,
		state:   StateLoading,
	}
}

// Listener adapts the controller to the bridge's panel listener contract.
func (c *Controller) Listener() bridge.PanelListener {
	return func(msg bridge.Message) {
		if msg.Action != bridge.ActionRenderVoiceMessage || msg.Voice == nil {
			return
		}
		_ = c.Render(context.Background(), msg.Voice)
	}
}

// Render loads the panel for a voice message: an existing note when the hash
// matches one, otherwise a fresh draft seeded from a grammar suggestion. A
// new message supersedes whatever was showing (last-write-wins).
func (c *Controller) Render(ctx context.Context, voice *bridge.VoiceMessage) error {
	c.mu.Lock()
	c.state = StateLoading
	c.voice = voice
	c.note = nil
	c.form = Form{}
	c.draftSuggestion = ""
	c.lastErr = nil
	c.mu.Unlock()

	messageHash := hashutil.MessageHash(voice.TextContent)
	note, err := c.backend.FindNoteByHash(ctx, messageHash)

	if err == nil {
		c.mu.Lock()
		c.note = &note
		c.form = Form{SuggestedContent: note.SuggestedContent}
		c.draftSuggestion = note.SuggestedContent
		c.state = StateViewing
		c.mu.Unlock()
		return nil
	}

	if !errors.Is(err, ErrNotFound) {
		c.fail(err)
		return err
	}

	suggestion, err := c.backend.CorrectGrammar(ctx, voice.TextContent)
	if err != nil {
		c.fail(err)
		return err
	}

	draft := store.Note{
		MessageHash:      messageHash,
		SessionID:        voice.SessionID,
		TextContent:      voice.TextContent,
		Speaker:          voice.Speaker,
		Duration:         voice.Duration,
		SuggestedContent: suggestion.SuggestedContent,
		Explanation:      suggestion.Explanation,
		Status:           store.StatusProcessed,
	}

	c.mu.Lock()
	c.note = &draft
	c.form = Form{SuggestedContent: suggestion.SuggestedContent}
	c.draftSuggestion = suggestion.SuggestedContent
	c.state = StateViewing
	c.mu.Unlock()
	return nil
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.state = StateEmpty
	c.mu.Unlock()
}

// Edit switches into editing; only an explicit user action from Viewing gets
// here.
func (c *Controller) Edit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateViewing {
		return fmt.Errorf("cannot edit while %s", c.state)
	}
	c.state = StateEditing
	return nil
}

// SetForm replaces the in-form values while editing.
func (c *Controller) SetForm(form Form) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing {
		return fmt.Errorf("cannot change the form while %s", c.state)
	}
	c.form = form
	return nil
}

// Save submits the form. A draft becomes a created note; a persisted note is
// partially updated and the server stamps user_modified. On failure the
// panel returns to editing with the input preserved.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateEditing {
		c.mu.Unlock()
		return fmt.Errorf("cannot save while %s", c.state)
	}
	if strings.TrimSpace(c.form.SuggestedContent) == "" {
		c.lastErr = errors.New("suggested content is required")
		c.mu.Unlock()
		return c.lastErr
	}
	c.state = StateSaving
	note := *c.note
	form := c.form
	draftSuggestion := c.draftSuggestion
	c.mu.Unlock()

	var saved store.Note
	var err error
	if note.ID == "" {
		// Saving an untouched suggestion keeps the system-generated status;
		// any change to content or a supplied explanation marks it as the
		// user's.
		status := store.StatusProcessed
		if form.SuggestedContent != draftSuggestion || form.Explanation != "" {
			status = store.StatusUserModified
		}
		saved, err = c.backend.CreateNote(ctx, CreateNoteRequest{
			SessionID:        note.SessionID,
			TextContent:      note.TextContent,
			Speaker:          note.Speaker,
			Duration:         note.Duration,
			SuggestedContent: form.SuggestedContent,
			Explanation:      form.Explanation,
			Status:           status,
		})
	} else {
		saved, err = c.backend.UpdateNote(ctx, note.ID, UpdateNoteRequest{
			SuggestedContent: &form.SuggestedContent,
			Explanation:      &form.Explanation,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateEditing
		c.lastErr = err
		return err
	}

	c.note = &saved
	c.draftSuggestion = saved.SuggestedContent
	c.form = Form{SuggestedContent: saved.SuggestedContent}
	c.state = StateViewing
	c.lastErr = nil
	return nil
}

// Cancel discards in-form edits and restores the last-known-good values.
// Never contacts the backend.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing {
		return fmt.Errorf("cannot cancel while %s", c.state)
	}
	c.form = Form{SuggestedContent: c.note.SuggestedContent}
	c.state = StateViewing
	return nil
}

// ToggleBookmark flips the bookmark on the persisted note immediately,
// without entering edit mode and without touching in-progress edits.
func (c *Controller) ToggleBookmark(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateViewing && c.state != StateEditing {
		c.mu.Unlock()
		return fmt.Errorf("cannot bookmark while %s", c.state)
	}
	if c.note == nil || c.note.ID == "" {
		c.mu.Unlock()
		return errors.New("cannot bookmark an unsaved note")
	}
	id := c.note.ID
	target := !c.note.IsBookmarked
	c.mu.Unlock()

	saved, err := c.backend.UpdateNote(ctx, id, UpdateNoteRequest{IsBookmarked: &target})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		return err
	}
	// Refresh the persisted record but leave the form alone: a bookmark
	// toggle must not clobber an edit in progress.
	c.note.IsBookmarked = saved.IsBookmarked
	c.note.Status = saved.Status
	c.note.UpdatedAt = saved.UpdatedAt
	return nil
}

// Close notifies the bridge and clears all local state; no draft survives a
// close.
func (c *Controller) Close() {
	if c.send != nil {
		c.send(bridge.Message{Action: bridge.ActionCloseSidePanel})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateLoading
	c.voice = nil
	c.note = nil
	c.form = Form{}
	c.draftSuggestion = ""
	c.lastErr = nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Note returns a copy of the current note, persisted or draft; ok is false
// when nothing is loaded.
func (c *Controller) Note() (store.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.note == nil {
		return store.Note{}, false
	}
	return *c.note, true
}

func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
