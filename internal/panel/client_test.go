package panel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicenotes/api/internal/hashutil"
	"voicenotes/api/internal/store"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, body map[string]any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientFindNoteByHash(t *testing.T) {
	text := "I go to store yesterday"
	hash := hashutil.MessageHash(text)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/transcripts/"+hash {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeEnvelope(t, w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"id":               "note_1",
				"messageHash":      hash,
				"textContent":      text,
				"suggestedContent": "I went to the store yesterday",
				"status":           "processed",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	note, err := client.FindNoteByHash(context.Background(), hash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if note.ID != "note_1" || note.Status != store.StatusProcessed {
		t.Errorf("decoded wrong note: %+v", note)
	}
}

func TestClientFindMissIsErrNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "NOT_FOUND",
			"message": "note not found",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FindNoteByHash(context.Background(), "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientCreateFillsMessageHash(t *testing.T) {
	text := "she dont like it"
	var got CreateNoteRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcripts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeEnvelope(t, w, http.StatusCreated, map[string]any{
			"success": true,
			"data":    map[string]any{"id": "note_2", "messageHash": got.MessageHash},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	note, err := client.CreateNote(context.Background(), CreateNoteRequest{
		SessionID:        "sess_1",
		TextContent:      text,
		SuggestedContent: "She doesn't like it",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.MessageHash != hashutil.MessageHash(text) {
		t.Errorf("client sent hash %q, want digest of text content", got.MessageHash)
	}
	if note.ID != "note_2" {
		t.Errorf("decoded wrong note: %+v", note)
	}
}

func TestClientUpdateSendsOnlySetFields(t *testing.T) {
	var raw map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/transcripts/note_3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeEnvelope(t, w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"id": "note_3", "isBookmarked": true},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	bookmarked := true
	note, err := client.UpdateNote(context.Background(), "note_3", UpdateNoteRequest{IsBookmarked: &bookmarked})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !note.IsBookmarked {
		t.Errorf("decoded wrong note: %+v", note)
	}
	if _, ok := raw["isBookmarked"]; !ok {
		t.Error("isBookmarked missing from payload")
	}
	if _, ok := raw["suggestedContent"]; ok {
		t.Error("unset fields must be omitted, not sent as null")
	}
}

func TestClientSurfacesServerErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   "VALIDATION_ERROR",
			"message": "suggestedContent is required",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.CreateNote(context.Background(), CreateNoteRequest{TextContent: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "suggestedContent is required") {
		t.Fatalf("server message lost: %v", err)
	}
}

func TestClientDeleteMapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		writeEnvelope(t, w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "NOT_FOUND",
			"message": "note not found",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.DeleteNote(context.Background(), "note_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientCorrectGrammar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/grammar/correct" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["text"] != "he go home" {
			t.Errorf("text = %q", body["text"])
		}
		writeEnvelope(t, w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"suggestedContent": "He goes home",
				"explanation":      "Third person singular.",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	suggestion, err := client.CorrectGrammar(context.Background(), "he go home")
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if suggestion.SuggestedContent != "He goes home" {
		t.Errorf("decoded wrong suggestion: %+v", suggestion)
	}
}
