package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"voicenotes/api/internal/grammar"
	"voicenotes/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health/simple" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ok"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"success": status == "ok",
			"status":  status,
			"checks":  checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/grammar/correct" {
		s.handleGrammarCorrect(w, r)
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) > 0 && segments[0] == "transcripts" {
		switch {
		case r.Method == http.MethodGet && len(segments) == 1:
			s.handleListNotes(w, r)
			return
		case r.Method == http.MethodGet && len(segments) == 2:
			s.handleFindNoteByHash(w, r, segments[1])
			return
		case r.Method == http.MethodPost && len(segments) == 1:
			s.handleCreateNote(w, r)
			return
		case r.Method == http.MethodPut && len(segments) == 2:
			s.handleUpdateNote(w, r, segments[1])
			return
		case r.Method == http.MethodDelete && len(segments) == 2:
			s.handleDeleteNote(w, r, segments[1])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleListNotes(w http.ResponseWriter, r *http.Request) {
	filter := store.NoteFilter{
		SessionID: strings.TrimSpace(r.URL.Query().Get("sessionId")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("isBookmarked")); raw != "" {
		switch raw {
		case "true":
			bookmarked := true
			filter.IsBookmarked = &bookmarked
		case "false":
			bookmarked := false
			filter.IsBookmarked = &bookmarked
		default:
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "isBookmarked must be true or false", nil)
			return
		}
	}

	notes, err := s.service.ListNotes(r.Context(), filter)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeData(w, http.StatusOK, notes)
}

func (s *HTTPServer) handleFindNoteByHash(w http.ResponseWriter, r *http.Request, messageHash string) {
	note, err := s.service.FindNoteByHash(r.Context(), messageHash)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeData(w, http.StatusOK, note)
}

func (s *HTTPServer) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var input CreateNoteInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	note, created, err := s.service.CreateNote(r.Context(), input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	// Duplicate hash answers 200 with the note that already holds it.
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeData(w, status, note)
}

func (s *HTTPServer) handleUpdateNote(w http.ResponseWriter, r *http.Request, id string) {
	var input UpdateNoteInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	note, err := s.service.UpdateNote(r.Context(), id, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeData(w, http.StatusOK, note)
}

func (s *HTTPServer) handleDeleteNote(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteNote(r.Context(), id); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleGrammarCorrect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	suggestion, err := s.service.CorrectGrammar(r.Context(), body.Text)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeData(w, http.StatusOK, suggestion)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// mapError translates failures into the response envelope. NOT_FOUND misses
// are expected and stay out of the error log; only unmapped failures land on
// the generic 500 branch and get logged.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	if errors.Is(err, grammar.ErrUpstreamTimeout) {
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Grammar provider timed out", nil
	}
	var upstreamErr *grammar.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Status, "UPSTREAM_ERROR", upstreamErr.Message, nil
	}
	var formatErr *grammar.FormatError
	if errors.As(err, &formatErr) {
		return http.StatusBadGateway, "UPSTREAM_FORMAT_ERROR", formatErr.Reason, nil
	}

	log.Printf("unexpected error: %v", err)
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
