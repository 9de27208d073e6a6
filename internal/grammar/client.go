// Package grammar wraps the external LLM call that produces a corrected
// version of a spoken transcript. The provider is treated as an untrusted
// collaborator: slow, rate-limited, and occasionally malformed. Every failure
// mode maps to a typed error so callers never see provider shapes.
package grammar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Suggestion is the bounded response shape promised to callers.
type Suggestion struct {
	SuggestedContent string `json:"suggestedContent"`
	Explanation      string `json:"explanation"`
}

const systemPrompt = `You are helping improve spoken English for better fluency and naturalness.
Respond ONLY in valid JSON format with these two fields:
- "suggestedContent": the improved version of the sentence
- "explanation": brief explanation of what was improved and why within 20 words.
Be concise and direct in your explanations.`

type Client struct {
	apiURL     string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient builds a client for the messages endpoint. The API key is a
// deployment secret, never a per-request input.
func NewClient(apiURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system"`
	Messages  []requestMessage `json:"messages"`
}

type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Correct asks the provider for an improved version of text. Single attempt,
// bounded by the configured timeout.
func (c *Client) Correct(ctx context.Context, text string) (Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: 500,
		System:    systemPrompt,
		Messages: []requestMessage{
			{Role: "user", Content: fmt.Sprintf("Improve this spoken English sentence: %q", text)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Suggestion{}, fmt.Errorf("marshal grammar request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, fmt.Errorf("build grammar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Suggestion{}, ErrUpstreamTimeout
		}
		return Suggestion{}, fmt.Errorf("grammar request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Suggestion{}, fmt.Errorf("read grammar response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe providerError
		message := "grammar provider error"
		if err := json.Unmarshal(raw, &pe); err == nil && pe.Error.Message != "" {
			message = pe.Error.Message
		}
		return Suggestion{}, &UpstreamError{Status: resp.StatusCode, Message: message}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Suggestion{}, &FormatError{Reason: "response is not valid JSON"}
	}
	if len(parsed.Content) == 0 {
		return Suggestion{}, &FormatError{Reason: "response has no content blocks"}
	}

	return parseSuggestion(parsed.Content[0].Text)
}

// parseSuggestion enforces the bounded response shape: the model's text must
// be a JSON object carrying both required fields.
func parseSuggestion(text string) (Suggestion, error) {
	var fields struct {
		SuggestedContent *string `json:"suggestedContent"`
		Explanation      *string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return Suggestion{}, &FormatError{Reason: "suggestion payload is not valid JSON"}
	}
	if fields.SuggestedContent == nil || fields.Explanation == nil {
		return Suggestion{}, &FormatError{Reason: "suggestion payload missing required fields"}
	}
	return Suggestion{
		SuggestedContent: *fields.SuggestedContent,
		Explanation:      *fields.Explanation,
	}, nil
}
