package extract

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html><body>
<div class="chat">
  <div class="rounded-2xl">
    <span class="text-fg-secondary">Student</span>
    <p class="css-146c3p1 text-fg-primary">I go to store yesterday</p>
    <span class="font-mono">0:12</span>
  </div>
  <div class="rounded-2xl">
    <p class="css-146c3p1 text-fg-primary">
      She   dont
      like it
    </p>
    <div class="voice-action-buttons"></div>
  </div>
  <div class="rounded-2xl">
    <span class="text-fg-secondary">Tutor</span>
  </div>
</div>
</body></html>`

func TestParseExtractsCandidatesInOrder(t *testing.T) {
	candidates, err := Parse(strings.NewReader(samplePage), "sess_9")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// The third container has no readable text and is dropped.
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.Voice.TextContent != "I go to store yesterday" {
		t.Errorf("text = %q", first.Voice.TextContent)
	}
	if first.Voice.Speaker != "Student" || first.Voice.Duration != "0:12" {
		t.Errorf("metadata = %q / %q", first.Voice.Speaker, first.Voice.Duration)
	}
	if first.Voice.SessionID != "sess_9" {
		t.Errorf("sessionID = %q", first.Voice.SessionID)
	}
	if first.Voice.Index != 0 || candidates[1].Voice.Index != 1 {
		t.Errorf("indexes = %d, %d", first.Voice.Index, candidates[1].Voice.Index)
	}
	if first.Injected {
		t.Error("first container has no marker")
	}
}

func TestParseCollapsesWhitespace(t *testing.T) {
	candidates, err := Parse(strings.NewReader(samplePage), "s")
	if err != nil {
		t.Fatal(err)
	}
	if got := candidates[1].Voice.TextContent; got != "She dont like it" {
		t.Errorf("text = %q, want whitespace collapsed", got)
	}
}

func TestParseMarksInjectedContainers(t *testing.T) {
	candidates, err := Parse(strings.NewReader(samplePage), "s")
	if err != nil {
		t.Fatal(err)
	}
	if candidates[0].Injected {
		t.Error("container 0 wrongly marked injected")
	}
	if !candidates[1].Injected {
		t.Error("container 1 carries the marker and must be skipped by injection")
	}
}

func TestParseMissingMetadataIsOptional(t *testing.T) {
	page := `<div class="rounded-2xl"><p class="css-146c3p1 text-fg-primary">bare text</p></div>`
	candidates, err := Parse(strings.NewReader(page), "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Voice.Speaker != "" || candidates[0].Voice.Duration != "" {
		t.Errorf("missing decorations must stay empty: %+v", candidates[0].Voice)
	}
}

func TestSessionIDFromURL(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/session/abc123", "abc123", true},
		{"/session/abc123/review", "abc123", true},
		{"/session/", "", false},
		{"/settings", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := SessionIDFromURL(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SessionIDFromURL(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("burst produced %d calls, want 1", got)
	}
}

func TestDebouncerRunsAgainAfterQuiet(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(30 * time.Millisecond)
	d.Trigger()
	time.Sleep(30 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 separate runs, got %d", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(15*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	time.Sleep(40 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("stopped debouncer still ran %d times", got)
	}
}
