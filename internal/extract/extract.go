// Package extract pulls voice-message transcripts out of the host page's
// rendered HTML. The page structure is not ours, so the selectors are fixed
// structural anchors observed in the wild; when the page redesigns, this is
// the package to fix.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"voicenotes/api/internal/bridge"
)

// InjectionMarker tags a container that already has action buttons injected.
// Its presence makes a rescan skip the container.
const InjectionMarker = "voice-action-buttons"

var (
	containerSel = cascadia.MustCompile(".rounded-2xl")
	textSel      = cascadia.MustCompile(".css-146c3p1.text-fg-primary")
	speakerSel   = cascadia.MustCompile(".text-fg-secondary")
	durationSel  = cascadia.MustCompile(".font-mono")
	markerSel    = cascadia.MustCompile("." + InjectionMarker)
)

// Candidate is one transcript container found in the page: the extracted
// voice message plus whether this container already carries injected buttons.
type Candidate struct {
	Voice    bridge.VoiceMessage
	Injected bool
}

// Parse reads an HTML document and extracts transcript candidates in document
// order. Containers without readable text content are skipped; speaker and
// duration are optional decorations.
func Parse(r io.Reader, sessionID string) ([]Candidate, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return FromDocument(doc, sessionID), nil
}

// FromDocument extracts candidates from an already-parsed document.
func FromDocument(doc *html.Node, sessionID string) []Candidate {
	var candidates []Candidate
	for i, container := range cascadia.QueryAll(doc, containerSel) {
		text := textOf(cascadia.Query(container, textSel))
		if text == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Voice: bridge.VoiceMessage{
				SessionID:   sessionID,
				TextContent: text,
				Index:       i,
				Speaker:     textOf(cascadia.Query(container, speakerSel)),
				Duration:    textOf(cascadia.Query(container, durationSel)),
			},
			Injected: cascadia.Query(container, markerSel) != nil,
		})
	}
	return candidates
}

// SessionIDFromURL pulls the session id out of a /session/<id> page path.
func SessionIDFromURL(path string) (string, bool) {
	const prefix = "/session/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// textOf flattens the text nodes under n, collapsing runs of whitespace the
// way a browser renders them.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
