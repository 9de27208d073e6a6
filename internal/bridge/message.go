// Package bridge is the background coordinator between the content script,
// the side panel, and the backend. Messages form a closed tagged union so the
// dispatcher routes by tag instead of call sites filtering raw action strings.
package bridge

// Action tags every message crossing the extension's process boundary.
type Action string

const (
	ActionOpenSidePanel      Action = "OPEN_SIDE_PANEL"
	ActionCloseSidePanel     Action = "CLOSE_SIDE_PANEL"
	ActionSendVoiceMessage   Action = "SEND_VOICE_MESSAGE"
	ActionRenderVoiceMessage Action = "RENDER_VOICE_MESSAGE"
)

// VoiceMessage is an ephemeral transcript excerpt extracted from the host
// page. It is never persisted directly; notes key off the hash of
// TextContent.
type VoiceMessage struct {
	SessionID   string `json:"sessionId"`
	TextContent string `json:"textContent"`
	Index       int    `json:"index"`
	Speaker     string `json:"speaker,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// Message carries an action tag and, for voice actions, its payload.
type Message struct {
	Action Action        `json:"action"`
	Voice  *VoiceMessage `json:"data,omitempty"`
}

// Sender identifies the tab a message originated from.
type Sender struct {
	TabID int
	URL   string
}

// Response is always returned to the original sender; a request is never
// left unanswered.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
