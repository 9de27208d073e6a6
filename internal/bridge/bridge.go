package bridge

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
)

// PanelHost abstracts the platform side-panel API. Its failures are reported
// to the requester, never thrown past the dispatcher.
type PanelHost interface {
	SetOptions(tabID int, enabled bool) error
	Open(tabID int) error
}

// PlatformError wraps a PanelHost failure.
type PlatformError struct {
	Op    string
	Cause error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("side panel %s: %v", e.Op, e.Cause)
}

func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// PanelListener receives messages re-broadcast to the panel surface.
type PanelListener func(Message)

// tabState is per-tab: the enabled gate plus the last forwarded voice
// message. Keeping the slot per tab means concurrent sessions in different
// tabs cannot clobber each other.
type tabState struct {
	enabled   bool
	lastVoice *VoiceMessage
}

// Bridge owns side-panel state per browser tab and routes every inbound
// message by its action tag. Handlers are independent and safe to invoke
// from concurrent callbacks.
type Bridge struct {
	host        PanelHost
	sessionHost string

	mu    sync.Mutex
	tabs  map[int]*tabState
	panel PanelListener
}

func New(host PanelHost, sessionHost string) *Bridge {
	return &Bridge{
		host:        host,
		sessionHost: sessionHost,
		tabs:        make(map[int]*tabState),
	}
}

// RegisterPanel installs the single panel listener. Re-registering replaces
// the previous listener; there is never more than one.
func (b *Bridge) RegisterPanel(listener PanelListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panel = listener
}

// UnregisterPanel detaches the panel listener, e.g. when the panel unloads.
func (b *Bridge) UnregisterPanel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panel = nil
}

// HandleTabUpdated reacts to a navigation in tabID: the panel is enabled
// exactly when the new URL is a supported session page, whatever the prior
// state was.
func (b *Bridge) HandleTabUpdated(tabID int, rawURL string) {
	b.syncTab(tabID, rawURL)
}

// HandleTabActivated reacts to the user switching to tabID.
func (b *Bridge) HandleTabActivated(tabID int, rawURL string) {
	b.syncTab(tabID, rawURL)
}

func (b *Bridge) syncTab(tabID int, rawURL string) {
	enabled := b.isSessionURL(rawURL)

	b.mu.Lock()
	b.tab(tabID).enabled = enabled
	b.mu.Unlock()

	if err := b.host.SetOptions(tabID, enabled); err != nil {
		log.Printf("bridge: set panel options for tab %d: %v", tabID, err)
	}
}

// HandleMessage is the single dispatcher for inbound extension messages.
func (b *Bridge) HandleMessage(sender Sender, msg Message) Response {
	switch msg.Action {
	case ActionOpenSidePanel:
		return b.openPanel(sender)
	case ActionSendVoiceMessage:
		return b.forwardVoiceMessage(sender, msg)
	case ActionCloseSidePanel:
		return b.closePanel(sender)
	case ActionRenderVoiceMessage:
		// Panel-bound only; the bridge emits it but never accepts it.
		return Response{Success: false, Error: "RENDER_VOICE_MESSAGE is not an inbound action"}
	default:
		return Response{Success: false, Error: fmt.Sprintf("unsupported action %q", msg.Action)}
	}
}

// openPanel services an explicit user request to open the panel. The request
// is rejected, not dropped, when the sender tab is not a supported session
// page.
func (b *Bridge) openPanel(sender Sender) Response {
	if !b.isSessionURL(sender.URL) {
		return Response{Success: false, Error: "tab is not a supported session page"}
	}

	b.mu.Lock()
	b.tab(sender.TabID).enabled = true
	b.mu.Unlock()

	if err := b.host.SetOptions(sender.TabID, true); err != nil {
		platformErr := &PlatformError{Op: "set options", Cause: err}
		return Response{Success: false, Error: platformErr.Error()}
	}
	if err := b.host.Open(sender.TabID); err != nil {
		platformErr := &PlatformError{Op: "open", Cause: err}
		return Response{Success: false, Error: platformErr.Error()}
	}
	return Response{Success: true}
}

// forwardVoiceMessage re-broadcasts a content-script voice message to the
// panel. At-most-once: with no panel listening the message is dropped, and
// the sender learns it was not delivered. No queue, no retry.
func (b *Bridge) forwardVoiceMessage(sender Sender, msg Message) Response {
	if msg.Voice == nil {
		return Response{Success: false, Error: "missing voice message payload"}
	}

	b.mu.Lock()
	listener := b.panel
	if listener != nil {
		b.tab(sender.TabID).lastVoice = msg.Voice
	}
	b.mu.Unlock()

	if listener == nil {
		return Response{Success: false, Error: "no panel listening"}
	}

	listener(Message{Action: ActionRenderVoiceMessage, Voice: msg.Voice})
	return Response{Success: true}
}

// closePanel clears transient bridge state for the sender's tab. The
// enabled gate is driven by tab URLs and is untouched here.
func (b *Bridge) closePanel(sender Sender) Response {
	b.mu.Lock()
	if state, ok := b.tabs[sender.TabID]; ok {
		state.lastVoice = nil
	}
	b.mu.Unlock()
	return Response{Success: true}
}

// PanelEnabled reports the current gate for a tab.
func (b *Bridge) PanelEnabled(tabID int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.tabs[tabID]
	return ok && state.enabled
}

// LastVoice returns the last voice message forwarded from a tab, if any.
func (b *Bridge) LastVoice(tabID int) *VoiceMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.tabs[tabID]
	if !ok {
		return nil
	}
	return state.lastVoice
}

// tab returns the state for tabID, creating it if needed. Callers hold b.mu.
func (b *Bridge) tab(tabID int) *tabState {
	state, ok := b.tabs[tabID]
	if !ok {
		state = &tabState{}
		b.tabs[tabID] = state
	}
	return state
}

// isSessionURL applies the fixed host-and-path gate: the supported hostname
// plus a /session/<id> path.
func (b *Bridge) isSessionURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Hostname() == b.sessionHost && strings.HasPrefix(parsed.Path, "/session/")
}
