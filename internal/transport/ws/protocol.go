// Package ws is the local bridge between the daemon and the UI shell. The
// shell runs speech recognition and synthesis; this transport only moves
// text: transcripts and control messages in, spoken replies and session
// state out. It binds to loopback and serves one client at a time.
package ws

// Inbound message types.
const (
	TypeTranscript = "transcript"
	TypeUnlock     = "unlock"
	TypeLock       = "lock"
	TypeStatus     = "status"
)

// Outbound message types.
const (
	TypeResponse = "response"
	TypeState    = "state"
	TypeError    = "error"
)

// Inbound is a message from the UI shell.
type Inbound struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// Outbound is a message to the UI shell. Sensitive marks replies whose Text
// contains secret material so the shell can skip its own logging too.
type Outbound struct {
	Type      string `json:"type"`
	TurnID    string `json:"turn_id,omitempty"`
	Text      string `json:"text,omitempty"`
	State     string `json:"state,omitempty"`
	Sensitive bool   `json:"sensitive,omitempty"`
	Error     string `json:"error,omitempty"`
}
