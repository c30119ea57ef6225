package server

import "github.com/dyluth/corkboard/pkg/board"

// Websocket wire frames.
//
// The server sends exactly one snapshot frame after the connection is
// established, then a stream of event frames, interleaved with one result
// frame per client request. The client sends request frames; request_id is an
// opaque client-chosen token echoed back on the matching result.

// Server -> client frame types.
const (
	FrameSnapshot = "snapshot"
	FrameEvent    = "event"
	FrameResult   = "result"
)

// Client -> server request actions.
const (
	ActionCreate = "create"
	ActionMove   = "move"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionLock   = "lock"
	ActionUnlock = "unlock"
)

// Request is one client -> server frame.
type Request struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	ItemID    string `json:"item_id,omitempty"`

	// create and move
	X *int `json:"x,omitempty"`
	Y *int `json:"y,omitempty"`

	// create and edit
	Content  *string `json:"content,omitempty"`
	Metadata *string `json:"metadata,omitempty"`
}

// Frame is one server -> client frame. Exactly one of Items, Event and
// Result is populated, according to Type.
type Frame struct {
	Type string `json:"type"`

	// snapshot
	SessionID string        `json:"session_id,omitempty"`
	Items     []*board.Item `json:"items,omitempty"`

	// event
	Event *board.ChangeEvent `json:"event,omitempty"`

	// result
	Result *Result `json:"result,omitempty"`
}

// Result reports the outcome of one client request.
type Result struct {
	RequestID string      `json:"request_id"`
	Status    string      `json:"status"` // confirmed, rejected or timed_out
	Error     string      `json:"error,omitempty"`
	Item      *board.Item `json:"item,omitempty"`
}
