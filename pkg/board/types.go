package board

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dyluth/corkboard/pkg/geometry"
)

// Item represents a positioned, owned unit of content on a board.
// Positions live on the abstract integer grid defined by pkg/geometry and
// are always inside [0, geometry.CoordMax] after a committed write; clients
// may render transiently out-of-range values mid-drag but clamp on commit.
type Item struct {
	ID       string `json:"id"`       // UUID - unique identifier, immutable
	BoardID  string `json:"board_id"` // Owning board identifier
	X        int    `json:"x"`        // Abstract grid position
	Y        int    `json:"y"`
	Content  string `json:"content"`            // Opaque payload, not interpreted by the core
	Metadata string `json:"metadata,omitempty"` // Opaque payload, not interpreted by the core
	Version  int    `json:"version"`            // Bumped on every committed write (starts at 0)

	// Lock state is derived, advisory-with-enforcement. At most one active
	// (unexpired) lock exists per item at any time.
	LockHolder    string `json:"lock_holder,omitempty"`
	LockExpiresMs int64  `json:"lock_expires_ms,omitempty"`

	CreatedAtMs int64 `json:"created_at_ms"` // Unix timestamp in milliseconds
	UpdatedAtMs int64 `json:"updated_at_ms"` // Unix timestamp in milliseconds
}

// Lock represents an active exclusive edit claim on an item.
type Lock struct {
	ItemID       string `json:"item_id"`
	Holder       string `json:"holder"` // Session ID of the holder
	AcquiredAtMs int64  `json:"acquired_at_ms"`
	ExpiresAtMs  int64  `json:"expires_at_ms"`
}

// ContentPatch describes a partial content edit. Nil fields are left
// untouched by the write.
type ContentPatch struct {
	Content  *string
	Metadata *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ContentPatch) IsEmpty() bool {
	return p.Content == nil && p.Metadata == nil
}

// ChangeType defines the kind of committed mutation a ChangeEvent carries.
// The set is closed; consumers switch over it exhaustively.
type ChangeType string

const (
	// ChangeCreated signals a new item was committed to the store
	ChangeCreated ChangeType = "created"

	// ChangeUpdated signals an item's position or content changed
	ChangeUpdated ChangeType = "updated"

	// ChangeDeleted signals an item was removed from the store
	ChangeDeleted ChangeType = "deleted"

	// ChangeLockAcquired signals a session took the item's edit lock
	ChangeLockAcquired ChangeType = "lock_acquired"

	// ChangeLockReleased signals the item's edit lock was released or expired
	ChangeLockReleased ChangeType = "lock_released"
)

// ChangeEvent is the immutable record of a committed mutation, published on
// the board's change bus the moment the mutation commits. For a single item,
// subscribers observe events in commit order; no ordering is guaranteed
// across different items.
type ChangeEvent struct {
	BoardID string     `json:"board_id"`
	Type    ChangeType `json:"type"`
	ItemID  string     `json:"item_id"`

	// Version of the item after the mutation. Zero-valued for lock events,
	// which do not bump the item version.
	Version int `json:"version,omitempty"`

	// Position and content fields are present only when the mutation touched
	// them, so observers can materialize the change without a re-read.
	X        *int    `json:"x,omitempty"`
	Y        *int    `json:"y,omitempty"`
	Content  *string `json:"content,omitempty"`
	Metadata *string `json:"metadata,omitempty"`

	// LockHolder is set on lock events: the new holder for lock_acquired,
	// the previous holder for lock_released.
	LockHolder string `json:"lock_holder,omitempty"`

	EmittedAtMs     int64  `json:"emitted_at_ms"`
	SourceSessionID string `json:"source_session_id,omitempty"`
}

// Validate checks if the Item has valid field values.
// Returns an error if any validation fails.
func (i *Item) Validate() error {
	if !isValidUUID(i.ID) {
		return fmt.Errorf("invalid item ID: not a valid UUID")
	}

	if i.BoardID == "" {
		return fmt.Errorf("board ID cannot be empty")
	}

	if !geometry.InBounds(i.X, i.Y) {
		return fmt.Errorf("position (%d,%d) outside [0,%d]", i.X, i.Y, geometry.CoordMax)
	}

	if i.Version < 0 {
		return fmt.Errorf("invalid version: must be >= 0, got %d", i.Version)
	}

	return nil
}

// Validate checks if the ChangeType is a valid enum value.
func (ct ChangeType) Validate() error {
	switch ct {
	case ChangeCreated, ChangeUpdated, ChangeDeleted, ChangeLockAcquired, ChangeLockReleased:
		return nil
	default:
		return fmt.Errorf("unknown change type: %q", ct)
	}
}

// Validate checks if the ChangeEvent has valid field values.
func (e *ChangeEvent) Validate() error {
	if e.BoardID == "" {
		return fmt.Errorf("board ID cannot be empty")
	}

	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid change type: %w", err)
	}

	if !isValidUUID(e.ItemID) {
		return fmt.Errorf("invalid item ID: not a valid UUID")
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
