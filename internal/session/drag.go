package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/geometry"
)

// DragState is the DragController lifecycle state.
type DragState string

const (
	DragIdle     DragState = "idle"
	DragDragging DragState = "dragging"
)

// DefaultDragThrottle coalesces pointer samples arriving within this window
// into one local render update, bounding the rate of view writes during a
// continuous drag.
const DefaultDragThrottle = 50 * time.Millisecond

var (
	// ErrDragInProgress indicates StartDrag was called while a drag is active.
	ErrDragInProgress = errors.New("a drag is already in progress")

	// ErrNoDrag indicates a drag operation was called with no active drag.
	ErrNoDrag = errors.New("no drag in progress")
)

// DragController turns a stream of pointer-movement samples into a throttled
// sequence of local view updates and, on release, a single optimistic commit.
//
// Lifecycle: idle -> dragging -> (commit | cancel) -> idle. The item's edit
// lock is acquired at drag start - a denial rejects the drag outright, before
// any optimistic state exists - and released on commit and cancel alike.
//
// Pointer samples never block: Move only accumulates the converted delta and
// updates the local view. The only suspending calls are StartDrag, EndDrag,
// Cancel and Renew.
type DragController struct {
	session    *SyncSession
	optimistic *OptimisticManager
	lockTTL    time.Duration
	throttle   time.Duration

	mu             sync.Mutex
	state          DragState
	itemID         string
	startX, startY int // committed position at drag start, snap-back target
	accX, accY     float64
	containerW     float64
	containerH     float64
	lastRender     time.Time
}

// NewDragController creates a controller bound to one session.
// Non-positive lockTTL or throttle fall back to the package defaults.
func NewDragController(session *SyncSession, optimistic *OptimisticManager, lockTTL, throttle time.Duration) *DragController {
	if lockTTL <= 0 {
		lockTTL = board.DefaultLockTTL
	}
	if throttle <= 0 {
		throttle = DefaultDragThrottle
	}
	return &DragController{
		session:    session,
		optimistic: optimistic,
		lockTTL:    lockTTL,
		throttle:   throttle,
		state:      DragIdle,
	}
}

// State returns the current lifecycle state.
func (d *DragController) State() DragState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// StartDrag begins dragging an item inside a container of the given pixel
// dimensions, measured at drag start. Acquires the item's edit lock; a
// denial rejects the drag with a LockDeniedError and leaves no local state
// behind.
func (d *DragController) StartDrag(ctx context.Context, itemID string, containerWidthPx, containerHeightPx float64) error {
	d.mu.Lock()
	if d.state != DragIdle {
		d.mu.Unlock()
		return ErrDragInProgress
	}
	d.mu.Unlock()

	if containerWidthPx <= 0 || containerHeightPx <= 0 {
		return geometry.ErrInvalidContainer
	}

	item, ok := d.session.Item(itemID)
	if !ok {
		return fmt.Errorf("item %s not in local view: %w", itemID, board.ErrNotFound)
	}

	if _, err := d.session.Client().AcquireLock(ctx, itemID, d.session.SessionID(), d.lockTTL); err != nil {
		return err
	}

	d.mu.Lock()
	d.state = DragDragging
	d.itemID = itemID
	d.startX, d.startY = item.X, item.Y
	d.accX, d.accY = 0, 0
	d.containerW = containerWidthPx
	d.containerH = containerHeightPx
	d.lastRender = time.Time{}
	d.mu.Unlock()

	return nil
}

// Move feeds one pointer-movement sample, in pixels. The delta is converted
// to abstract units against the measured container and accumulated; the
// local view is updated at most once per throttle window, unclamped, so the
// item tracks the pointer without sticking at the board edge mid-drag.
func (d *DragController) Move(dxPx, dyPx float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DragDragging {
		return ErrNoDrag
	}

	dxAbs, dyAbs, err := geometry.PixelDeltaToAbstract(dxPx, dyPx, d.containerW, d.containerH)
	if err != nil {
		return err
	}
	d.accX += dxAbs
	d.accY += dyAbs

	now := time.Now()
	if now.Sub(d.lastRender) < d.throttle {
		return nil // coalesced into the next render
	}
	d.lastRender = now

	x := int(math.Round(float64(d.startX) + d.accX))
	y := int(math.Round(float64(d.startY) + d.accY))
	d.session.SetLocalPosition(d.itemID, x, y)
	return nil
}

// Remeasure updates the container dimensions after a mid-drag resize.
// If re-measurement produced unusable dimensions the drag is cancelled and
// the item snaps back, rather than applying deltas against a stale frame.
func (d *DragController) Remeasure(ctx context.Context, containerWidthPx, containerHeightPx float64) error {
	if containerWidthPx <= 0 || containerHeightPx <= 0 {
		if err := d.Cancel(ctx); err != nil && !errors.Is(err, ErrNoDrag) {
			return err
		}
		return geometry.ErrInvalidContainer
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DragDragging {
		return ErrNoDrag
	}
	d.containerW = containerWidthPx
	d.containerH = containerHeightPx
	return nil
}

// Renew extends the drag lock's TTL. Call it from a keepalive timer during
// long drags.
func (d *DragController) Renew(ctx context.Context) error {
	d.mu.Lock()
	if d.state != DragDragging {
		d.mu.Unlock()
		return ErrNoDrag
	}
	itemID := d.itemID
	d.mu.Unlock()

	_, err := d.session.Client().RenewLock(ctx, itemID, d.session.SessionID(), d.lockTTL)
	return err
}

// EndDrag commits the accumulated delta: the final position is clamped to
// the board range and submitted optimistically with the drag-start version
// semantics of OptimisticManager, then the lock is released whatever the
// outcome. On rejection the view has already snapped back.
func (d *DragController) EndDrag(ctx context.Context) (*board.Item, error) {
	d.mu.Lock()
	if d.state != DragDragging {
		d.mu.Unlock()
		return nil, ErrNoDrag
	}
	itemID := d.itemID
	x := geometry.Clamp(float64(d.startX) + d.accX)
	y := geometry.Clamp(float64(d.startY) + d.accY)
	d.reset()
	d.mu.Unlock()

	item, _, err := d.optimistic.MoveItem(ctx, itemID, x, y)

	if releaseErr := d.session.Client().ReleaseLock(ctx, itemID, d.session.SessionID()); releaseErr != nil && err == nil {
		err = releaseErr
	}
	return item, err
}

// Cancel discards the accumulated delta, snaps the item back to its pre-drag
// committed position and releases the lock. The server never sees the
// abandoned movement.
func (d *DragController) Cancel(ctx context.Context) error {
	d.mu.Lock()
	if d.state != DragDragging {
		d.mu.Unlock()
		return ErrNoDrag
	}
	itemID := d.itemID
	x, y := d.startX, d.startY
	d.reset()
	d.mu.Unlock()

	d.session.SetLocalPosition(itemID, x, y)
	return d.session.Client().ReleaseLock(ctx, itemID, d.session.SessionID())
}

// reset returns the controller to idle. Caller holds d.mu.
func (d *DragController) reset() {
	d.state = DragIdle
	d.itemID = ""
	d.accX, d.accY = 0, 0
	d.containerW, d.containerH = 0, 0
}
