package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/geometry"
)

// MutationStatus is the lifecycle state of a pending optimistic mutation.
// pending is the only non-terminal state.
type MutationStatus string

const (
	MutationPending   MutationStatus = "pending"
	MutationConfirmed MutationStatus = "confirmed"
	MutationRejected  MutationStatus = "rejected"
	MutationTimedOut  MutationStatus = "timed_out"
)

// DefaultMutationTimeout bounds how long the local view may hold an
// unconfirmed change before it is forcibly rolled back, so the UI never hangs
// on a lost response.
const DefaultMutationTimeout = 5 * time.Second

// PendingMutation records one locally-applied change awaiting authoritative
// confirmation.
type PendingMutation struct {
	ID          string
	ItemID      string
	BaseVersion int
	Status      MutationStatus
	SubmittedAt time.Time

	// reapply re-applies the optimistic change to the local view. Used when a
	// rollback of the item must not wipe out this mutation's still-pending
	// effect.
	reapply func()
}

// OptimisticManager wraps local mutations in the optimistic-update protocol:
// apply to the local view immediately, send to the store with the expected
// version, and reconcile. Confirmation is a no-op (the echoing change event
// is absorbed by version dedup); rejection or timeout rolls the item back to
// its last confirmed state. Per-item isolation holds throughout - one item's
// conflict never rolls back unrelated items.
type OptimisticManager struct {
	session *SyncSession
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*PendingMutation
}

// NewOptimisticManager creates a manager bound to one session's view.
// A non-positive timeout defaults to DefaultMutationTimeout.
func NewOptimisticManager(session *SyncSession, timeout time.Duration) *OptimisticManager {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	return &OptimisticManager{
		session: session,
		timeout: timeout,
		pending: make(map[string]*PendingMutation),
	}
}

// MoveItem optimistically moves an item and commits the move with a
// compare-and-set on the version the local view believed current.
// Coordinates are clamped before commit.
//
// On conflict, timeout or concurrent deletion the local view is rolled back
// to the store's confirmed state and the error is returned for the caller to
// surface. The returned mutation carries the terminal status.
func (m *OptimisticManager) MoveItem(ctx context.Context, itemID string, x, y int) (*board.Item, *PendingMutation, error) {
	x = geometry.ClampInt(x)
	y = geometry.ClampInt(y)

	local, ok := m.session.Item(itemID)
	if !ok {
		return nil, nil, fmt.Errorf("item %s not in local view: %w", itemID, board.ErrNotFound)
	}

	// Optimistic local apply
	m.session.SetLocalPosition(itemID, x, y)

	mutation := m.track(itemID, local.Version, func() {
		m.session.SetLocalPosition(itemID, x, y)
	})

	item, err := m.commit(ctx, mutation, func(callCtx context.Context) (*board.Item, error) {
		return m.session.Client().UpdatePosition(callCtx, itemID, x, y, local.Version)
	})
	return item, mutation, err
}

// EditContent optimistically patches an item's content under the same
// protocol as MoveItem, orthogonal to position.
func (m *OptimisticManager) EditContent(ctx context.Context, itemID string, patch board.ContentPatch) (*board.Item, *PendingMutation, error) {
	if patch.IsEmpty() {
		return nil, nil, fmt.Errorf("content patch cannot be empty")
	}

	local, ok := m.session.Item(itemID)
	if !ok {
		return nil, nil, fmt.Errorf("item %s not in local view: %w", itemID, board.ErrNotFound)
	}

	m.session.SetLocalContent(itemID, patch)

	mutation := m.track(itemID, local.Version, func() {
		m.session.SetLocalContent(itemID, patch)
	})

	item, err := m.commit(ctx, mutation, func(callCtx context.Context) (*board.Item, error) {
		return m.session.Client().UpdateContent(callCtx, itemID, patch, local.Version)
	})
	return item, mutation, err
}

// Pending returns copies of the still-pending mutations for an item.
func (m *OptimisticManager) Pending(itemID string) []PendingMutation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PendingMutation
	for _, p := range m.pending {
		if p.ItemID == itemID && p.Status == MutationPending {
			out = append(out, *p)
		}
	}
	return out
}

// track registers a new pending mutation.
func (m *OptimisticManager) track(itemID string, baseVersion int, reapply func()) *PendingMutation {
	mutation := &PendingMutation{
		ID:          uuid.New().String(),
		ItemID:      itemID,
		BaseVersion: baseVersion,
		Status:      MutationPending,
		SubmittedAt: time.Now(),
		reapply:     reapply,
	}

	m.mu.Lock()
	m.pending[mutation.ID] = mutation
	m.mu.Unlock()
	return mutation
}

// commit sends the mutation to the store under the timeout budget and
// resolves it: confirmed on success, timed_out on deadline, rejected on
// conflict or any other failure. Rejection and timeout roll the item back.
func (m *OptimisticManager) commit(ctx context.Context, mutation *PendingMutation, send func(context.Context) (*board.Item, error)) (*board.Item, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	item, err := send(callCtx)

	m.mu.Lock()
	if err == nil {
		mutation.Status = MutationConfirmed
	} else if errors.Is(err, context.DeadlineExceeded) {
		mutation.Status = MutationTimedOut
	} else {
		mutation.Status = MutationRejected
	}
	delete(m.pending, mutation.ID)
	m.mu.Unlock()

	if err == nil {
		return item, nil
	}

	m.rollback(mutation.ItemID)

	switch {
	case board.IsVersionConflict(err):
		return nil, fmt.Errorf("move lost to a concurrent writer: %w", err)
	case board.IsNotFound(err):
		return nil, fmt.Errorf("item deleted concurrently: %w", err)
	default:
		return nil, err
	}
}

// rollback restores the item to its confirmed state and re-applies any
// still-pending mutations for that same item, preserving their optimistic
// effect. The rollback uses its own deadline: the triggering context is
// usually already expired.
func (m *OptimisticManager) rollback(itemID string) {
	rollbackCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.session.RollbackItem(rollbackCtx, itemID); err != nil {
		// The next snapshot or event for this item will correct the view.
		return
	}

	m.mu.Lock()
	var replays []func()
	for _, p := range m.pending {
		if p.ItemID == itemID && p.Status == MutationPending && p.reapply != nil {
			replays = append(replays, p.reapply)
		}
	}
	m.mu.Unlock()

	for _, replay := range replays {
		replay()
	}
}
