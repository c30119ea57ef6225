// Package session holds the per-connection state machines of the corkboard
// core: the synchronized local view of a board (SyncSession), optimistic
// mutation handling with rollback (OptimisticManager), and the drag lifecycle
// (DragController).
//
// Instances are created per connection and board and passed explicitly -
// nothing in this package is a process-wide singleton, so one process can
// serve many boards and tear a session down cleanly on disconnect.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/corkboard/pkg/board"
)

// SyncSession maintains a client's materialized view of a board.
//
// On Start it subscribes to the change bus first, then takes a full snapshot,
// then drains the events buffered during the snapshot read. Events are
// applied under version-gated dedup: an event whose version is not newer than
// the view's copy is discarded as already reflected, so a double-delivered
// event (snapshot + stream) is harmless.
type SyncSession struct {
	sessionID string
	client    *board.Client

	// notify, when set, is invoked after an event has been applied to the
	// view (including discarded duplicates, which are not forwarded). It runs
	// on the session's event loop goroutine and must not block.
	notify func(*board.ChangeEvent)

	mu   sync.RWMutex
	view map[string]*board.Item

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncSession creates a session for one connected client on one board.
// The client's events will be stamped with sessionID.
func NewSyncSession(client *board.Client, sessionID string) *SyncSession {
	return &SyncSession{
		sessionID: sessionID,
		client:    client.WithSession(sessionID),
		view:      make(map[string]*board.Item),
	}
}

// SessionID returns the opaque session identifier.
func (s *SyncSession) SessionID() string {
	return s.sessionID
}

// Client returns the board client stamped with this session's ID.
func (s *SyncSession) Client() *board.Client {
	return s.client
}

// OnChange registers a callback invoked for every event applied to the view.
// Must be called before Start.
func (s *SyncSession) OnChange(fn func(*board.ChangeEvent)) {
	s.notify = fn
}

// Start subscribes to the board's change bus, materializes the snapshot and
// launches the event loop. Blocks only for the subscribe and snapshot round
// trips. The loop runs until Stop or context cancellation; if the
// subscription is dropped (slow consumer), the session resynchronizes from a
// fresh snapshot automatically.
func (s *SyncSession) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	sub, err := s.sync(loopCtx)
	if err != nil {
		cancel()
		return err
	}

	s.wg.Add(1)
	go s.eventLoop(loopCtx, sub)
	return nil
}

// Stop tears the session down and waits for the event loop to exit.
func (s *SyncSession) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// sync subscribes, then snapshots, then installs the snapshot as the view.
// Events committed during the snapshot read sit buffered in the subscription
// and are deduplicated when the loop drains them.
func (s *SyncSession) sync(ctx context.Context) (*board.Subscription, error) {
	sub, err := s.client.SubscribeEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to board: %w", err)
	}

	items, err := s.client.Snapshot(ctx)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to snapshot board: %w", err)
	}

	view := make(map[string]*board.Item, len(items))
	for _, item := range items {
		copied := *item
		view[item.ID] = &copied
	}

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()

	return sub, nil
}

// eventLoop applies bus events to the view until the context is cancelled,
// resynchronizing whenever the subscription terminates underneath us.
func (s *SyncSession) eventLoop(ctx context.Context, sub *board.Subscription) {
	defer s.wg.Done()
	defer func() { sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-sub.Errors():
			if ok && err != nil {
				log.Printf("[SyncSession %s] subscription error: %v", s.sessionID, err)
			}

		case event, ok := <-sub.Events():
			if !ok {
				// Stream dropped: take a fresh snapshot and carry on.
				sub.Close()
				fresh, err := s.sync(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("[SyncSession %s] resync failed: %v", s.sessionID, err)
					}
					return
				}
				sub = fresh
				continue
			}

			applied := s.applyEvent(event)
			if applied && s.notify != nil {
				s.notify(event)
			}
		}
	}
}

// applyEvent folds one change event into the view. Returns false when the
// event was discarded as a stale duplicate.
func (s *SyncSession) applyEvent(event *board.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.view[event.ItemID]

	switch event.Type {
	case board.ChangeDeleted:
		// Removal wins regardless of version.
		delete(s.view, event.ItemID)
		return true

	case board.ChangeCreated, board.ChangeUpdated:
		if existing != nil && event.Version <= existing.Version {
			return false // already reflected (snapshot or earlier delivery)
		}

		item := existing
		if item == nil {
			item = &board.Item{ID: event.ItemID, BoardID: event.BoardID}
			s.view[event.ItemID] = item
		}
		item.Version = event.Version
		item.UpdatedAtMs = event.EmittedAtMs
		if event.X != nil {
			item.X = *event.X
		}
		if event.Y != nil {
			item.Y = *event.Y
		}
		if event.Content != nil {
			item.Content = *event.Content
		}
		if event.Metadata != nil {
			item.Metadata = *event.Metadata
		}
		return true

	case board.ChangeLockAcquired:
		if existing == nil {
			return false
		}
		existing.LockHolder = event.LockHolder
		existing.LockExpiresMs = 0 // expiry is server-side; holder is what the UI needs
		return true

	case board.ChangeLockReleased:
		if existing == nil {
			return false
		}
		existing.LockHolder = ""
		existing.LockExpiresMs = 0
		return true
	}

	log.Printf("[SyncSession %s] unknown change type %q", s.sessionID, event.Type)
	return false
}

// Items returns a copy of every item in the local view.
func (s *SyncSession) Items() []*board.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*board.Item, 0, len(s.view))
	for _, item := range s.view {
		copied := *item
		items = append(items, &copied)
	}
	return items
}

// Item returns a copy of one item from the local view.
func (s *SyncSession) Item(itemID string) (*board.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.view[itemID]
	if !ok {
		return nil, false
	}
	copied := *item
	return &copied, true
}

// SetLocalPosition applies an uncommitted position to the view without
// touching the version stamp. Used for optimistic application and for
// intermediate drag rendering, which may transiently leave the committed
// range.
func (s *SyncSession) SetLocalPosition(itemID string, x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.view[itemID]; ok {
		item.X = x
		item.Y = y
	}
}

// SetLocalContent applies an uncommitted content patch to the view without
// touching the version stamp.
func (s *SyncSession) SetLocalContent(itemID string, patch board.ContentPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.view[itemID]
	if !ok {
		return
	}
	if patch.Content != nil {
		item.Content = *patch.Content
	}
	if patch.Metadata != nil {
		item.Metadata = *patch.Metadata
	}
}

// RollbackItem restores one item to its last confirmed state by re-reading it
// from the store. If the item no longer exists it is removed from the view.
// Other items are never touched.
func (s *SyncSession) RollbackItem(ctx context.Context, itemID string) error {
	item, err := s.client.GetItem(ctx, itemID)
	if err != nil {
		if board.IsNotFound(err) {
			s.mu.Lock()
			delete(s.view, itemID)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to re-read item for rollback: %w", err)
	}

	s.mu.Lock()
	s.view[itemID] = item
	s.mu.Unlock()
	return nil
}
