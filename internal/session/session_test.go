package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/pkg/board"
)

// setupBoard creates a board client backed by a miniredis instance.
func setupBoard(t *testing.T) *board.Client {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-board")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

// startSession creates and starts a sync session, stopped on test cleanup.
func startSession(t *testing.T, client *board.Client, sessionID string) *SyncSession {
	s := NewSyncSession(client, sessionID)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s
}

// createItem puts an item on the board directly through the store.
func createItem(t *testing.T, client *board.Client, x, y int) *board.Item {
	item := &board.Item{ID: uuid.New().String(), X: x, Y: y, Content: "note"}
	require.NoError(t, client.CreateItem(context.Background(), item))
	return item
}

// waitForItem polls a session's view until the item satisfies the predicate.
func waitForItem(t *testing.T, s *SyncSession, itemID string, predicate func(*board.Item) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		item, ok := s.Item(itemID)
		return ok && predicate(item)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSyncSessionSnapshot(t *testing.T) {
	client := setupBoard(t)

	existing := createItem(t, client, 100, 200)

	s := startSession(t, client, "session-a")

	item, ok := s.Item(existing.ID)
	require.True(t, ok)
	assert.Equal(t, 100, item.X)
	assert.Equal(t, 200, item.Y)
	assert.Len(t, s.Items(), 1)
}

func TestSyncSessionLiveEvents(t *testing.T) {
	client := setupBoard(t)
	ctx := context.Background()

	s := startSession(t, client, "session-a")

	t.Run("created item appears", func(t *testing.T) {
		item := createItem(t, client, 260, 260)
		waitForItem(t, s, item.ID, func(i *board.Item) bool {
			return i.X == 260 && i.Y == 260 && i.Version == 0
		})
	})

	t.Run("position update applied with new version", func(t *testing.T) {
		item := createItem(t, client, 10, 10)
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return i.Version == 0 })

		_, err := client.UpdatePosition(ctx, item.ID, 50, 60, 0)
		require.NoError(t, err)

		waitForItem(t, s, item.ID, func(i *board.Item) bool {
			return i.X == 50 && i.Y == 60 && i.Version == 1
		})
	})

	t.Run("content update preserves position", func(t *testing.T) {
		item := createItem(t, client, 30, 40)
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return i.Version == 0 })

		content := "rewritten"
		_, err := client.UpdateContent(ctx, item.ID, board.ContentPatch{Content: &content}, 0)
		require.NoError(t, err)

		waitForItem(t, s, item.ID, func(i *board.Item) bool {
			return i.Content == "rewritten" && i.X == 30 && i.Y == 40 && i.Version == 1
		})
	})

	t.Run("deleted item removed from view", func(t *testing.T) {
		item := createItem(t, client, 1, 1)
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return true })

		require.NoError(t, client.DeleteItem(ctx, item.ID))

		require.Eventually(t, func() bool {
			_, ok := s.Item(item.ID)
			return !ok
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("lock events update holder", func(t *testing.T) {
		item := createItem(t, client, 2, 2)
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return true })

		_, err := client.AcquireLock(ctx, item.ID, "session-b", time.Minute)
		require.NoError(t, err)
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return i.LockHolder == "session-b" })

		require.NoError(t, client.ReleaseLock(ctx, item.ID, "session-b"))
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return i.LockHolder == "" })
	})
}

func TestApplyEventDedup(t *testing.T) {
	client := setupBoard(t)
	s := NewSyncSession(client, "session-a")

	itemID := uuid.New().String()
	x, y := 100, 100

	created := &board.ChangeEvent{
		BoardID: "test-board", Type: board.ChangeCreated, ItemID: itemID,
		Version: 0, X: &x, Y: &y,
	}
	assert.True(t, s.applyEvent(created))

	t.Run("same version discarded as already reflected", func(t *testing.T) {
		stale := *created
		assert.False(t, s.applyEvent(&stale))
	})

	t.Run("older version discarded after newer applied", func(t *testing.T) {
		nx := 150
		newer := &board.ChangeEvent{
			BoardID: "test-board", Type: board.ChangeUpdated, ItemID: itemID,
			Version: 2, X: &nx, Y: &y,
		}
		assert.True(t, s.applyEvent(newer))

		ox := 120
		older := &board.ChangeEvent{
			BoardID: "test-board", Type: board.ChangeUpdated, ItemID: itemID,
			Version: 1, X: &ox, Y: &y,
		}
		assert.False(t, s.applyEvent(older))

		item, ok := s.Item(itemID)
		require.True(t, ok)
		assert.Equal(t, 150, item.X)
		assert.Equal(t, 2, item.Version)
	})

	t.Run("final version is the maximum seen, applied once in effect", func(t *testing.T) {
		item, ok := s.Item(itemID)
		require.True(t, ok)
		assert.Equal(t, 2, item.Version)
	})

	t.Run("delete wins regardless of version", func(t *testing.T) {
		deleted := &board.ChangeEvent{
			BoardID: "test-board", Type: board.ChangeDeleted, ItemID: itemID,
		}
		assert.True(t, s.applyEvent(deleted))
		_, ok := s.Item(itemID)
		assert.False(t, ok)
	})
}

func TestSnapshotStreamRace(t *testing.T) {
	// An event for a write that is also captured by the snapshot must be
	// deduplicated: the subscription starts before the snapshot read, so the
	// created event is delivered even though the item is already in view.
	client := setupBoard(t)
	item := createItem(t, client, 260, 260)

	s := startSession(t, client, "session-a")

	var notified int
	s.OnChange(func(*board.ChangeEvent) { notified++ })

	// Give any buffered duplicate a chance to be processed.
	time.Sleep(100 * time.Millisecond)

	got, ok := s.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, 0, got.Version)
	assert.Equal(t, 260, got.X)
}

func TestSetLocalPositionDoesNotBumpVersion(t *testing.T) {
	client := setupBoard(t)
	item := createItem(t, client, 10, 10)
	s := startSession(t, client, "session-a")
	waitForItem(t, s, item.ID, func(i *board.Item) bool { return true })

	// Transient drag positions may leave the committed range.
	s.SetLocalPosition(item.ID, 600, -20)

	got, ok := s.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, 600, got.X)
	assert.Equal(t, -20, got.Y)
	assert.Equal(t, 0, got.Version)
}

func TestRollbackItem(t *testing.T) {
	client := setupBoard(t)
	ctx := context.Background()

	t.Run("restores confirmed state", func(t *testing.T) {
		item := createItem(t, client, 100, 100)
		s := startSession(t, client, "session-a")
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return true })

		s.SetLocalPosition(item.ID, 400, 400)
		require.NoError(t, s.RollbackItem(ctx, item.ID))

		got, ok := s.Item(item.ID)
		require.True(t, ok)
		assert.Equal(t, 100, got.X)
		assert.Equal(t, 100, got.Y)
	})

	t.Run("removes concurrently deleted item", func(t *testing.T) {
		item := createItem(t, client, 1, 1)
		s := startSession(t, client, "session-b")
		waitForItem(t, s, item.ID, func(i *board.Item) bool { return true })

		require.NoError(t, client.DeleteItem(ctx, item.ID))
		require.NoError(t, s.RollbackItem(ctx, item.ID))

		_, ok := s.Item(item.ID)
		assert.False(t, ok)
	})
}
