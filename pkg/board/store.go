package board

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/corkboard/pkg/geometry"
)

// Client provides board-scoped Redis operations for the item store, lock
// manager and change bus. All keys and channels are automatically namespaced
// with the board ID. The client is thread-safe and can be used concurrently
// from multiple goroutines.
//
// Every mutating call publishes its ChangeEvent atomically with the write
// (inside the same Lua script), so "write succeeded" and "the event will be
// observed by subscribers, in commit order per item" are ordered facts.
type Client struct {
	rdb       *redis.Client
	boardID   string
	sessionID string // stamped onto emitted events; empty for anonymous callers
	now       func() time.Time
}

// createScript writes a new item hash unless the key already exists, then
// publishes the created event. Returns 0 on duplicate ID.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call('PUBLISH', ARGV[1], ARGV[2])
return 1
`)

// casUpdateScript applies field updates only if the stored version equals the
// expected version, bumps the version, and publishes the updated event.
// Returns the new version, -1 if the item is missing, -2 on version mismatch.
var casUpdateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local v = tonumber(redis.call('HGET', KEYS[1], 'version'))
if v ~= tonumber(ARGV[1]) then
  return -2
end
for i = 5, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call('HSET', KEYS[1], 'version', v + 1, 'updated_at_ms', ARGV[2])
redis.call('PUBLISH', ARGV[3], ARGV[4])
return v + 1
`)

// deleteScript removes the item and its lock (if any), publishing
// lock_released before deleted so observers see the implicit release.
// Returns 0 if the item does not exist.
var deleteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  redis.call('DEL', KEYS[2])
  redis.call('PUBLISH', ARGV[1], ARGV[3])
end
redis.call('DEL', KEYS[1])
redis.call('PUBLISH', ARGV[1], ARGV[2])
return 1
`)

// NewClient creates a new board client for the specified board.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - boardID: board identifier (must not be empty)
//
// Returns an error if boardID is empty.
func NewClient(redisOpts *redis.Options, boardID string) (*Client, error) {
	if boardID == "" {
		return nil, fmt.Errorf("board ID cannot be empty")
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		boardID: boardID,
		now:     time.Now,
	}, nil
}

// WithSession returns a client that stamps the given session ID onto every
// event it emits. The returned client shares the underlying connection; the
// receiver is not modified.
func (c *Client) WithSession(sessionID string) *Client {
	derived := *c
	derived.sessionID = sessionID
	return &derived
}

// BoardID returns the board this client is scoped to.
func (c *Client) BoardID() string {
	return c.boardID
}

// RedisClient exposes the underlying Redis client for inspection tooling
// (SCAN-based listing). Core callers should use the typed methods.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateItem writes a new item to the board and publishes a created event.
// Assigns a fresh UUID if the item has no ID, forces version to 0, clamps the
// position, and stamps creation time. Returns ErrDuplicateID if a
// caller-supplied ID already exists.
//
// The item argument is updated in place with the assigned ID, version and
// timestamps.
func (c *Client) CreateItem(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.BoardID == "" {
		item.BoardID = c.boardID
	} else if item.BoardID != c.boardID {
		return fmt.Errorf("item board ID %q does not match client board %q", item.BoardID, c.boardID)
	}

	nowMs := c.now().UnixMilli()
	item.Version = 0
	item.X = geometry.ClampInt(item.X)
	item.Y = geometry.ClampInt(item.Y)
	item.CreatedAtMs = nowMs
	item.UpdatedAtMs = nowMs

	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	x, y := item.X, item.Y
	content, metadata := item.Content, item.Metadata
	event := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeCreated,
		ItemID:          item.ID,
		Version:         item.Version,
		X:               &x,
		Y:               &y,
		Content:         &content,
		Metadata:        &metadata,
		EmittedAtMs:     nowMs,
		SourceSessionID: c.sessionID,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal created event: %w", err)
	}

	argv := []interface{}{EventsChannel(c.boardID), string(eventJSON)}
	for field, value := range ItemToHash(item) {
		argv = append(argv, field, value)
	}

	created, err := createScript.Run(ctx, c.rdb, []string{ItemKey(c.boardID, item.ID)}, argv...).Int()
	if err != nil {
		return fmt.Errorf("failed to create item in Redis: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("item %s: %w", item.ID, ErrDuplicateID)
	}

	return nil
}

// GetItem retrieves an item by ID, including any active lock state.
// Returns ErrNotFound if the item doesn't exist; check with IsNotFound().
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	key := ItemKey(c.boardID, itemID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}

	item, err := HashToItem(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize item: %w", err)
	}

	c.attachLockState(ctx, item)
	return item, nil
}

// Snapshot returns a point-in-time read of every item on the board.
// Uses Redis SCAN to iterate item keys without blocking the server. Items
// deleted mid-scan are skipped; the snapshot/stream dedup in the sync layer
// absorbs any skew.
func (c *Client) Snapshot(ctx context.Context) ([]*Item, error) {
	var items []*Item

	iter := c.rdb.Scan(ctx, 0, ItemKeyPattern(c.boardID), 0).Iterator()
	for iter.Next(ctx) {
		hashData, err := c.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read item during snapshot: %w", err)
		}
		if len(hashData) == 0 {
			continue
		}

		item, err := HashToItem(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize item during snapshot: %w", err)
		}
		c.attachLockState(ctx, item)
		items = append(items, item)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan board items: %w", err)
	}

	return items, nil
}

// ScanItemIDs returns the IDs of all items on the board whose ID starts with
// the given prefix. An empty prefix matches everything. Used for short-ID
// resolution in the CLI.
func (c *Client) ScanItemIDs(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := ItemKey(c.boardID, prefix)

	var ids []string
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(keyPrefix)-len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan item IDs: %w", err)
	}

	return ids, nil
}

// UpdatePosition moves an item with a compare-and-set on its version.
// Coordinates are clamped to the board range before the write. On success the
// version is bumped and an updated event is published atomically with the
// write. Returns ErrVersionConflict if another writer committed first, or
// ErrNotFound if the item was deleted concurrently.
func (c *Client) UpdatePosition(ctx context.Context, itemID string, x, y int, expectedVersion int) (*Item, error) {
	x = geometry.ClampInt(x)
	y = geometry.ClampInt(y)

	nowMs := c.now().UnixMilli()
	newVersion := expectedVersion + 1
	ex, ey := x, y
	event := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeUpdated,
		ItemID:          itemID,
		Version:         newVersion,
		X:               &ex,
		Y:               &ey,
		EmittedAtMs:     nowMs,
		SourceSessionID: c.sessionID,
	}

	fields := []interface{}{"x", x, "y", y}
	if err := c.runCASUpdate(ctx, itemID, expectedVersion, nowMs, event, fields); err != nil {
		return nil, err
	}

	return c.GetItem(ctx, itemID)
}

// UpdateContent patches an item's content fields with a compare-and-set on
// its version, orthogonal to position updates. Nil patch fields are left
// untouched. Returns ErrVersionConflict or ErrNotFound as UpdatePosition does.
func (c *Client) UpdateContent(ctx context.Context, itemID string, patch ContentPatch, expectedVersion int) (*Item, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("content patch cannot be empty")
	}

	nowMs := c.now().UnixMilli()
	event := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeUpdated,
		ItemID:          itemID,
		Version:         expectedVersion + 1,
		Content:         patch.Content,
		Metadata:        patch.Metadata,
		EmittedAtMs:     nowMs,
		SourceSessionID: c.sessionID,
	}

	var fields []interface{}
	if patch.Content != nil {
		fields = append(fields, "content", *patch.Content)
	}
	if patch.Metadata != nil {
		fields = append(fields, "metadata", *patch.Metadata)
	}

	if err := c.runCASUpdate(ctx, itemID, expectedVersion, nowMs, event, fields); err != nil {
		return nil, err
	}

	return c.GetItem(ctx, itemID)
}

// DeleteItem removes an item unconditionally (no version check) and
// publishes a deleted event. An active lock is implicitly released, with its
// lock_released event published before the deleted event.
// Returns ErrNotFound if the item does not exist.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	nowMs := c.now().UnixMilli()

	deletedEvent := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeDeleted,
		ItemID:          itemID,
		EmittedAtMs:     nowMs,
		SourceSessionID: c.sessionID,
	}
	deletedJSON, err := json.Marshal(deletedEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal deleted event: %w", err)
	}

	releasedEvent := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeLockReleased,
		ItemID:          itemID,
		EmittedAtMs:     nowMs,
		SourceSessionID: c.sessionID,
	}
	releasedJSON, err := json.Marshal(releasedEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal lock_released event: %w", err)
	}

	keys := []string{ItemKey(c.boardID, itemID), LockKey(c.boardID, itemID)}
	deleted, err := deleteScript.Run(ctx, c.rdb, keys,
		EventsChannel(c.boardID), string(deletedJSON), string(releasedJSON)).Int()
	if err != nil {
		return fmt.Errorf("failed to delete item from Redis: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}

	return nil
}

// runCASUpdate executes the compare-and-set update script and maps its
// result codes onto the error taxonomy.
func (c *Client) runCASUpdate(ctx context.Context, itemID string, expectedVersion int, nowMs int64, event *ChangeEvent, fields []interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal updated event: %w", err)
	}

	argv := append([]interface{}{expectedVersion, nowMs, EventsChannel(c.boardID), string(eventJSON)}, fields...)

	result, err := casUpdateScript.Run(ctx, c.rdb, []string{ItemKey(c.boardID, itemID)}, argv...).Int()
	if err != nil {
		return fmt.Errorf("failed to update item in Redis: %w", err)
	}

	switch result {
	case -1:
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	case -2:
		return fmt.Errorf("item %s at expected version %d: %w", itemID, expectedVersion, ErrVersionConflict)
	}
	return nil
}

// attachLockState copies any active lock onto the item's derived lock
// fields. Missing or malformed lock state is treated as unlocked.
func (c *Client) attachLockState(ctx context.Context, item *Item) {
	hashData, err := c.rdb.HGetAll(ctx, LockKey(c.boardID, item.ID)).Result()
	if err != nil || len(hashData) == 0 {
		return
	}

	lock, err := HashToLock(item.ID, hashData)
	if err != nil {
		return
	}

	if lock.ExpiresAtMs > c.now().UnixMilli() {
		item.LockHolder = lock.Holder
		item.LockExpiresMs = lock.ExpiresAtMs
	}
}
