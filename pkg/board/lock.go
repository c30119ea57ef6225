package board

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Soft lock operations
//
// Locks are short-lived, TTL-bound exclusivity claims stored in their own
// Redis hash per item. They exist to stop two participants dragging the same
// item at once; data integrity is always protected by the version
// compare-and-set regardless. Expiry is wall-clock based and enforced both at
// acquisition time (an expired lock is acquirable) and by the background
// Sweeper, which deletes stale locks and publishes lock_released so every
// observer's view recovers when a holder disconnects without releasing.

// DefaultLockTTL is short relative to a typical drag but long enough to
// survive brief network hiccups.
const DefaultLockTTL = 15 * time.Second

// acquireLockScript grants the lock if the item exists and no unexpired lock
// is held by a different session. Re-acquisition by the current holder
// extends the TTL. Returns {code, holder}: code 1 granted, 0 denied,
// -1 item missing.
var acquireLockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
  return {-1, ''}
end
local holder = redis.call('HGET', KEYS[1], 'holder')
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at_ms'))
if holder and exp and exp > tonumber(ARGV[2]) and holder ~= ARGV[1] then
  return {0, holder}
end
redis.call('HSET', KEYS[1], 'holder', ARGV[1], 'acquired_at_ms', ARGV[2], 'expires_at_ms', ARGV[3])
redis.call('PUBLISH', ARGV[4], ARGV[5])
return {1, ARGV[1]}
`)

// renewLockScript extends the TTL only for the current, unexpired holder.
// Returns {code, holder}: code 1 renewed, 0 denied or expired.
var renewLockScript = redis.NewScript(`
local holder = redis.call('HGET', KEYS[1], 'holder')
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at_ms'))
if not holder or not exp or exp <= tonumber(ARGV[2]) or holder ~= ARGV[1] then
  if holder then
    return {0, holder}
  end
  return {0, ''}
end
redis.call('HSET', KEYS[1], 'expires_at_ms', ARGV[3])
return {1, holder}
`)

// releaseLockScript deletes the lock and publishes lock_released, but only
// if the caller is the current holder. Never force-releases another
// session's lock. Returns 1 if released, 0 for the idempotent no-op.
var releaseLockScript = redis.NewScript(`
local holder = redis.call('HGET', KEYS[1], 'holder')
if not holder or holder ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('PUBLISH', ARGV[2], ARGV[3])
return 1
`)

// sweepLockScript deletes the lock and publishes lock_released only if it is
// still held by the expected holder and still expired, so a sweep never
// races a concurrent renewal or re-acquisition.
var sweepLockScript = redis.NewScript(`
local holder = redis.call('HGET', KEYS[1], 'holder')
local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at_ms'))
if not holder or holder ~= ARGV[1] or not exp or exp > tonumber(ARGV[2]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('PUBLISH', ARGV[3], ARGV[4])
return 1
`)

// AcquireLock atomically grants an exclusive edit lock on the item to the
// given session for the TTL. Grants if no lock exists, the existing lock has
// expired, or the session already holds it (extending the TTL). A
// lock_acquired event is published on grant.
//
// Returns a LockDeniedError (carrying the current holder) when a different,
// still-valid holder exists, or ErrNotFound if the item does not exist.
func (c *Client) AcquireLock(ctx context.Context, itemID, sessionID string, ttl time.Duration) (*Lock, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	nowMs := c.now().UnixMilli()
	expiresAtMs := nowMs + ttl.Milliseconds()

	event := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeLockAcquired,
		ItemID:          itemID,
		LockHolder:      sessionID,
		EmittedAtMs:     nowMs,
		SourceSessionID: sessionID,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock_acquired event: %w", err)
	}

	keys := []string{LockKey(c.boardID, itemID), ItemKey(c.boardID, itemID)}
	result, err := acquireLockScript.Run(ctx, c.rdb, keys,
		sessionID, nowMs, expiresAtMs, EventsChannel(c.boardID), string(eventJSON)).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock in Redis: %w", err)
	}

	code, holder := lockScriptResult(result)
	switch code {
	case -1:
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	case 0:
		return nil, &LockDeniedError{ItemID: itemID, Holder: holder}
	}

	return &Lock{
		ItemID:       itemID,
		Holder:       sessionID,
		AcquiredAtMs: nowMs,
		ExpiresAtMs:  expiresAtMs,
	}, nil
}

// RenewLock extends the TTL of a lock the session already holds.
// Returns a LockDeniedError if the caller is not the current unexpired
// holder.
func (c *Client) RenewLock(ctx context.Context, itemID, sessionID string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	nowMs := c.now().UnixMilli()
	expiresAtMs := nowMs + ttl.Milliseconds()

	result, err := renewLockScript.Run(ctx, c.rdb, []string{LockKey(c.boardID, itemID)},
		sessionID, nowMs, expiresAtMs).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to renew lock in Redis: %w", err)
	}

	code, holder := lockScriptResult(result)
	if code != 1 {
		return nil, &LockDeniedError{ItemID: itemID, Holder: holder}
	}

	return &Lock{
		ItemID:      itemID,
		Holder:      sessionID,
		ExpiresAtMs: expiresAtMs,
	}, nil
}

// ReleaseLock releases the session's lock on the item and publishes
// lock_released. A release by a session that is not the current holder is a
// silent no-op: locks are never force-released. Idempotent.
func (c *Client) ReleaseLock(ctx context.Context, itemID, sessionID string) error {
	nowMs := c.now().UnixMilli()
	event := &ChangeEvent{
		BoardID:         c.boardID,
		Type:            ChangeLockReleased,
		ItemID:          itemID,
		LockHolder:      sessionID,
		EmittedAtMs:     nowMs,
		SourceSessionID: sessionID,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lock_released event: %w", err)
	}

	err = releaseLockScript.Run(ctx, c.rdb, []string{LockKey(c.boardID, itemID)},
		sessionID, EventsChannel(c.boardID), string(eventJSON)).Err()
	if err != nil {
		return fmt.Errorf("failed to release lock in Redis: %w", err)
	}

	return nil
}

// GetLock returns the active lock on an item, or ErrNotFound if the item is
// unlocked or the lock has expired.
func (c *Client) GetLock(ctx context.Context, itemID string) (*Lock, error) {
	hashData, err := c.rdb.HGetAll(ctx, LockKey(c.boardID, itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read lock from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}

	lock, err := HashToLock(itemID, hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize lock: %w", err)
	}

	if lock.ExpiresAtMs <= c.now().UnixMilli() {
		return nil, ErrNotFound
	}

	return lock, nil
}

// SweepExpiredLocks scans the board's locks, deletes any whose TTL has
// passed, and publishes lock_released for each so observer views stay
// consistent when a holder crashed or disconnected without releasing.
// Returns the number of locks swept.
func (c *Client) SweepExpiredLocks(ctx context.Context) (int, error) {
	nowMs := c.now().UnixMilli()
	prefix := LockKeyPrefix(c.boardID)
	swept := 0

	iter := c.rdb.Scan(ctx, 0, LockKeyPattern(c.boardID), 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		itemID := strings.TrimPrefix(key, prefix)

		hashData, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil || len(hashData) == 0 {
			continue
		}
		lock, err := HashToLock(itemID, hashData)
		if err != nil || lock.ExpiresAtMs > nowMs {
			continue
		}

		event := &ChangeEvent{
			BoardID:     c.boardID,
			Type:        ChangeLockReleased,
			ItemID:      itemID,
			LockHolder:  lock.Holder,
			EmittedAtMs: nowMs,
		}
		eventJSON, err := json.Marshal(event)
		if err != nil {
			return swept, fmt.Errorf("failed to marshal lock_released event: %w", err)
		}

		released, err := sweepLockScript.Run(ctx, c.rdb, []string{key},
			lock.Holder, nowMs, EventsChannel(c.boardID), string(eventJSON)).Int()
		if err != nil {
			return swept, fmt.Errorf("failed to sweep lock for item %s: %w", itemID, err)
		}
		swept += released
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("failed to scan board locks: %w", err)
	}

	return swept, nil
}

// Sweeper periodically removes expired locks from a board.
// Run it in its own goroutine; it exits when the context is cancelled.
type Sweeper struct {
	client   *Client
	interval time.Duration
}

// NewSweeper creates a sweeper for the client's board. A non-positive
// interval defaults to half the default lock TTL.
func NewSweeper(client *Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultLockTTL / 2
	}
	return &Sweeper{client: client, interval: interval}
}

// Run sweeps expired locks every interval until the context is cancelled.
// Sweep errors are reported through onError (may be nil) and do not stop the
// loop.
func (s *Sweeper) Run(ctx context.Context, onError func(error)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.client.SweepExpiredLocks(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// lockScriptResult decodes the {code, holder} pair returned by the lock
// scripts.
func lockScriptResult(result []interface{}) (code int64, holder string) {
	if len(result) > 0 {
		if n, ok := result[0].(int64); ok {
			code = n
		}
	}
	if len(result) > 1 {
		if s, ok := result[1].(string); ok {
			holder = s
		}
	}
	return code, holder
}
