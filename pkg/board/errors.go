package board

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Error taxonomy for store and lock operations. Every error here is
// recoverable by rolling the affected item's local state back to its last
// confirmed value; none is process-fatal.
var (
	// ErrVersionConflict indicates a compare-and-set write lost the race:
	// another writer committed first. Re-read and retry, or surface the
	// conflict to the user.
	ErrVersionConflict = errors.New("version conflict: item was modified by another writer")

	// ErrDuplicateID indicates a create with a caller-supplied ID that
	// already exists on the board.
	ErrDuplicateID = errors.New("duplicate item ID")

	// ErrNotFound indicates the item does not exist (or was deleted
	// concurrently). Remove it from the local view and abandon any pending
	// mutation against it.
	ErrNotFound = errors.New("item not found")
)

// LockDeniedError indicates a lock acquisition or renewal failed because a
// different, still-valid holder exists.
type LockDeniedError struct {
	ItemID string
	Holder string // Session currently holding the lock
}

func (e *LockDeniedError) Error() string {
	return fmt.Sprintf("item %s is locked by session %s", e.ItemID, e.Holder)
}

// IsLockDenied returns true if the error is a LockDeniedError, along with the
// session currently holding the lock.
func IsLockDenied(err error) (holder string, ok bool) {
	var denied *LockDeniedError
	if errors.As(err, &denied) {
		return denied.Holder, true
	}
	return "", false
}

// IsNotFound returns true if the error is ErrNotFound or a Redis "key not
// found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}

// IsVersionConflict returns true if the error is ErrVersionConflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
