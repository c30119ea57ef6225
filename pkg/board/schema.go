package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by board ID so multiple
// boards can safely coexist on a single Redis server.
//
// Key pattern: corkboard:{board_id}:{entity}:{uuid}
// Channel pattern: corkboard:{board_id}:events

// ItemKey returns the Redis key for an item hash.
// Pattern: corkboard:{board_id}:item:{item_id}
func ItemKey(boardID, itemID string) string {
	return fmt.Sprintf("corkboard:%s:item:%s", boardID, itemID)
}

// ItemKeyPattern returns the SCAN pattern matching all item keys of a board.
func ItemKeyPattern(boardID string) string {
	return fmt.Sprintf("corkboard:%s:item:*", boardID)
}

// LockKey returns the Redis key for an item's lock hash.
// Pattern: corkboard:{board_id}:lock:{item_id}
func LockKey(boardID, itemID string) string {
	return fmt.Sprintf("corkboard:%s:lock:%s", boardID, itemID)
}

// LockKeyPattern returns the SCAN pattern matching all lock keys of a board.
// Used by the expiry sweeper.
func LockKeyPattern(boardID string) string {
	return fmt.Sprintf("corkboard:%s:lock:*", boardID)
}

// LockKeyPrefix returns the prefix shared by all lock keys of a board.
// Stripping it from a scanned key yields the item ID.
func LockKeyPrefix(boardID string) string {
	return fmt.Sprintf("corkboard:%s:lock:", boardID)
}

// EventsChannel returns the Pub/Sub channel name carrying the board's
// ChangeEvents.
// Pattern: corkboard:{board_id}:events
func EventsChannel(boardID string) string {
	return fmt.Sprintf("corkboard:%s:events", boardID)
}
