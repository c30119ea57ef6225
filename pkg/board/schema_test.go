package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPatterns(t *testing.T) {
	assert.Equal(t, "corkboard:b1:item:i1", ItemKey("b1", "i1"))
	assert.Equal(t, "corkboard:b1:item:*", ItemKeyPattern("b1"))
	assert.Equal(t, "corkboard:b1:lock:i1", LockKey("b1", "i1"))
	assert.Equal(t, "corkboard:b1:lock:*", LockKeyPattern("b1"))
	assert.Equal(t, "corkboard:b1:events", EventsChannel("b1"))
}

func TestLockKeyPrefixRecoversItemID(t *testing.T) {
	key := LockKey("b1", "item-42")
	assert.Equal(t, "corkboard:b1:lock:", LockKeyPrefix("b1"))
	assert.Equal(t, "item-42", key[len(LockKeyPrefix("b1")):])
}
