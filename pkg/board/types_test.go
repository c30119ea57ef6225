package board

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dyluth/corkboard/pkg/geometry"
)

func TestItemValidate(t *testing.T) {
	valid := func() *Item {
		return &Item{
			ID:      uuid.New().String(),
			BoardID: "board-1",
			X:       260,
			Y:       260,
			Content: "note",
		}
	}

	t.Run("accepts valid item", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects non-UUID ID", func(t *testing.T) {
		item := valid()
		item.ID = "not-a-uuid"
		assert.Error(t, item.Validate())
	})

	t.Run("rejects empty board ID", func(t *testing.T) {
		item := valid()
		item.BoardID = ""
		assert.Error(t, item.Validate())
	})

	t.Run("rejects out of range position", func(t *testing.T) {
		item := valid()
		item.X = -1
		assert.Error(t, item.Validate())

		item = valid()
		item.Y = geometry.CoordMax + 1
		assert.Error(t, item.Validate())
	})

	t.Run("rejects negative version", func(t *testing.T) {
		item := valid()
		item.Version = -1
		assert.Error(t, item.Validate())
	})
}

func TestChangeTypeValidate(t *testing.T) {
	for _, ct := range []ChangeType{
		ChangeCreated, ChangeUpdated, ChangeDeleted, ChangeLockAcquired, ChangeLockReleased,
	} {
		assert.NoError(t, ct.Validate(), "type %q", ct)
	}

	assert.Error(t, ChangeType("moved").Validate())
	assert.Error(t, ChangeType("").Validate())
}

func TestChangeEventValidate(t *testing.T) {
	event := &ChangeEvent{
		BoardID: "board-1",
		Type:    ChangeUpdated,
		ItemID:  uuid.New().String(),
	}
	assert.NoError(t, event.Validate())

	t.Run("rejects empty board ID", func(t *testing.T) {
		bad := *event
		bad.BoardID = ""
		assert.Error(t, bad.Validate())
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		bad := *event
		bad.Type = "renamed"
		assert.Error(t, bad.Validate())
	})

	t.Run("rejects non-UUID item ID", func(t *testing.T) {
		bad := *event
		bad.ItemID = "item-1"
		assert.Error(t, bad.Validate())
	})
}

func TestContentPatchIsEmpty(t *testing.T) {
	assert.True(t, ContentPatch{}.IsEmpty())

	content := "x"
	assert.False(t, ContentPatch{Content: &content}.IsEmpty())
	assert.False(t, ContentPatch{Metadata: &content}.IsEmpty())
}
