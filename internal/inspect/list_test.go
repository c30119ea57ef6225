package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/pkg/board"
)

func setupClient(t *testing.T) *board.Client {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-board")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func addItem(t *testing.T, client *board.Client, x, y int, content string) *board.Item {
	t.Helper()
	item := &board.Item{ID: uuid.New().String(), X: x, Y: y, Content: content}
	require.NoError(t, client.CreateItem(context.Background(), item))
	return item
}

func TestListItemsEmpty(t *testing.T) {
	client := setupClient(t)

	var buf bytes.Buffer
	require.NoError(t, ListItems(context.Background(), client, OutputFormatDefault, nil, &buf))
	assert.Contains(t, buf.String(), "No items found on board 'test-board'")
}

func TestListItemsTable(t *testing.T) {
	client := setupClient(t)
	addItem(t, client, 100, 200, "first note")
	addItem(t, client, 300, 400, "second note")

	var buf bytes.Buffer
	require.NoError(t, ListItems(context.Background(), client, OutputFormatDefault, nil, &buf))

	out := buf.String()
	assert.Contains(t, out, "first note")
	assert.Contains(t, out, "second note")
	assert.Contains(t, out, "2 items found")
}

func TestListItemsJSONL(t *testing.T) {
	client := setupClient(t)
	item := addItem(t, client, 50, 60, "payload")

	var buf bytes.Buffer
	require.NoError(t, ListItems(context.Background(), client, OutputFormatJSONL, nil, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var decoded board.Item
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, item.ID, decoded.ID)
	assert.Equal(t, 50, decoded.X)
	assert.Equal(t, 60, decoded.Y)
}

func TestListItemsFilters(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	locked := addItem(t, client, 1, 1, "locked item")
	addItem(t, client, 2, 2, "free item")
	_, err := client.AcquireLock(ctx, locked.ID, "session-a", time.Minute)
	require.NoError(t, err)

	t.Run("locked only", func(t *testing.T) {
		var buf bytes.Buffer
		filters := &FilterCriteria{LockedOnly: true}
		require.NoError(t, ListItems(ctx, client, OutputFormatDefault, filters, &buf))

		out := buf.String()
		assert.Contains(t, out, "locked item")
		assert.NotContains(t, out, "free item")
		assert.Contains(t, out, "session-a")
	})

	t.Run("content glob", func(t *testing.T) {
		var buf bytes.Buffer
		filters := &FilterCriteria{ContentGlob: "free*"}
		require.NoError(t, ListItems(ctx, client, OutputFormatDefault, filters, &buf))

		out := buf.String()
		assert.Contains(t, out, "free item")
		assert.NotContains(t, out, "locked item")
	})

	t.Run("since excludes older items", func(t *testing.T) {
		var buf bytes.Buffer
		filters := &FilterCriteria{SinceTimestampMs: time.Now().Add(time.Hour).UnixMilli()}
		require.NoError(t, ListItems(ctx, client, OutputFormatDefault, filters, &buf))
		assert.Contains(t, buf.String(), "No items found")
	})

	t.Run("until includes current items", func(t *testing.T) {
		var buf bytes.Buffer
		filters := &FilterCriteria{UntilTimestampMs: time.Now().Add(time.Hour).UnixMilli()}
		require.NoError(t, ListItems(ctx, client, OutputFormatDefault, filters, &buf))
		assert.Contains(t, buf.String(), "2 items found")
	})
}

func TestListItemsIgnoresOtherBoards(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	clientA, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "board-a")
	require.NoError(t, err)
	t.Cleanup(func() { clientA.Close() })

	clientB, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "board-b")
	require.NoError(t, err)
	t.Cleanup(func() { clientB.Close() })

	addItem(t, clientA, 1, 1, "on board a")
	addItem(t, clientB, 2, 2, "on board b")

	var buf bytes.Buffer
	require.NoError(t, ListItems(context.Background(), clientA, OutputFormatDefault, nil, &buf))

	out := buf.String()
	assert.Contains(t, out, "on board a")
	assert.NotContains(t, out, "on board b")
}
