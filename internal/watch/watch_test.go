package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/pkg/board"
)

// syncBuffer is a goroutine-safe writer for capturing streamed output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupClient(t *testing.T) *board.Client {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-board")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

// startStream runs Stream in the background and returns its output buffer.
func startStream(t *testing.T, client *board.Client, format OutputFormat) *syncBuffer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	buf := &syncBuffer{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Stream(ctx, client, format, buf)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Let the subscription establish before the test publishes.
	time.Sleep(100 * time.Millisecond)
	return buf
}

func TestStreamDefaultFormat(t *testing.T) {
	client := setupClient(t)
	buf := startStream(t, client, OutputFormatDefault)

	item := &board.Item{X: 100, Y: 200, Content: "streamed note"}
	require.NoError(t, client.CreateItem(context.Background(), item))

	require.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "created") &&
			strings.Contains(out, "pos=(100,200)") &&
			strings.Contains(out, "streamed note")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamJSONFormat(t *testing.T) {
	client := setupClient(t)
	buf := startStream(t, client, OutputFormatJSON)

	item := &board.Item{X: 5, Y: 6, Content: "json me"}
	require.NoError(t, client.CreateItem(context.Background(), item))

	var event board.ChangeEvent
	require.Eventually(t, func() bool {
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) == 0 || lines[0] == "" {
			return false
		}
		return json.Unmarshal([]byte(lines[0]), &event) == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, board.ChangeCreated, event.Type)
	assert.Equal(t, item.ID, event.ItemID)
}

func TestStreamLockEvents(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	item := &board.Item{X: 1, Y: 1, Content: "lockable"}
	require.NoError(t, client.CreateItem(ctx, item))

	buf := startStream(t, client, OutputFormatDefault)

	_, err := client.AcquireLock(ctx, item.ID, "session-a", time.Minute)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "lock_acquired") &&
			strings.Contains(buf.String(), "holder=session-a")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollForItem(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	t.Run("finds existing item", func(t *testing.T) {
		item := &board.Item{X: 1, Y: 2, Content: "here"}
		require.NoError(t, client.CreateItem(ctx, item))

		found, err := PollForItem(ctx, client, item.ID, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, item.ID, found.ID)
	})

	t.Run("finds item created mid-poll", func(t *testing.T) {
		itemID := uuid.New().String()
		time.AfterFunc(300*time.Millisecond, func() {
			item := &board.Item{ID: itemID, X: 3, Y: 4, Content: "late"}
			_ = client.CreateItem(context.Background(), item)
		})

		found, err := PollForItem(ctx, client, itemID, 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, itemID, found.ID)
	})

	t.Run("times out when item never appears", func(t *testing.T) {
		_, err := PollForItem(ctx, client, uuid.New().String(), 500*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})
}
