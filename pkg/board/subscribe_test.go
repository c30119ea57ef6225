package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/pkg/geometry"
)

func TestSubscribeEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("delivers committed events in order for one item", func(t *testing.T) {
		item := newTestItem(0, 0)
		require.NoError(t, client.CreateItem(ctx, item))

		sub, err := client.SubscribeEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		for v := 0; v < 5; v++ {
			_, err := client.UpdatePosition(ctx, item.ID, v*10, 0, v)
			require.NoError(t, err)
		}

		for want := 1; want <= 5; want++ {
			select {
			case event := <-sub.Events():
				assert.Equal(t, ChangeUpdated, event.Type)
				assert.Equal(t, want, event.Version)
			case <-time.After(1 * time.Second):
				t.Fatalf("timeout waiting for event version %d", want)
			}
		}
	})

	t.Run("does not replay history to a new subscriber", func(t *testing.T) {
		item := newTestItem(0, 0)
		require.NoError(t, client.CreateItem(ctx, item))

		sub, err := client.SubscribeEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		select {
		case event := <-sub.Events():
			t.Fatalf("unexpected replayed event: %+v", event)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("independent subscribers each receive all events", func(t *testing.T) {
		subA, err := client.SubscribeEvents(ctx)
		require.NoError(t, err)
		defer subA.Close()

		subB, err := client.SubscribeEvents(ctx)
		require.NoError(t, err)
		defer subB.Close()

		item := newTestItem(50, 50)
		require.NoError(t, client.CreateItem(ctx, item))

		for _, sub := range []*Subscription{subA, subB} {
			select {
			case event := <-sub.Events():
				assert.Equal(t, ChangeCreated, event.Type)
				assert.Equal(t, item.ID, event.ItemID)
			case <-time.After(1 * time.Second):
				t.Fatal("timeout waiting for event")
			}
		}
	})

	t.Run("close stops the stream", func(t *testing.T) {
		sub, err := client.SubscribeEvents(ctx)
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close()) // safe to call twice

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("context cancellation stops the stream", func(t *testing.T) {
		subCtx, cancel := context.WithCancel(ctx)
		sub, err := client.SubscribeEvents(subCtx)
		require.NoError(t, err)
		defer sub.Close()

		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("slow subscriber is dropped, not buffered forever", func(t *testing.T) {
		sub, err := client.SubscribeEvents(ctx)
		require.NoError(t, err)
		defer sub.Close()

		// Never drain sub.Events(); overflow the buffer.
		item := newTestItem(0, 0)
		require.NoError(t, client.CreateItem(ctx, item))
		for v := 0; v < subscriptionBuffer+16; v++ {
			_, err := client.UpdatePosition(ctx, item.ID, (v*3)%geometry.CoordMax, 0, v)
			require.NoError(t, err)
		}

		// The cutoff is reported, then the stream closes once drained.
		select {
		case err := <-sub.Errors():
			assert.ErrorIs(t, err, ErrSubscriberTooSlow)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for slow subscriber to be dropped")
		}

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-sub.Events():
				return !ok
			default:
				return false
			}
		}, time.Second, time.Millisecond)
	})
}
