package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// subscriptionBuffer bounds how far a subscriber may lag behind the bus.
// A subscriber that cannot drain this many events is cut off and must
// resynchronize from a fresh snapshot, rather than growing memory without
// bound.
const subscriptionBuffer = 64

// Subscription represents an active Pub/Sub subscription to a board's
// change events. Caller must call Close() when done to clean up resources.
//
// The Events() channel is closed when the subscription ends - on Close(),
// context cancellation, or when the subscriber falls too far behind
// (see ErrSubscriberTooSlow). A consumer seeing the channel close must take
// a fresh snapshot before consuming a new subscription.
type Subscription struct {
	events <-chan *ChangeEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// ErrSubscriberTooSlow is delivered on the Errors() channel just before a
// lagging subscriber's event stream is closed.
var ErrSubscriberTooSlow = fmt.Errorf("subscriber fell behind the change bus; resynchronize from a snapshot")

// Events returns the channel of change events.
func (s *Subscription) Events() <-chan *ChangeEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// Unmarshal failures are non-fatal - the message is skipped and the
// subscription continues. ErrSubscriberTooSlow is terminal.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to the board's change event channel.
// Returns a Subscription delivering typed ChangeEvents in the order Redis
// delivers them, which for a single item equals commit order (events are
// published atomically with their writes).
//
// Subscribe before (or concurrently with) taking a snapshot: the buffered
// channel holds events that arrive during the snapshot read, and version
// gated dedup makes a double-delivered event harmless.
func (c *Client) SubscribeEvents(ctx context.Context) (*Subscription, error) {
	channel := EventsChannel(c.boardID)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Force the SUBSCRIBE round trip so no event published after this call
	// returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to board events: %w", err)
	}

	eventsChan := make(chan *ChangeEvent, subscriptionBuffer)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					// Send error on error channel, skip message
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal change event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				default:
					// Buffer full: drop this subscriber rather than block the
					// bus or queue without bound.
					select {
					case errorsChan <- ErrSubscriberTooSlow:
					default:
					}
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
