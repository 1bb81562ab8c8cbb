// Package jobs publishes asynchronous work and change notifications to Pub/Sub.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	"github.com/pocket-tcg/api/internal/domain"
)

// WishlistEventType is the "type" attribute on every wishlist change message.
const WishlistEventType = "wishlist.updated"

// WishlistEventPublisher publishes wishlist change events to a Pub/Sub topic. Messages are
// ordered per user via the ordering key.
type WishlistEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	now     func() time.Time

	entropyMu sync.Mutex
	entropy   io.Reader
}

// NewWishlistEventPublisher wraps topic. Message ordering is enabled on the topic.
func NewWishlistEventPublisher(topic *pubsub.Topic) (*WishlistEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("wishlist event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &WishlistEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// PublishWishlistEvent sends event and waits for the server id. A missing event id or timestamp is
// filled in before sending.
func (p *WishlistEventPublisher) PublishWishlistEvent(ctx context.Context, event domain.WishlistEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("wishlist event publisher: not initialised")
	}
	if event.UserID == "" {
		return "", errors.New("wishlist event publisher: user id is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	if event.ID == "" {
		event.ID = p.newID(event.OccurredAt)
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal wishlist event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: event.UserID,
		Attributes: map[string]string{
			"type":       WishlistEventType,
			"eventId":    event.ID,
			"userId":     event.UserID,
			"action":     string(event.Action),
			"entryCount": strconv.Itoa(event.EntryCount),
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		// A failed publish pauses the ordering key until resumed.
		p.topic.ResumePublish(event.UserID)
		return "", fmt.Errorf("publish wishlist event: %w", err)
	}
	return id, nil
}

func (p *WishlistEventPublisher) newID(at time.Time) string {
	p.entropyMu.Lock()
	defer p.entropyMu.Unlock()
	return "wev_" + ulid.MustNew(ulid.Timestamp(at), p.entropy).String()
}
