package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/ai-gov/src/ledger"
)

const (
	noncePrefix = "nonce:"
	nonceTTL    = 5 * time.Minute

	// EventStream is the Redis stream ledger events are appended to.
	EventStream = "aigov.events"

	streamMaxLen = 10000
)

// ErrNoNonce is returned when no challenge is pending for an address.
var ErrNoNonce = errors.New("no pending nonce")

func NewRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Nonces stores one-shot sign-in challenges.
type Nonces struct {
	rdb *redis.Client
}

func NewNonces(rdb *redis.Client) *Nonces {
	return &Nonces{rdb: rdb}
}

func (n *Nonces) Set(ctx context.Context, addr, nonce string) error {
	return n.rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

// Take returns and deletes the pending nonce for addr.
func (n *Nonces) Take(ctx context.Context, addr string) (string, error) {
	v, err := n.rdb.GetDel(ctx, noncePrefix+addr).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoNonce
	}
	return v, err
}

// Events appends ledger events to a Redis stream and reads them back.
type Events struct {
	rdb    *redis.Client
	stream string
}

func NewEvents(rdb *redis.Client, stream string) *Events {
	if stream == "" {
		stream = EventStream
	}
	return &Events{rdb: rdb, stream: stream}
}

func (e *Events) Publish(ctx context.Context, ev ledger.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: e.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"type":    ev.Type,
			"payload": string(payload),
		},
	}).Err()
}

// StreamEvent is an event together with its stream entry id.
type StreamEvent struct {
	ID    string
	Event ledger.Event
}

// Read returns up to count events after lastID. block < 0 does not wait.
// An empty result is not an error.
func (e *Events) Read(ctx context.Context, lastID string, count int64, block time.Duration) ([]StreamEvent, error) {
	res, err := e.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{e.stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []StreamEvent
	for _, stream := range res {
		for _, msg := range stream.Messages {
			raw, _ := msg.Values["payload"].(string)
			var ev ledger.Event
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				// Keep the id so the reader moves past the bad entry.
				out = append(out, StreamEvent{ID: msg.ID})
				continue
			}
			out = append(out, StreamEvent{ID: msg.ID, Event: ev})
		}
	}
	return out, nil
}

var _ ledger.Publisher = (*Events)(nil)
