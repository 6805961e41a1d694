package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/jnst/storefront-sync/internal/model"
)

const redisBlockTimeout = 1000 // milliseconds

// Defaults for reclaiming entries that were delivered but never acknowledged.
const (
	DefaultReclaimMinIdle  = 30 * time.Second
	DefaultReclaimInterval = 30 * time.Second
)

// NewRedisClient connects to a single Redis address.
func NewRedisClient(addr string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisStreamPublisher appends sync records to per-subject Redis streams.
type RedisStreamPublisher struct {
	client rueidis.Client
}

// NewRedisStreamPublisher creates a publisher on client.
func NewRedisStreamPublisher(client rueidis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client}
}

// Publish XADDs the record to its subject's stream.
func (p *RedisStreamPublisher) Publish(ctx context.Context, record *model.SyncRecord) error {
	streamKey := StreamKey(record.Subject)

	fv := p.client.B().Xadd().Key(streamKey).Id("*").FieldValue()
	for _, f := range streamFields(NewMessage(record)) {
		fv = fv.FieldValue(f.name, f.value)
	}

	if err := p.client.Do(ctx, fv.Build()).Error(); err != nil {
		if _, ok := rueidis.IsRedisErr(err); !ok {
			return fmt.Errorf("%w: %w", model.ErrPublisherUnavailable, err)
		}
		return fmt.Errorf("failed to publish record %d to %s: %w", record.ID, streamKey, err)
	}

	return nil
}

// Close closes the Redis client.
func (p *RedisStreamPublisher) Close() error {
	p.client.Close()

	return nil
}

// StreamEntry is one message read from a stream.
type StreamEntry struct {
	Stream  string
	ID      string
	Message Message
	// Err is set when the entry could not be decoded; it should be acknowledged anyway.
	Err error
}

// StreamConsumer reads sync streams as a member of a consumer group.
// It is not safe for concurrent use.
type StreamConsumer struct {
	client   rueidis.Client
	group    string
	consumer string
	streams  []string

	reclaimMinIdle  time.Duration
	reclaimInterval time.Duration
	lastReclaim     time.Time
	cursors         map[string]string
}

// NewStreamConsumer creates a consumer of the streams of subjects.
func NewStreamConsumer(client rueidis.Client, group, consumer string, subjects ...model.Subject) *StreamConsumer {
	streams := make([]string, len(subjects))
	for i, s := range subjects {
		streams[i] = StreamKey(s)
	}

	return &StreamConsumer{
		client:          client,
		group:           group,
		consumer:        consumer,
		streams:         streams,
		reclaimMinIdle:  DefaultReclaimMinIdle,
		reclaimInterval: DefaultReclaimInterval,
		cursors:         make(map[string]string, len(streams)),
	}
}

// SetReclaim changes how long an unacknowledged entry must sit idle before it
// is claimed again, and how often Read looks for such entries.
func (c *StreamConsumer) SetReclaim(minIdle, interval time.Duration) {
	c.reclaimMinIdle = minIdle
	c.reclaimInterval = interval
}

// EnsureGroups creates the consumer group on every stream, creating the streams as needed.
func (c *StreamConsumer) EnsureGroups(ctx context.Context) {
	for _, stream := range c.streams {
		cmd := c.client.B().XgroupCreate().Key(stream).Group(c.group).Id("0").Mkstream().Build()
		if err := c.client.Do(ctx, cmd).Error(); err != nil {
			slog.Info("consumer group creation result (may already exist)",
				slog.String("stream", stream),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Read returns entries to process. On the first call and then once per reclaim
// interval it first claims entries of the group that stayed unacknowledged
// longer than the minimum idle time, so failed deliveries are retried.
// Otherwise it blocks up to a second for new entries and returns nil on timeout.
func (c *StreamConsumer) Read(ctx context.Context, count int64) ([]StreamEntry, error) {
	if time.Since(c.lastReclaim) >= c.reclaimInterval {
		c.lastReclaim = time.Now()

		entries, err := c.reclaim(ctx, count)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return entries, nil
		}
	}

	ids := make([]string, len(c.streams))
	for i := range ids {
		ids[i] = ">"
	}

	cmd := c.client.B().Xreadgroup().Group(c.group, c.consumer).
		Count(count).
		Block(redisBlockTimeout).
		Streams().
		Key(c.streams...).
		Id(ids...).
		Build()

	result, err := c.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}

		return nil, err
	}

	var entries []StreamEntry
	for stream, messages := range result {
		for _, msg := range messages {
			entries = append(entries, newStreamEntry(stream, msg))
		}
	}

	return entries, nil
}

// reclaim runs XAUTOCLAIM on every stream, resuming from the cursor Redis
// returned last time.
func (c *StreamConsumer) reclaim(ctx context.Context, count int64) ([]StreamEntry, error) {
	minIdle := strconv.FormatInt(c.reclaimMinIdle.Milliseconds(), 10)

	var entries []StreamEntry
	for _, stream := range c.streams {
		start := c.cursors[stream]
		if start == "" {
			start = "0-0"
		}

		cmd := c.client.B().Xautoclaim().Key(stream).Group(c.group).Consumer(c.consumer).
			MinIdleTime(minIdle).
			Start(start).
			Count(count).
			Build()

		reply, err := c.client.Do(ctx, cmd).ToArray()
		if err != nil {
			return nil, fmt.Errorf("failed to reclaim pending entries of %s: %w", stream, err)
		}
		if len(reply) < 2 {
			continue
		}

		if next, err := reply[0].ToString(); err == nil {
			c.cursors[stream] = next
		}

		messages, err := reply[1].AsXRange()
		if err != nil {
			return nil, fmt.Errorf("failed to decode reclaimed entries of %s: %w", stream, err)
		}

		for _, msg := range messages {
			entries = append(entries, newStreamEntry(stream, msg))
		}
	}

	if len(entries) > 0 {
		slog.Info("reclaimed unacknowledged entries", slog.Int("count", len(entries)))
	}

	return entries, nil
}

func newStreamEntry(stream string, msg rueidis.XRangeEntry) StreamEntry {
	m, err := DecodeStreamFields(msg.FieldValues)

	return StreamEntry{Stream: stream, ID: msg.ID, Message: m, Err: err}
}

// Ack acknowledges an entry.
func (c *StreamConsumer) Ack(ctx context.Context, entry StreamEntry) error {
	cmd := c.client.B().Xack().Key(entry.Stream).Group(c.group).Id(entry.ID).Build()

	return c.client.Do(ctx, cmd).Error()
}
