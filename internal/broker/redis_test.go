package broker

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/model"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return mr, client
}

func TestRedisStream_PublishReadAck(t *testing.T) {
	_, client := newMiniRedisClient(t)
	ctx := context.Background()

	consumer := NewStreamConsumer(client, "crm", "worker-1", model.Subjects...)
	consumer.EnsureGroups(ctx)
	// Creating the groups twice only logs.
	consumer.EnsureGroups(ctx)

	record := testRecord()
	require.NoError(t, NewRedisStreamPublisher(client).Publish(ctx, record))

	entries, err := consumer.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	require.NoError(t, entry.Err)
	assert.Equal(t, StreamKey(model.SubjectOrder), entry.Stream)
	assert.Equal(t, NewMessage(record).RecordID, entry.Message.RecordID)
	assert.Equal(t, record.Action, entry.Message.Action)
	assert.Equal(t, *record.SubjectUUID, *entry.Message.SubjectUUID)
	assert.JSONEq(t, string(record.Payload), string(entry.Message.Payload))

	require.NoError(t, consumer.Ack(ctx, entry))

	summary, err := client.Do(ctx, client.B().Xpending().Key(StreamKey(model.SubjectOrder)).Group("crm").Build()).ToArray()
	require.NoError(t, err)
	pending, err := summary[0].AsInt64()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRedisStream_ReadsBothSubjectsInOneCall(t *testing.T) {
	_, client := newMiniRedisClient(t)
	ctx := context.Background()

	consumer := NewStreamConsumer(client, "crm", "worker-1", model.Subjects...)
	consumer.EnsureGroups(ctx)

	order := testRecord()
	user := testRecord()
	user.ID = order.ID + 1
	user.Subject = model.SubjectUser

	publisher := NewRedisStreamPublisher(client)
	require.NoError(t, publisher.Publish(ctx, order))
	require.NoError(t, publisher.Publish(ctx, user))

	entries, err := consumer.Read(ctx, 10)
	require.NoError(t, err)

	streams := make([]string, len(entries))
	for i, e := range entries {
		streams[i] = e.Stream
	}
	assert.ElementsMatch(t, []string{StreamKey(model.SubjectOrder), StreamKey(model.SubjectUser)}, streams)
}

func TestRedisStream_ReclaimsUnacknowledgedEntries(t *testing.T) {
	_, client := newMiniRedisClient(t)
	ctx := context.Background()

	consumer := NewStreamConsumer(client, "crm", "worker-1", model.SubjectOrder)
	consumer.SetReclaim(0, 0)
	consumer.EnsureGroups(ctx)

	require.NoError(t, NewRedisStreamPublisher(client).Publish(ctx, testRecord()))

	first, err := consumer.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Not acknowledged: the next read hands the same entry out again.
	again, err := consumer.Read(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].ID, again[0].ID)
	assert.Equal(t, first[0].Message.RecordID, again[0].Message.RecordID)

	require.NoError(t, consumer.Ack(ctx, again[0]))

	summary, err := client.Do(ctx, client.B().Xpending().Key(StreamKey(model.SubjectOrder)).Group("crm").Build()).ToArray()
	require.NoError(t, err)
	pending, err := summary[0].AsInt64()
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRedisStreamPublisher_UnreachableIsUnavailable(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	mr.Close()

	err := NewRedisStreamPublisher(client).Publish(context.Background(), testRecord())

	assert.ErrorIs(t, err, model.ErrPublisherUnavailable)
}
