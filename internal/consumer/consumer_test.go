package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/storefront-sync/internal/broker"
	"github.com/jnst/storefront-sync/internal/model"
)

type memorySink struct {
	mu      sync.Mutex
	state   map[uuid.UUID]any
	removed []uuid.UUID
}

func newMemorySink() *memorySink {
	return &memorySink{state: map[uuid.UUID]any{}}
}

func (s *memorySink) Upsert(_ context.Context, _ model.Subject, id uuid.UUID, detail any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[id] = detail
	return nil
}

func (s *memorySink) Remove(_ context.Context, _ model.Subject, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state, id)
	s.removed = append(s.removed, id)
	return nil
}

var errFetch = errors.New("api down")

func newHandler(sink Sink, live map[uuid.UUID]string, failing uuid.UUID) *Handler {
	fetch := FetcherFunc(func(_ context.Context, id uuid.UUID) (any, error) {
		if id == failing {
			return nil, errFetch
		}
		if v, ok := live[id]; ok {
			return v, nil
		}
		return nil, model.ErrNotFound
	})

	return NewHandler(sink, map[model.Subject]DetailFetcher{model.SubjectOrder: fetch})
}

func message(action model.Action, id uuid.UUID) broker.Message {
	return broker.Message{RecordID: 1, Subject: model.SubjectOrder, Action: action, SubjectUUID: &id}
}

func TestHandler_Handle(t *testing.T) {
	live := uuid.New()
	gone := uuid.New()
	sink := newMemorySink()
	h := newHandler(sink, map[uuid.UUID]string{live: "v2"}, uuid.Nil)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, message(model.ActionUpdate, live)))
	assert.Equal(t, "v2", sink.state[live])

	require.NoError(t, h.Handle(ctx, message(model.ActionCreate, gone)))
	assert.Equal(t, []uuid.UUID{gone}, sink.removed)

	require.NoError(t, h.Handle(ctx, message(model.ActionDelete, live)))
	assert.NotContains(t, sink.state, live)

	msg := message(model.ActionCreate, live)
	msg.Subject = model.SubjectUser
	assert.ErrorIs(t, h.Handle(ctx, msg), model.ErrUnknownSubject)

	msg.SubjectUUID = nil
	assert.NoError(t, h.Handle(ctx, msg))
}

type fakeReader struct {
	mu      sync.Mutex
	batches [][]broker.StreamEntry
	acked   []string
}

func (r *fakeReader) Read(ctx context.Context, _ int64) ([]broker.StreamEntry, error) {
	r.mu.Lock()
	if len(r.batches) > 0 {
		next := r.batches[0]
		r.batches = r.batches[1:]
		r.mu.Unlock()
		return next, nil
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (r *fakeReader) Ack(_ context.Context, entry broker.StreamEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.acked = append(r.acked, entry.ID)
	return nil
}

func (r *fakeReader) ackedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.acked...)
}

func TestRun_AcksHandledAndMalformedOnly(t *testing.T) {
	ok := uuid.New()
	failing := uuid.New()
	sink := newMemorySink()
	h := newHandler(sink, map[uuid.UUID]string{ok: "v1"}, failing)

	reader := &fakeReader{batches: [][]broker.StreamEntry{{
		{Stream: "sync:{storefront}:order", ID: "1-0", Message: message(model.ActionCreate, ok)},
		{Stream: "sync:{storefront}:order", ID: "2-0", Message: message(model.ActionUpdate, failing)},
		{Stream: "sync:{storefront}:order", ID: "3-0", Err: broker.ErrMalformedMessage},
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, reader, h)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(reader.ackedIDs()) == 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"1-0", "3-0"}, reader.ackedIDs())
	assert.Equal(t, "v1", sink.state[ok])
}
