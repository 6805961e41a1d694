// Package consumer applies sync notifications read from the broker to a downstream sink.
// Notifications only say what changed; the current state is always pulled from the polling API.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/broker"
	"github.com/jnst/storefront-sync/internal/model"
)

const (
	readCount       = 10
	errorRetryDelay = time.Second
)

// DetailFetcher returns the live state of a subject or model.ErrNotFound.
type DetailFetcher interface {
	Fetch(ctx context.Context, id uuid.UUID) (any, error)
}

// FetcherFunc adapts a function to DetailFetcher.
type FetcherFunc func(ctx context.Context, id uuid.UUID) (any, error)

// Fetch implements DetailFetcher.
func (f FetcherFunc) Fetch(ctx context.Context, id uuid.UUID) (any, error) {
	return f(ctx, id)
}

// Sink receives the resolved changes.
type Sink interface {
	Upsert(ctx context.Context, subject model.Subject, id uuid.UUID, detail any) error
	Remove(ctx context.Context, subject model.Subject, id uuid.UUID) error
}

// StreamReader is the broker side of the consumer.
type StreamReader interface {
	Read(ctx context.Context, count int64) ([]broker.StreamEntry, error)
	Ack(ctx context.Context, entry broker.StreamEntry) error
}

// Handler resolves notifications into sink calls.
type Handler struct {
	fetchers map[model.Subject]DetailFetcher
	sink     Sink
}

// NewHandler creates a Handler. fetchers must hold one entry per consumed subject.
func NewHandler(sink Sink, fetchers map[model.Subject]DetailFetcher) *Handler {
	return &Handler{fetchers: fetchers, sink: sink}
}

// Handle applies one notification. A subject deleted after the notification was
// written is removed from the sink rather than treated as an error.
func (h *Handler) Handle(ctx context.Context, msg broker.Message) error {
	if msg.SubjectUUID == nil {
		slog.Warn("sync message without subject uuid",
			slog.Int64("record_id", msg.RecordID),
			slog.String("subject", msg.Subject.String()),
		)
		return nil
	}
	id := *msg.SubjectUUID

	if msg.Action == model.ActionDelete {
		return h.sink.Remove(ctx, msg.Subject, id)
	}

	fetcher, ok := h.fetchers[msg.Subject]
	if !ok {
		return fmt.Errorf("%w: %q", model.ErrUnknownSubject, msg.Subject)
	}

	detail, err := fetcher.Fetch(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		slog.Info("subject gone before it was fetched",
			slog.String("subject", msg.Subject.String()),
			slog.String("uuid", id.String()),
		)
		return h.sink.Remove(ctx, msg.Subject, id)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch %s %s: %w", msg.Subject, id, err)
	}

	return h.sink.Upsert(ctx, msg.Subject, id, detail)
}

// Run reads the stream until ctx is cancelled. Handled and undecodable entries
// are acknowledged; entries whose handling failed stay pending in the group
// until the reader hands them out again.
func Run(ctx context.Context, reader StreamReader, handler *Handler) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("consumer stopped")
			return
		default:
		}

		entries, err := reader.Read(ctx, readCount)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			slog.Error("error consuming messages", slog.String("error", err.Error()))
			select {
			case <-time.After(errorRetryDelay):
			case <-ctx.Done():
			}

			continue
		}

		for _, entry := range entries {
			processEntry(ctx, reader, handler, entry)
		}
	}
}

func processEntry(ctx context.Context, reader StreamReader, handler *Handler, entry broker.StreamEntry) {
	if entry.Err != nil {
		slog.Error("dropping malformed message",
			slog.String("stream", entry.Stream),
			slog.String("message_id", entry.ID),
			slog.String("error", entry.Err.Error()),
		)
	} else if err := handler.Handle(ctx, entry.Message); err != nil {
		slog.Error("failed to process message",
			slog.String("stream", entry.Stream),
			slog.String("message_id", entry.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := reader.Ack(ctx, entry); err != nil {
		slog.Error("failed to ACK message",
			slog.String("message_id", entry.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.Debug("ACKed message", slog.String("message_id", entry.ID))
}

// LogSink writes every change to the default logger.
type LogSink struct{}

// Upsert implements Sink.
func (LogSink) Upsert(_ context.Context, subject model.Subject, id uuid.UUID, detail any) error {
	slog.Info("subject changed",
		slog.String("subject", subject.String()),
		slog.String("uuid", id.String()),
		slog.Any("detail", detail),
	)
	return nil
}

// Remove implements Sink.
func (LogSink) Remove(_ context.Context, subject model.Subject, id uuid.UUID) error {
	slog.Info("subject removed",
		slog.String("subject", subject.String()),
		slog.String("uuid", id.String()),
	)
	return nil
}
