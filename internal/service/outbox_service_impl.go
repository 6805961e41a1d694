package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jnst/storefront-sync/internal/metrics"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

// OutboxServiceImpl implements OutboxService by pushing pending records to a Publisher.
type OutboxServiceImpl struct {
	queues    []repository.SyncQueueRepository
	publisher Publisher
}

// NewOutboxServiceImpl creates a new OutboxService implementation.
func NewOutboxServiceImpl(publisher Publisher, queues ...repository.SyncQueueRepository) OutboxService {
	return &OutboxServiceImpl{
		queues:    queues,
		publisher: publisher,
	}
}

// ProcessPending publishes up to limit pending records per queue, oldest first.
// A record that fails to publish is marked failed and the pass moves on; when the
// publisher is unavailable the pass stops and the records stay pending.
func (s *OutboxServiceImpl) ProcessPending(ctx context.Context, limit int) error {
	for _, queue := range s.queues {
		if err := s.processQueue(ctx, queue, limit); err != nil {
			return err
		}
	}

	return nil
}

func (s *OutboxServiceImpl) processQueue(ctx context.Context, queue repository.SyncQueueRepository, limit int) error {
	subject := queue.Subject().String()

	records, err := queue.GetPending(ctx, limit)
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.publisher.Publish(ctx, record); err != nil {
			if errors.Is(err, model.ErrPublisherUnavailable) {
				return err
			}

			slog.Error("failed to publish sync record",
				slog.String("subject", subject),
				slog.Int64("record_id", record.ID),
				slog.String("error", err.Error()),
			)

			if markErr := queue.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
				slog.Error("failed to mark sync record failed",
					slog.Int64("record_id", record.ID),
					slog.String("error", markErr.Error()),
				)
			}

			metrics.RelayMessages.WithLabelValues(subject, string(model.StatusFailed)).Inc()

			continue
		}

		if _, err := queue.MarkSent(ctx, []int64{record.ID}, time.Now().UTC()); err != nil {
			slog.Error("failed to mark sync record sent",
				slog.Int64("record_id", record.ID),
				slog.String("error", err.Error()),
			)

			continue
		}

		metrics.RelayMessages.WithLabelValues(subject, string(model.StatusSent)).Inc()

		slog.Debug("published sync record",
			slog.String("subject", subject),
			slog.Int64("record_id", record.ID),
			slog.String("action", string(record.Action)),
		)
	}

	pending, err := queue.CountByStatus(ctx, model.StatusPending)
	if err != nil {
		return err
	}

	metrics.PendingRecords.WithLabelValues(subject).Set(float64(pending))

	if len(records) > 0 {
		slog.Info("relay pass finished",
			slog.String("subject", subject),
			slog.Int("processed", len(records)),
			slog.Int64("pending", pending),
		)
	}

	return nil
}

// RetryFailed moves the failed records of subject back to pending.
func (s *OutboxServiceImpl) RetryFailed(ctx context.Context, subject model.Subject) (int64, error) {
	for _, queue := range s.queues {
		if queue.Subject() != subject {
			continue
		}

		n, err := queue.RequeueFailed(ctx)
		if err != nil {
			return 0, err
		}

		slog.Info("failed sync records requeued",
			slog.String("subject", subject.String()),
			slog.Int64("count", n),
		)

		return n, nil
	}

	return 0, fmt.Errorf("%w: %q", model.ErrUnknownSubject, subject)
}
