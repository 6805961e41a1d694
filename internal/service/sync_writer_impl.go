package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/metrics"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

// SyncWriterImpl implements SyncWriter on the per-subject queue repositories.
type SyncWriterImpl struct {
	queues         map[model.Subject]repository.SyncQueueRepository
	transactionMgr repository.TransactionManager
}

// NewSyncWriterImpl creates a new SyncWriter implementation.
func NewSyncWriterImpl(
	transactionMgr repository.TransactionManager,
	queues ...repository.SyncQueueRepository,
) SyncWriter {
	bySubject := make(map[model.Subject]repository.SyncQueueRepository, len(queues))
	for _, q := range queues {
		bySubject[q.Subject()] = q
	}

	return &SyncWriterImpl{
		queues:         bySubject,
		transactionMgr: transactionMgr,
	}
}

// Enqueue serializes payload and appends a pending record.
func (w *SyncWriterImpl) Enqueue(
	ctx context.Context, subject model.Subject, action model.Action, subjectUUID *uuid.UUID, payload any,
) (*model.SyncRecord, error) {
	queue, ok := w.queues[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownSubject, subject)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", subject, err)
	}

	var record *model.SyncRecord

	err = w.transactionMgr.WithTransaction(ctx, func(ctx context.Context) error {
		record, err = queue.Enqueue(ctx, &model.CreateSyncRecordParams{
			Action:      action,
			SubjectUUID: subjectUUID,
			Payload:     body,
		})
		if err != nil {
			return err
		}

		return repository.AfterCommit(ctx, func(context.Context) error {
			metrics.Enqueued.WithLabelValues(subject.String(), string(action)).Inc()

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s %s: %w", subject, action, err)
	}

	slog.Debug("sync record enqueued",
		slog.String("subject", subject.String()),
		slog.String("action", string(action)),
		slog.Int64("record_id", record.ID),
		slog.String("subject_uuid", record.SubjectUUIDString()),
	)

	return record, nil
}
