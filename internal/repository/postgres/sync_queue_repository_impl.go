package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

const recordColumns = `id, action, subject_uuid::text, payload::text, status, created_at, sent_at, error_message`

// SyncQueueRepositoryImpl implements SyncQueueRepository for one subject's table.
type SyncQueueRepositoryImpl struct {
	pool    *pgxpool.Pool
	subject model.Subject
	table   string
}

// NewSyncQueueRepositoryImpl creates a SyncQueueRepository bound to the subject's outbox table.
func NewSyncQueueRepositoryImpl(pool *pgxpool.Pool, subject model.Subject) repository.SyncQueueRepository {
	return &SyncQueueRepositoryImpl{
		pool:    pool,
		subject: subject,
		table:   subject.QueueTable(),
	}
}

// Subject returns the subject this queue tracks.
func (r *SyncQueueRepositoryImpl) Subject() model.Subject {
	return r.subject
}

// Enqueue appends a pending record.
func (r *SyncQueueRepositoryImpl) Enqueue(
	ctx context.Context, params *model.CreateSyncRecordParams,
) (*model.SyncRecord, error) {
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (action, subject_uuid, payload, status, created_at)
		VALUES ($1, $2::uuid, $3::jsonb, $4, $5)
		RETURNING %s`, r.table, recordColumns)

	record, err := r.scanRecord(conn(ctx, r.pool).QueryRow(ctx, query,
		string(params.Action),
		nullableUUIDString(params.SubjectUUID),
		string(payload),
		string(model.StatusPending),
		createdAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", r.table, err)
	}

	return record, nil
}

// ListChangedSubjects returns distinct subject UUIDs ordered by first appearance.
func (r *SyncQueueRepositoryImpl) ListChangedSubjects(ctx context.Context, since *time.Time) ([]uuid.UUID, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if since == nil {
		rows, err = conn(ctx, r.pool).Query(ctx, fmt.Sprintf(`
			SELECT subject_uuid::text FROM %s
			WHERE subject_uuid IS NOT NULL
			GROUP BY subject_uuid
			ORDER BY MIN(created_at), MIN(id)`, r.table))
	} else {
		rows, err = conn(ctx, r.pool).Query(ctx, fmt.Sprintf(`
			SELECT subject_uuid::text FROM %s
			WHERE subject_uuid IS NOT NULL AND created_at >= $1
			GROUP BY subject_uuid
			ORDER BY MIN(created_at), MIN(id)`, r.table), since.UTC())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan subject uuid: %w", err)
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject uuid: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.table, err)
	}

	return ids, nil
}

// GetPending returns pending records oldest first.
func (r *SyncQueueRepositoryImpl) GetPending(ctx context.Context, limit int) ([]*model.SyncRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = $1 ORDER BY created_at, id`, recordColumns, r.table)
	args := []any{string(model.StatusPending)}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table, err)
	}
	defer rows.Close()

	var records []*model.SyncRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.table, err)
	}

	return records, nil
}

// GetByID retrieves one record.
func (r *SyncQueueRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.SyncRecord, error) {
	record, err := r.scanRecord(conn(ctx, r.pool).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, r.table), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}

	return record, err
}

// MarkSent flips pending records to sent.
func (r *SyncQueueRepositoryImpl) MarkSent(ctx context.Context, ids []int64, sentAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := conn(ctx, r.pool).Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $2, sent_at = $3, error_message = ''
		WHERE id = ANY($1) AND status = $4`, r.table),
		ids, string(model.StatusSent), sentAt.UTC(), string(model.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark %s sent: %w", r.table, err)
	}

	return tag.RowsAffected(), nil
}

// MarkFailed flips a pending record to failed and stores the reason.
func (r *SyncQueueRepositoryImpl) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $2, error_message = $3
		WHERE id = $1 AND status = $4`, r.table),
		id, string(model.StatusFailed), errorMessage, string(model.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", r.table, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record %d is not pending", model.ErrInvalidStatus, id)
	}

	return nil
}

// RequeueFailed puts every failed record back in the pending state.
func (r *SyncQueueRepositoryImpl) RequeueFailed(ctx context.Context) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $1, error_message = '' WHERE status = $2`, r.table),
		string(model.StatusPending), string(model.StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue %s: %w", r.table, err)
	}

	return tag.RowsAffected(), nil
}

// CountByStatus counts the records in one status.
func (r *SyncQueueRepositoryImpl) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	var n int64

	err := conn(ctx, r.pool).QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, r.table), string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table, err)
	}

	return n, nil
}

func (r *SyncQueueRepositoryImpl) scanRecord(row pgx.Row) (*model.SyncRecord, error) {
	var (
		record      model.SyncRecord
		action      string
		subjectUUID *string
		payload     string
		status      string
	)

	err := row.Scan(
		&record.ID,
		&action,
		&subjectUUID,
		&payload,
		&status,
		&record.CreatedAt,
		&record.SentAt,
		&record.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan %s: %w", r.table, err)
	}

	if record.Action, err = model.ParseAction(action); err != nil {
		return nil, err
	}
	if record.Status, err = model.ParseStatus(status); err != nil {
		return nil, err
	}
	if record.SubjectUUID, err = parseNullableUUID(subjectUUID); err != nil {
		return nil, err
	}

	record.Subject = r.subject
	record.Payload = []byte(payload)
	record.CreatedAt = record.CreatedAt.UTC()

	if record.SentAt != nil {
		sentAt := record.SentAt.UTC()
		record.SentAt = &sentAt
	}

	return &record, nil
}
