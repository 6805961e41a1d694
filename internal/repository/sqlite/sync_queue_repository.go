package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

const recordColumns = `id, action, subject_uuid, payload, status, created_at, sent_at, error_message`

// SyncQueueRepositoryImpl implements SyncQueueRepository for one subject's table.
type SyncQueueRepositoryImpl struct {
	store   *Store
	subject model.Subject
	table   string
}

// NewSyncQueueRepositoryImpl creates a SyncQueueRepository bound to the subject's outbox table.
func NewSyncQueueRepositoryImpl(store *Store, subject model.Subject) repository.SyncQueueRepository {
	return &SyncQueueRepositoryImpl{
		store:   store,
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
		createdAt = time.Now()
	}

	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	record, err := r.scanRecord(r.store.conn(ctx).QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (action, subject_uuid, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING %s`, r.table, recordColumns),
		string(params.Action),
		nullableUUIDString(params.SubjectUUID),
		string(payload),
		string(model.StatusPending),
		toMicros(createdAt),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", r.table, err)
	}

	return record, nil
}

// ListChangedSubjects returns distinct subject UUIDs ordered by first appearance.
func (r *SyncQueueRepositoryImpl) ListChangedSubjects(ctx context.Context, since *time.Time) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT subject_uuid FROM %s WHERE subject_uuid IS NOT NULL`, r.table)
	var args []any

	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, toMicros(*since))
	}

	query += ` GROUP BY subject_uuid ORDER BY MIN(created_at), MIN(id)`

	rows, err := r.store.conn(ctx).QueryContext(ctx, query, args...)
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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ? ORDER BY created_at, id`, recordColumns, r.table)
	args := []any{string(model.StatusPending)}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.store.conn(ctx).QueryContext(ctx, query, args...)
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
	record, err := r.scanRecord(r.store.conn(ctx).QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, recordColumns, r.table), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}

	return record, err
}

// MarkSent flips pending records to sent.
func (r *SyncQueueRepositoryImpl) MarkSent(ctx context.Context, ids []int64, sentAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := []any{string(model.StatusSent), toMicros(sentAt), string(model.StatusPending)}
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := r.store.conn(ctx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = ?, sent_at = ?, error_message = ''
		WHERE status = ? AND id IN (%s)`, r.table, inClause(len(ids))),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark %s sent: %w", r.table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n, nil
}

// MarkFailed flips a pending record to failed and stores the reason.
func (r *SyncQueueRepositoryImpl) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	res, err := r.store.conn(ctx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = ?, error_message = ?
		WHERE id = ? AND status = ?`, r.table),
		string(model.StatusFailed), errorMessage, id, string(model.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", r.table, err)
	}

	if err := requireAffected(res, model.ErrInvalidStatus); err != nil {
		return fmt.Errorf("%w: record %d is not pending", err, id)
	}

	return nil
}

// RequeueFailed puts every failed record back in the pending state.
func (r *SyncQueueRepositoryImpl) RequeueFailed(ctx context.Context) (int64, error) {
	res, err := r.store.conn(ctx).ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = ?, error_message = '' WHERE status = ?`, r.table),
		string(model.StatusPending), string(model.StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue %s: %w", r.table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n, nil
}

// CountByStatus counts the records in one status.
func (r *SyncQueueRepositoryImpl) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	var n int64

	err := r.store.conn(ctx).QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = ?`, r.table), string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table, err)
	}

	return n, nil
}

func (r *SyncQueueRepositoryImpl) scanRecord(row scanner) (*model.SyncRecord, error) {
	var (
		record      model.SyncRecord
		action      string
		subjectUUID sql.NullString
		payload     string
		status      string
		createdAt   int64
		sentAt      sql.NullInt64
	)

	err := row.Scan(
		&record.ID,
		&action,
		&subjectUUID,
		&payload,
		&status,
		&createdAt,
		&sentAt,
		&record.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	record.CreatedAt = fromMicros(createdAt)

	if sentAt.Valid {
		t := fromMicros(sentAt.Int64)
		record.SentAt = &t
	}

	return &record, nil
}
