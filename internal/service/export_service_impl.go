package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jnst/storefront-sync/internal/export"
	"github.com/jnst/storefront-sync/internal/metrics"
	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
)

// ExportResult is a rendered export file.
type ExportResult struct {
	Subject     model.Subject
	Format      string
	FileName    string
	ContentType string
	Data        []byte
	// Records is the number of rows in the file; MarkedSent how many of them flipped to sent.
	Records    int
	MarkedSent int64
}

// ExportServiceImpl implements ExportService.
//
// Two exports of the same queue must not run at once: both could capture a
// record before either marks it sent.
type ExportServiceImpl struct {
	queues map[model.Subject]repository.SyncQueueRepository
	opts   export.Options
	now    func() time.Time
}

// NewExportServiceImpl creates a new ExportService implementation.
func NewExportServiceImpl(opts export.Options, queues ...repository.SyncQueueRepository) ExportService {
	bySubject := make(map[model.Subject]repository.SyncQueueRepository, len(queues))
	for _, q := range queues {
		bySubject[q.Subject()] = q
	}

	return &ExportServiceImpl{
		queues: bySubject,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every pending record of subject oldest first and marks exactly
// those records sent. Records enqueued meanwhile stay pending for the next run.
func (s *ExportServiceImpl) Export(ctx context.Context, subject model.Subject, format string) (*ExportResult, error) {
	queue, ok := s.queues[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownSubject, subject)
	}

	layout, err := export.LayoutFor(subject)
	if err != nil {
		return nil, err
	}

	records, err := queue.GetPending(ctx, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, layout, records, s.opts); err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", subject, err)
	}

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	now := s.now()

	marked, err := queue.MarkSent(ctx, ids, now)
	if err != nil {
		return nil, err
	}

	metrics.ExportedRecords.WithLabelValues(subject.String(), format).Add(float64(marked))

	slog.Info("sync queue exported",
		slog.String("subject", subject.String()),
		slog.String("format", format),
		slog.Int("records", len(records)),
		slog.Int64("marked_sent", marked),
	)

	return &ExportResult{
		Subject:     subject,
		Format:      format,
		FileName:    export.FileName(subject, format, now),
		ContentType: export.ContentType(format),
		Data:        buf.Bytes(),
		Records:     len(records),
		MarkedSent:  marked,
	}, nil
}
