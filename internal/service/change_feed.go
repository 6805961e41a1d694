package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
	"github.com/jnst/storefront-sync/internal/repository"
	"github.com/jnst/storefront-sync/internal/snapshot"
)

// DefaultBatchMax is the batch detail cap used when none is configured.
const DefaultBatchMax = 100

// DetailSource loads the live state of subjects from the entity store.
type DetailSource[D any] interface {
	// Get returns model.ErrNotFound when the subject does not exist.
	Get(ctx context.Context, id uuid.UUID) (D, error)
	// List returns the subjects that exist among ids, keyed by UUID.
	List(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]D, error)
}

// Feed joins a sync queue with the live entity store. The queue answers what
// changed; details are always derived fresh from the store, never from stored payloads.
type Feed[D any] struct {
	queue    repository.SyncQueueRepository
	source   DetailSource[D]
	batchMax int
}

// NewFeed creates a change feed. batchMax <= 0 selects DefaultBatchMax.
func NewFeed[D any](queue repository.SyncQueueRepository, source DetailSource[D], batchMax int) *Feed[D] {
	if batchMax <= 0 {
		batchMax = DefaultBatchMax
	}

	return &Feed[D]{
		queue:    queue,
		source:   source,
		batchMax: batchMax,
	}
}

// NewOrderFeed creates the change feed of the order queue.
func NewOrderFeed(
	queue repository.SyncQueueRepository, orderRepo repository.OrderRepository, batchMax int,
) *Feed[model.OrderDetail] {
	return NewFeed[model.OrderDetail](queue, orderDetails{repo: orderRepo}, batchMax)
}

// NewUserFeed creates the change feed of the user queue.
func NewUserFeed(
	queue repository.SyncQueueRepository, userRepo repository.UserRepository, batchMax int,
) *Feed[model.UserSnapshot] {
	return NewFeed[model.UserSnapshot](queue, userDetails{repo: userRepo}, batchMax)
}

// Subject returns the subject of the underlying queue.
func (f *Feed[D]) Subject() model.Subject {
	return f.queue.Subject()
}

// BatchMax returns the batch detail cap.
func (f *Feed[D]) BatchMax() int {
	return f.batchMax
}

// ListChanged returns distinct subject UUIDs ordered by first change.
func (f *Feed[D]) ListChanged(ctx context.Context, since *time.Time) ([]uuid.UUID, error) {
	return f.queue.ListChangedSubjects(ctx, since)
}

// Get returns the typed live state of one subject.
func (f *Feed[D]) Get(ctx context.Context, id uuid.UUID) (D, error) {
	return f.source.Get(ctx, id)
}

// GetBatch returns the typed live state of the known subjects among the first
// BatchMax ids, in request order and without duplicates.
func (f *Feed[D]) GetBatch(ctx context.Context, ids []uuid.UUID) ([]D, error) {
	ids = dedupe(ids)
	if len(ids) > f.batchMax {
		ids = ids[:f.batchMax]
	}

	results := make([]D, 0, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	found, err := f.source.List(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if d, ok := found[id]; ok {
			results = append(results, d)
		}
	}

	return results, nil
}

// Detail implements ChangeFeed.
func (f *Feed[D]) Detail(ctx context.Context, id uuid.UUID) (any, error) {
	return f.Get(ctx, id)
}

// DetailBatch implements ChangeFeed.
func (f *Feed[D]) DetailBatch(ctx context.Context, ids []uuid.UUID) ([]any, error) {
	typed, err := f.GetBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(typed))
	for i, d := range typed {
		results[i] = d
	}

	return results, nil
}

// ParseSince parses a Unix timestamp in whole seconds. An empty string means no cursor.
func ParseSince(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidSince, raw)
	}

	t := time.Unix(secs, 0).UTC()

	return &t, nil
}

// ParseUUIDList splits a comma separated id list. Blank entries are dropped,
// the list is cut to limit entries, and entries that are not UUIDs are skipped.
// It returns model.ErrMissingUUIDs only when raw is blank.
func ParseUUIDList(raw string, limit int) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, model.ErrMissingUUIDs
	}

	var entries []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			entries = append(entries, part)
		}
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		id, err := uuid.Parse(entry)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

type orderDetails struct {
	repo repository.OrderRepository
}

func (s orderDetails) Get(ctx context.Context, id uuid.UUID) (model.OrderDetail, error) {
	order, err := s.repo.GetByUUID(ctx, id)
	if errors.Is(err, model.ErrOrderNotFound) {
		return model.OrderDetail{}, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.OrderDetail{}, err
	}

	return snapshot.OrderDetail(order), nil
}

func (s orderDetails) List(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.OrderDetail, error) {
	orders, err := s.repo.ListByUUIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]model.OrderDetail, len(orders))
	for _, o := range orders {
		out[o.UUID] = snapshot.OrderDetail(o)
	}

	return out, nil
}

type userDetails struct {
	repo repository.UserRepository
}

func (s userDetails) Get(ctx context.Context, id uuid.UUID) (model.UserSnapshot, error) {
	user, err := s.repo.GetByUUID(ctx, id)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.UserSnapshot{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.UserSnapshot{}, err
	}

	return snapshot.User(user), nil
}

func (s userDetails) List(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.UserSnapshot, error) {
	users, err := s.repo.ListByUUIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]model.UserSnapshot, len(users))
	for _, u := range users {
		out[u.UUID] = snapshot.User(u)
	}

	return out, nil
}

var (
	_ ChangeFeed = (*Feed[model.OrderDetail])(nil)
	_ ChangeFeed = (*Feed[model.UserSnapshot])(nil)
)
