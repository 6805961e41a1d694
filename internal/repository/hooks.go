package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPostCommitHook wraps errors returned by after-commit callbacks. The
// transaction itself has committed when WithTransaction returns it.
var ErrPostCommitHook = errors.New("after-commit hook failed")

type hooksKey struct{}

// CommitHooks collects callbacks to run after a transaction commits.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context) error
}

// WithCommitHooks returns a context carrying a fresh hook list.
// Transaction managers call it when they open the outermost transaction.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	hooks := &CommitHooks{}

	return context.WithValue(ctx, hooksKey{}, hooks), hooks
}

// AfterCommit schedules fn to run after the transaction bound to ctx commits.
// Without a transaction fn runs immediately, matching autocommit semantics,
// and its error is returned wrapped in ErrPostCommitHook.
func AfterCommit(ctx context.Context, fn func(ctx context.Context) error) error {
	hooks, ok := ctx.Value(hooksKey{}).(*CommitHooks)
	if !ok {
		if err := runHook(ctx, fn); err != nil {
			return fmt.Errorf("%w: %w", ErrPostCommitHook, err)
		}

		return nil
	}

	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()

	return nil
}

// Run executes the registered callbacks in registration order. Every callback
// runs even when an earlier one fails or panics; the failures are joined and
// wrapped in ErrPostCommitHook.
func (h *CommitHooks) Run(ctx context.Context) error {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := runHook(ctx, fn); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrPostCommitHook, err)
	}

	return nil
}

func runHook(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx)
}
