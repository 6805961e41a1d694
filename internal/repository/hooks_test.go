package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterCommit_RunsImmediatelyWithoutTransaction(t *testing.T) {
	ran := false

	err := AfterCommit(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestAfterCommit_ImmediateErrorIsReturned(t *testing.T) {
	errBoom := errors.New("boom")

	err := AfterCommit(context.Background(), func(context.Context) error { return errBoom })

	require.ErrorIs(t, err, ErrPostCommitHook)
	assert.ErrorIs(t, err, errBoom)
}

func TestAfterCommit_DeferredUntilRun(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())

	var order []int
	require.NoError(t, AfterCommit(ctx, func(context.Context) error { order = append(order, 1); return nil }))
	require.NoError(t, AfterCommit(ctx, func(context.Context) error { order = append(order, 2); return nil }))

	assert.Empty(t, order)

	require.NoError(t, hooks.Run(context.Background()))
	assert.Equal(t, []int{1, 2}, order)

	require.NoError(t, hooks.Run(context.Background()))
	assert.Equal(t, []int{1, 2}, order, "hooks run only once")
}

func TestCommitHooks_FailuresAreJoinedAndLaterHooksStillRun(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())
	errBoom := errors.New("enqueue failed")

	ran := false
	require.NoError(t, AfterCommit(ctx, func(context.Context) error { panic("boom") }))
	require.NoError(t, AfterCommit(ctx, func(context.Context) error { return errBoom }))
	require.NoError(t, AfterCommit(ctx, func(context.Context) error { ran = true; return nil }))

	var err error
	assert.NotPanics(t, func() { err = hooks.Run(context.Background()) })
	assert.True(t, ran)
	require.ErrorIs(t, err, ErrPostCommitHook)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "panic: boom")
}
