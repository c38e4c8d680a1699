package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_BlocksUntilConfirmed(t *testing.T) {
	g := New(nil)

	type result struct {
		d   Decision
		err error
	}
	done := make(chan result, 1)

	go func() {
		d, err := g.Request(context.Background(), "acme/api", "abc1234")
		done <- result{d, err}
	}()

	// Wait for the pending slot to appear.
	require.Eventually(t, func() bool {
		return g.Pending() != nil
	}, time.Second, 5*time.Millisecond)

	pending := g.Pending()
	assert.Equal(t, "acme/api", pending.RepoName)
	assert.Equal(t, "abc1234", pending.Commit)

	select {
	case <-done:
		t.Fatal("Request resolved before Confirm")
	case <-time.After(20 * time.Millisecond):
	}

	g.Confirm(true)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.d.Granted)
		assert.True(t, r.d.Remember)
	case <-time.After(time.Second):
		t.Fatal("Request did not resolve after Confirm")
	}

	assert.Nil(t, g.Pending(), "gate should be idle after resolution")
}

func TestRequest_Denied(t *testing.T) {
	g := New(nil)

	done := make(chan Decision, 1)
	go func() {
		d, _ := g.Request(context.Background(), "acme/api", "abc1234")
		done <- d
	}()

	require.Eventually(t, func() bool {
		return g.Pending() != nil
	}, time.Second, 5*time.Millisecond)

	g.Deny()

	select {
	case d := <-done:
		assert.False(t, d.Granted)
		assert.False(t, d.Remember)
	case <-time.After(time.Second):
		t.Fatal("Request did not resolve after Deny")
	}
}

func TestRequest_SecondRequestWhilePendingErrors(t *testing.T) {
	g := New(nil)

	go func() {
		_, _ = g.Request(context.Background(), "acme/api", "abc1234")
	}()

	require.Eventually(t, func() bool {
		return g.Pending() != nil
	}, time.Second, 5*time.Millisecond)

	_, err := g.Request(context.Background(), "acme/other", "def5678")
	assert.True(t, errors.Is(err, ErrRequestPending))

	g.Deny()
}

func TestRequest_ContextCancellation(t *testing.T) {
	g := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Request(ctx, "acme/api", "abc1234")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return g.Pending() != nil
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Request did not resolve after context cancellation")
	}

	assert.Nil(t, g.Pending(), "pending slot should clear on cancellation")
}

func TestConfirm_IdleGateIsNoOp(t *testing.T) {
	g := New(nil)
	g.Confirm(true)
	g.Deny()
	assert.Nil(t, g.Pending())
}
