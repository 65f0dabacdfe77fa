package uibus

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Action, n int) []Action {
	t.Helper()
	out := make([]Action, 0, n)
	for len(out) < n {
		select {
		case a := <-ch:
			out = append(out, a)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for actions, got %d of %d", len(out), n)
		}
	}
	return out
}

func TestBus_PublishSubscribeRoundTrip(t *testing.T) {
	b := NewBus()
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actions, err := b.Subscribe(ctx)
	require.NoError(t, err)

	b.Toast("hello")
	b.DismissKeyboard()
	b.ShowInfoSheet()
	b.SetTextFieldFocused(true)

	got := collect(t, actions, 4)
	require.Equal(t, KindToast, got[0].Kind)
	require.Equal(t, "hello", got[0].Message)
	require.Equal(t, KindDismissKeyboard, got[1].Kind)
	require.Equal(t, KindShowInfoSheet, got[2].Kind)
	require.Equal(t, KindTextFieldFocus, got[3].Kind)
	require.True(t, got[3].Focused)
}

func TestBus_SubscriberChannelClosesOnCancel(t *testing.T) {
	b := NewBus()
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	actions, err := b.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-actions:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel did not close")
	}
}

func TestBus_AbandonedSubscriberDoesNotPinGoroutine(t *testing.T) {
	b := NewBus()
	t.Cleanup(func() { _ = b.Close() })

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := b.Subscribe(ctx)
	require.NoError(t, err)

	// more actions than the subscriber channel buffers, never read
	for i := 0; i < 80; i++ {
		b.Toast("unread")
	}

	cancel()
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond, "subscriber goroutine still pinned after cancel")
}
