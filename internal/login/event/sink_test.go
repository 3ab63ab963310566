package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/empuxa/totp-login/internal/login/event"
	"github.com/stretchr/testify/require"
)

func TestChannelSinkBuffersEvents(t *testing.T) {
	t.Parallel()

	sink := event.NewChannelSink(2)
	ctx := context.Background()

	sink.Emit(ctx, event.Event{Kind: event.KindIncorrectCode, At: time.Now()})
	sink.Emit(ctx, event.Event{Kind: event.KindLoggedInViaTotp, At: time.Now()})

	require.Equal(t, event.KindIncorrectCode, (<-sink.Events()).Kind)
	require.Equal(t, event.KindLoggedInViaTotp, (<-sink.Events()).Kind)
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := event.NewChannelSink(1)
	ctx := context.Background()

	sink.Emit(ctx, event.Event{Kind: event.KindIncorrectCode})
	// Must not block even though nobody is draining.
	sink.Emit(ctx, event.Event{Kind: event.KindCodeExpired})

	require.Equal(t, event.KindIncorrectCode, (<-sink.Events()).Kind)
	select {
	case e := <-sink.Events():
		t.Fatalf("expected dropped event, got %v", e.Kind)
	default:
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	t.Parallel()

	a := event.NewChannelSink(1)
	b := event.NewChannelSink(1)
	multi := event.MultiSink{a, b}

	multi.Emit(context.Background(), event.Event{Kind: event.KindUserNotFound})

	require.Equal(t, event.KindUserNotFound, (<-a.Events()).Kind)
	require.Equal(t, event.KindUserNotFound, (<-b.Events()).Kind)
}
