package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmitDelivers(t *testing.T) {
	n := New(zap.NewNop().Sugar(), 4)

	n.CEPStatus("Connected")

	select {
	case ev := <-n.Events():
		assert.Equal(t, EventCEPStatus, ev.Name)
		assert.Equal(t, "Connected", ev.Payload)
	default:
		t.Fatal("expected an event")
	}
}

func TestEmitNeverBlocksWhenFull(t *testing.T) {
	n := New(zap.NewNop().Sugar(), 1)

	n.Emit(EventCEPStatus, "first")
	// Buffer is full; this must drop instead of blocking.
	n.Emit(EventCEPStatus, "second")

	ev := <-n.Events()
	require.Equal(t, "first", ev.Payload)

	select {
	case ev := <-n.Events():
		t.Fatalf("unexpected second event: %v", ev)
	default:
	}
}
