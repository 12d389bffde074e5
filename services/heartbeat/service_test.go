package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlampctl-go/bus"
)

func nextBeat(t *testing.T, sub *bus.Subscription) Beat {
	t.Helper()
	select {
	case m := <-sub.Channel():
		b, ok := m.Payload.(Beat)
		require.True(t, ok, "payload type %T", m.Payload)
		return b
	case <-time.After(3 * time.Second):
		t.Fatal("no heartbeat")
		return Beat{}
	}
}

func TestHeartbeat_PublishesAndReconfigures(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := conn.Subscribe(topicHeartbeat)
	defer conn.Unsubscribe(sub)

	New(nil).Start(ctx, conn)
	first := nextBeat(t, sub)
	assert.Equal(t, uint64(1), first.Seq)

	conn.Publish(conn.NewMessage(topicConfigHeartbeat, Config{IntervalS: 1}, true))
	second := nextBeat(t, sub)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Greater(t, second.TS, first.TS)
}
