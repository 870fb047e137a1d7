package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Broker_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	rx := b.pubsub.Sub(snapshotTopic)
	defer b.pubsub.Unsub(rx)

	snap := Snapshot{At: time.Now(), Holding: map[int]uint16{registers.AddrCommand: 10}}
	b.Publish(snap)

	select {
	case got := <-rx:
		s, ok := got.(Snapshot)
		require.True(t, ok)
		assert.Equal(t, uint16(10), s.Holding[registers.AddrCommand])
	case <-time.After(time.Second):
		t.Fatal("did not receive published snapshot")
	}
}

func Test_Stream_OnlyPublishesWhileCMD104Active(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := registers.New()
	broker := NewBroker()
	rx := broker.pubsub.Sub(snapshotTopic)
	defer broker.pubsub.Unsub(rx)

	go Stream(ctx, store, broker, 10*time.Millisecond)

	select {
	case <-rx:
		t.Fatal("should not publish while CMD != 104")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, store.SetWord(registers.Holding, registers.AddrCommand, 104))

	select {
	case got := <-rx:
		s, ok := got.(Snapshot)
		require.True(t, ok)
		assert.Equal(t, uint16(104), s.Holding[registers.AddrCommand])
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot once CMD=104")
	}
}
