// Package diagnostics implements the CMD=104 live register stream
// (SPEC_FULL.md's supplement over spec.md §4.4's "diagnostic only; prints
// raw register contents once per second"): a pubsub broker fed once a
// second while CMD=104 is active, and a WebSocket handler forwarding each
// published snapshot to any connected client. This is read-only and
// optional; the state machine's behavior never depends on whether anything
// is subscribed.
package diagnostics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/gorilla/websocket"
	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/sirupsen/logrus"
)

const snapshotTopic = "snapshot"

// Snapshot is one CMD=104 tick's full register image.
type Snapshot struct {
	At      time.Time      `json:"at"`
	Holding map[int]uint16 `json:"holding"`
	Input   map[int]uint16 `json:"input"`
}

// Broker fans a Snapshot out to every subscribed WebSocket connection.
type Broker struct {
	pubsub *pubsub.PubSub
}

// NewBroker returns a broker with room for a modest number of slow
// subscribers before TryPub starts dropping (mirrors the teacher's
// `pubsub.New(32)` sizing for device-command fan-out).
func NewBroker() *Broker {
	return &Broker{pubsub: pubsub.New(32)}
}

// Publish pushes snap to every current subscriber without blocking.
func (b *Broker) Publish(snap Snapshot) {
	b.pubsub.TryPub(snap, snapshotTopic)
}

// Stream polls store at interval while CMD=104 is the active command and
// publishes a Snapshot on broker each tick, until ctx is cancelled.
func Stream(ctx context.Context, store *registers.Store, broker *Broker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cmd, err := store.GetWord(registers.Holding, registers.AddrCommand)
		if err != nil || cmd != 104 {
			continue
		}
		broker.Publish(Snapshot{
			At:      time.Now(),
			Holding: store.AllWords(registers.Holding),
			Input:   store.AllWords(registers.Input),
		})
	}
}

// Handle upgrades HTTP connections to WebSocket and forwards every
// published Snapshot as JSON until the client disconnects.
type Handle struct {
	Broker *Broker
	Log    *logrus.Entry
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP implements http.Handler.
func (h *Handle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.Log.WithField("clientAddress", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("diagnostics: websocket upgrade failed")
		http.Error(w, "websocket upgrade error", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rx := h.Broker.pubsub.Sub(snapshotTopic)
	defer h.Broker.pubsub.Unsub(rx)

	var writeMu sync.Mutex
	send := func(snap Snapshot) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(50 * time.Millisecond))
		return conn.WriteJSON(snap)
	}

	// a reader goroutine is required so the connection notices client-side
	// closes even though this handler never expects inbound messages.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case i := <-rx:
			snap, ok := i.(Snapshot)
			if !ok {
				continue
			}
			if err := send(snap); err != nil {
				return
			}
		}
	}
}
