// Package wsrelay fans Context Snapshots out to WebSocket subscribers as
// JSON, one outbound write per connection per snapshot. Grounded on the
// teacher's server.Server: the same connection registry shape (a map of
// *websocket.Conn guarded by a mutex), the same coder/websocket + wsjson
// wire stack, and the same broadcast-loop idiom as broadcastTranscripts,
// here fed by a broker.Handle instead of an orchestrator event channel.
package wsrelay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ctxengine/perception/internal/broker"
	"github.com/ctxengine/perception/internal/trace"
	"github.com/ctxengine/perception/pkg/model"
)

// snapshotWire is the JSON shape delivered to every subscriber.
type snapshotWire struct {
	Type           string   `json:"type"`
	Sequence       uint64   `json:"sequence"`
	ParentSequence uint64   `json:"parent_sequence"`
	Primary        string   `json:"primary"`
	Confidence     float64  `json:"confidence"`
	Correlation    float64  `json:"correlation"`
	ScreenDigest   string   `json:"screen_digest"`
	ScreenKeywords []string `json:"screen_keywords"`
	AudioClass     string   `json:"audio_class"`
	AudioApp       string   `json:"audio_app"`
}

func toWire(snap model.ContextSnapshot) snapshotWire {
	typ := "snapshot"
	if snap.IsTerminal() {
		typ = "shutdown"
	}
	return snapshotWire{
		Type:           typ,
		Sequence:       snap.Sequence,
		ParentSequence: snap.ParentSequence,
		Primary:        string(snap.Primary),
		Confidence:     snap.Confidence,
		Correlation:    snap.Correlation,
		ScreenDigest:   snap.Screen.Digest,
		ScreenKeywords: snap.Screen.Keywords,
		AudioClass:     string(snap.Audio.Class),
		AudioApp:       snap.Audio.App,
	}
}

// Relay serves a WebSocket endpoint that streams every broker publication
// to every connected client.
type Relay struct {
	b *broker.Broker

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New builds a Relay reading from b. The caller is responsible for running
// the broker's own Run loop against the fusion engine's emissions.
func New(b *broker.Broker) *Relay {
	return &Relay{
		b:     b,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler serving the WebSocket upgrade.
func (rl *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rl.handleWebSocket)
	return trace.Middleware(mux)
}

// Run subscribes to the broker and broadcasts every delivered snapshot to
// all currently connected clients, mirroring server.broadcastTranscripts.
// It returns only when the subscription's channel closes; the broker closes
// a channel only on Unsubscribe, and Run keeps its handle to itself and
// never unsubscribes it, so Run does not return on its own.
func (rl *Relay) Run() {
	h := rl.b.Subscribe(nil, model.CoalesceLatest)
	for snap := range h.C() {
		wire := toWire(snap)

		rl.mu.RLock()
		for conn := range rl.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, wire)
			}(conn)
		}
		rl.mu.RUnlock()
	}
}

func (rl *Relay) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("wsrelay: accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	rl.mu.Lock()
	rl.conns[conn] = struct{}{}
	rl.mu.Unlock()

	defer func() {
		rl.mu.Lock()
		delete(rl.conns, conn)
		rl.mu.Unlock()
	}()

	log := trace.Logger(r.Context())
	log.Info("wsrelay: client connected", "remote", r.RemoteAddr)

	// Send the current snapshot immediately so a newly connected client
	// doesn't wait for the next publication.
	_ = wsjson.Write(r.Context(), conn, toWire(rl.b.Latest()))

	// The client never sends anything meaningful; this read loop exists
	// only to detect disconnects, the same role it plays in server.go.
	for {
		var discard struct{}
		if err := wsjson.Read(r.Context(), conn, &discard); err != nil {
			log.Debug("wsrelay: client disconnected", "error", err)
			return
		}
	}
}
