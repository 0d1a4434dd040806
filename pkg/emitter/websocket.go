package emitter

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/event"
)

const (
	wsWriteWait  = time.Second
	wsClientSend = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are served from other local ports
	},
}

// WebSocketEmitter streams event envelopes to every connected viewer. It
// is an http.Handler; mount it wherever the viewer should connect. A viewer
// that falls behind loses events rather than slowing the frame loop.
type WebSocketEmitter struct {
	logger *zap.Logger
	types  []string

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	dropped atomic.Uint64
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewWebSocketEmitter creates an emitter that forwards events matching
// types, or every bci.* event when types is empty.
func NewWebSocketEmitter(logger *zap.Logger, types ...string) *WebSocketEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(types) == 0 {
		types = event.AllTopics
	}
	return &WebSocketEmitter{
		logger:  logger,
		types:   types,
		clients: make(map[*wsClient]struct{}),
	}
}

// Filter selects the forwarded events.
func (w *WebSocketEmitter) Filter() event.Filter {
	return event.Filter{Types: w.types}
}

func (w *WebSocketEmitter) ID() string   { return "websocket" }
func (w *WebSocketEmitter) Type() string { return "websocket" }

// Clients returns the number of connected viewers.
func (w *WebSocketEmitter) Clients() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.clients)
}

// Dropped returns how many messages were dropped for slow viewers.
func (w *WebSocketEmitter) Dropped() uint64 { return w.dropped.Load() }

// ServeHTTP upgrades the connection and registers the viewer.
func (w *WebSocketEmitter) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("[websocket] upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsClientSend)}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		conn.Close()
		return
	}
	w.clients[c] = struct{}{}
	w.mu.Unlock()

	w.logger.Info("[websocket] viewer connected", zap.String("remote", r.RemoteAddr))
	go w.writePump(c)
	go w.readPump(c)
}

// readPump discards viewer input and unregisters the viewer when the
// connection ends.
func (w *WebSocketEmitter) readPump(c *wsClient) {
	defer w.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Debug("[websocket] read error", zap.Error(err))
			}
			return
		}
	}
}

func (w *WebSocketEmitter) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			w.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (w *WebSocketEmitter) remove(c *wsClient) {
	w.mu.Lock()
	if _, ok := w.clients[c]; ok {
		delete(w.clients, c)
		c.close()
	}
	w.mu.Unlock()
}

// Emit broadcasts evt to every viewer.
func (w *WebSocketEmitter) Emit(ctx context.Context, evt event.Event) error {
	msg, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for c := range w.clients {
		select {
		case c.send <- msg:
		default:
			w.dropped.Add(1)
		}
	}
	return nil
}

// Close disconnects every viewer.
func (w *WebSocketEmitter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for c := range w.clients {
		delete(w.clients, c)
		c.close()
	}
	return nil
}
