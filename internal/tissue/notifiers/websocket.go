package notifiers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/daniacca/chromasim/internal/tissue"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type subscription struct {
	conn *websocket.Conn
	run  tissue.RunID // empty means every run
}

// WebSocketNotifier streams frame events to connected renderers. Each
// client may subscribe to a single run or to all of them.
type WebSocketNotifier struct {
	id         string
	mu         sync.RWMutex
	clients    map[*websocket.Conn]tissue.RunID
	upgrader   websocket.Upgrader
	broadcast  chan tissue.FrameEvent
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewWebSocketNotifier creates a new WebSocket notifier
func NewWebSocketNotifier(id string) *WebSocketNotifier {
	notifier := &WebSocketNotifier{
		id:         id,
		clients:    make(map[*websocket.Conn]tissue.RunID),
		broadcast:  make(chan tissue.FrameEvent, 256),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
		},
	}

	notifier.wg.Add(1)
	go notifier.run()

	return notifier
}

// ID returns the notifier ID
func (wsn *WebSocketNotifier) ID() string {
	return wsn.id
}

// Type returns the notifier type
func (wsn *WebSocketNotifier) Type() string {
	return "websocket"
}

// ClientCount returns the number of connected clients
func (wsn *WebSocketNotifier) ClientCount() int {
	wsn.mu.RLock()
	defer wsn.mu.RUnlock()
	return len(wsn.clients)
}

// RegisterClient subscribes conn to frames of run, or of every run when run is empty
func (wsn *WebSocketNotifier) RegisterClient(conn *websocket.Conn, run tissue.RunID) {
	select {
	case wsn.register <- subscription{conn: conn, run: run}:
	case <-wsn.done:
	}
}

// UnregisterClient drops and closes conn
func (wsn *WebSocketNotifier) UnregisterClient(conn *websocket.Conn) {
	select {
	case wsn.unregister <- conn:
	case <-wsn.done:
	}
}

// Serve upgrades an HTTP request and keeps the connection subscribed
// until the peer goes away.
func (wsn *WebSocketNotifier) Serve(w http.ResponseWriter, r *http.Request, run tissue.RunID) error {
	conn, err := wsn.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	wsn.RegisterClient(conn, run)

	// renderers never send; reading only detects the close
	for {
		if _, _, err := conn.NextReader(); err != nil {
			wsn.UnregisterClient(conn)
			return nil
		}
	}
}

// Notify queues the event for broadcast to subscribed clients
func (wsn *WebSocketNotifier) Notify(ctx context.Context, event tissue.FrameEvent) error {
	select {
	case <-wsn.done:
		return fmt.Errorf("notifier %s is closed", wsn.id)
	default:
	}

	select {
	case wsn.broadcast <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(1 * time.Second):
		return fmt.Errorf("notification queue full")
	}
}

func (wsn *WebSocketNotifier) run() {
	defer wsn.wg.Done()
	for {
		select {
		case <-wsn.done:
			return

		case sub := <-wsn.register:
			if sub.conn == nil {
				continue
			}
			wsn.mu.Lock()
			wsn.clients[sub.conn] = sub.run
			wsn.mu.Unlock()

		case conn := <-wsn.unregister:
			if conn == nil {
				continue
			}
			wsn.mu.Lock()
			if _, ok := wsn.clients[conn]; ok {
				delete(wsn.clients, conn)
				conn.Close()
			}
			wsn.mu.Unlock()

		case event := <-wsn.broadcast:
			wsn.deliver(event)
		}
	}
}

func (wsn *WebSocketNotifier) deliver(event tissue.FrameEvent) {
	jsonData, err := event.JSON()
	if err != nil {
		return
	}

	wsn.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(wsn.clients))
	for conn, run := range wsn.clients {
		if run == "" || run == event.RunID {
			conns = append(conns, conn)
		}
	}
	wsn.mu.RUnlock()

	var failed []*websocket.Conn
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			failed = append(failed, conn)
		}
	}

	if len(failed) > 0 {
		wsn.mu.Lock()
		for _, conn := range failed {
			delete(wsn.clients, conn)
			conn.Close()
		}
		wsn.mu.Unlock()
	}
}

// Close closes all client connections and stops the broadcaster
func (wsn *WebSocketNotifier) Close() error {
	wsn.closeOnce.Do(func() {
		close(wsn.done)
		wsn.wg.Wait()

		wsn.mu.Lock()
		for conn := range wsn.clients {
			conn.Close()
			delete(wsn.clients, conn)
		}
		wsn.mu.Unlock()
	})
	return nil
}

// GetUpgrader returns the WebSocket upgrader for HTTP handlers
func (wsn *WebSocketNotifier) GetUpgrader() websocket.Upgrader {
	return wsn.upgrader
}
