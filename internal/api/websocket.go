package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaiso/Nodeflow/internal/events"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 512
	wsBufferSize     = 1024
	clientBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub рассылает события выполнения подключённым WebSocket клиентам.
//
// Hub реализует events.Observer. Медленный клиент, чей буфер
// переполнен, отключается; остальные клиенты и движок не ждут его.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger
}

// NewHub создаёт Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan events.Event
	filter eventFilter

	closeOnce sync.Once
}

type eventFilter struct {
	types       map[events.Type]struct{}
	executionID string
}

func (f eventFilter) match(e events.Event) bool {
	if f.executionID != "" && e.ExecutionID != f.executionID {
		return false
	}
	if len(f.types) > 0 {
		if _, ok := f.types[e.Type]; !ok {
			return false
		}
	}
	return true
}

// parseFilter читает ?types=workflow:completed,node:executionFailed&execution=<id>.
func parseFilter(r *http.Request) eventFilter {
	q := r.URL.Query()
	f := eventFilter{executionID: q.Get("execution")}
	if raw := q.Get("types"); raw != "" {
		f.types = make(map[events.Type]struct{})
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.types[events.Type(t)] = struct{}{}
			}
		}
	}
	return f
}

// OnEvent реализует events.Observer.
func (h *Hub) OnEvent(e events.Event) {
	h.mu.RLock()
	var slow []*wsClient
	for c := range h.clients {
		if !c.filter.match(e) {
			continue
		}
		select {
		case c.send <- e:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("websocket client too slow, disconnecting")
		h.remove(c)
	}
}

// ClientCount возвращает число подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS переводит соединение в WebSocket и стримит события.
// GET /api/v1/events
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		conn:   conn,
		send:   make(chan events.Event, clientBufferSize),
		filter: parseFilter(r),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(c)
	go h.writeLoop(c)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.closeOnce.Do(func() { close(c.send) })
	}
}

// readLoop нужен для обработки pong и закрытия соединения клиентом.
func (h *Hub) readLoop(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				h.remove(c)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
