package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"OptArb/internal/domain/models"
	xlogger "OptArb/pkg/logger"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (cl *wsClient) close() {
	cl.once.Do(func() { close(cl.send) })
}

// ResultHub fans results out to websocket subscribers. A subscriber whose
// send buffer is full is disconnected rather than allowed to stall the pipeline.
type ResultHub struct {
	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	buffer   int
	logger   *xlogger.Logger
}

func NewResultHub(logger *xlogger.Logger, buffer int) *ResultHub {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &ResultHub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer: buffer,
		logger: logger.Component("result_hub"),
	}
}

func (h *ResultHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/results", h.Serve)
}

// Serve upgrades the request and streams results until the peer goes away.
func (h *ResultHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	cl := &wsClient{conn: conn, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("subscriber connected", xlogger.String("remote", conn.RemoteAddr().String()), xlogger.Int("subscribers", n))

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// readLoop only services control frames; subscribers never send data.
func (h *ResultHub) readLoop(cl *wsClient) {
	defer h.remove(cl, "closed by peer")
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ResultHub) writeLoop(cl *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(cl, "write failed")
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl, "ping failed")
				return
			}
		}
	}
}

// Broadcast never blocks.
func (h *ResultHub) Broadcast(r *models.Result) {
	data, err := json.Marshal(r)
	if err != nil {
		h.logger.Warn("encode result", xlogger.Error(err))
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		h.remove(cl, "slow consumer")
	}
}

func (h *ResultHub) remove(cl *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	cl.close()
	h.logger.Info("subscriber disconnected", xlogger.String("reason", reason), xlogger.Int("subscribers", n))
}

// Subscribers returns the number of connected subscribers.
func (h *ResultHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *ResultHub) Close() {
	h.mu.RLock()
	all := make([]*wsClient, 0, len(h.clients))
	for cl := range h.clients {
		all = append(all, cl)
	}
	h.mu.RUnlock()
	for _, cl := range all {
		h.remove(cl, "server shutdown")
	}
}
