package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"content_sync/internal/domain"
	"content_sync/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientBuffer   = 16
	maxClientFrame = 512
)

// Frame is pushed to every connected client after a collection changed.
type Frame struct {
	Collection string `json:"collection"`
	Items      any    `json:"items"`
}

type promoFrame struct {
	Top    domain.PromoCard `json:"top"`
	Bottom domain.PromoCard `json:"bottom"`
}

// Hub fans refreshed collections out to websocket clients.
type Hub struct {
	content  *service.Content
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(content *service.Content, logger *slog.Logger) *Hub {
	return &Hub{
		content: content,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger.With("component", "hub"),
		clients: make(map[*client]struct{}),
	}
}

// Run subscribes to remote changes and blocks until ctx is done. Clients
// are disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.content.SubscribeToChanges(ctx, service.Handlers{
		OnBannersChange: func(banners []domain.Banner) { h.broadcast(domain.Banners, banners) },
		OnVideosChange:  func(videos []domain.VideoCard) { h.broadcast(domain.Videos, videos) },
		OnNoticesChange: func(notices []domain.Notice) { h.broadcast(domain.Notices, notices) },
		OnPromosChange: func() {
			h.broadcast(domain.Promos, promoFrame{
				Top:    h.content.GetPromoCard(ctx),
				Bottom: h.content.GetBottomPromoCard(ctx),
			})
		},
	})

	<-ctx.Done()
	unsubscribe()

	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("client connected", "remote_addr", r.RemoteAddr)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) broadcast(collection domain.Collection, items any) {
	payload, err := json.Marshal(Frame{Collection: string(collection), Items: items})
	if err != nil {
		h.logger.Error("failed to encode frame", "collection", string(collection), "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("client too slow, disconnecting")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// readPump only drains control frames; clients never send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxClientFrame)
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
