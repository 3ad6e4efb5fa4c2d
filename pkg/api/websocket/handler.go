package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/pkg/adapters/events"
	"github.com/aescanero/simorch/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventSource is where the handler subscribes for events; the orchestrator
// satisfies it.
type EventSource interface {
	Subscribe(obs orchestrator.Observer) func()
}

// Handler handles WebSocket connections
type Handler struct {
	source     EventSource
	bufferSize int
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(source EventSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		source:     source,
		bufferSize: 64,
		logger:     logger,
	}
}

// HandleRunStream upgrades the connection and streams lifecycle events
// until the client disconnects. Events that do not fit the client's buffer
// are dropped, never blocking the run.
func (h *Handler) HandleRunStream(c *gin.Context) {
	filter := parseTypes(c.Query("types"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	eventChan := make(chan ports.Event, h.bufferSize)
	unsubscribe := h.source.Subscribe(orchestrator.ObserverFunc(func(_ context.Context, e orchestrator.Event) {
		if len(filter) > 0 && !filter[string(e.Type)] {
			return
		}
		select {
		case eventChan <- events.ToPortEvent(e):
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_type", string(e.Type)),
				zap.Int64("step", e.Step))
		}
	}))
	defer unsubscribe()

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("failed to write message", zap.Error(err))
				return
			}
		}
	}
}

// readPump discards client messages and cancels the stream once the
// connection closes.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func parseTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = true
		}
	}
	return filter
}
