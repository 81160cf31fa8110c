package ingest

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solaris-cloud/internal/alerts"
	"solaris-cloud/internal/broadcast"
	"solaris-cloud/internal/observability/metrics"
	telemetry "solaris-cloud/internal/telemetry/domain"
)

// DeviceHandler upgrades the device WebSocket connection and runs one
// ingestion session per connection. The pipeline serves a single device;
// a second concurrent connection is rejected.
type DeviceHandler struct {
	store       telemetry.Appender
	hub         *broadcast.Hub
	engine      *alerts.Engine
	logger      *log.Logger
	sessionOpts []SessionOption
	upgrader    websocket.Upgrader

	active atomic.Bool
}

// NewDeviceHandler constructs the device ingest endpoint. Session options
// are applied to every session it spawns.
func NewDeviceHandler(store telemetry.Appender, hub *broadcast.Hub, engine *alerts.Engine, logger *log.Logger, opts ...SessionOption) (*DeviceHandler, error) {
	if logger == nil {
		logger = log.Default()
	}
	handler := &DeviceHandler{
		store:       store,
		hub:         hub,
		engine:      engine,
		logger:      logger,
		sessionOpts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	return handler, nil
}

// ServeHTTP handles GET /ws/device.
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.store == nil || h.hub == nil || h.engine == nil {
		http.Error(w, "ingest not ready", http.StatusServiceUnavailable)
		return
	}
	if !h.active.CompareAndSwap(false, true) {
		http.Error(w, "device already connected", http.StatusConflict)
		return
	}
	defer h.active.Store(false)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
		return
	}

	session, err := NewSession(wsConn{conn: conn}, h.store, h.hub, h.engine, h.logger, h.sessionOpts...)
	if err != nil {
		_ = conn.Close()
		h.logger.Printf("ingest: session setup failed: %v", err)
		return
	}

	metrics.IncDeviceConnection("connected")
	h.logger.Printf("ingest: device connected from %s", r.RemoteAddr)
	if err := session.Run(r.Context()); err != nil {
		h.logger.Printf("ingest: device session ended: %v", err)
	}
	metrics.IncDeviceConnection("closed")
	h.logger.Printf("ingest: device disconnected")
}

// wsConn adapts a gorilla connection to the session's Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) WriteMessage(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c wsConn) Close() error { return c.conn.Close() }
