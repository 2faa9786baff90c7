// Package websocket serves the chat session over WebSocket with the same JSON
// frames and the same dispatcher as the gRPC transport.
package websocket

import (
	"context"
	"encoding/json"
	"hire-chat/auth"
	"hire-chat/contract"
	"hire-chat/protocol"
	"hire-chat/sink"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameLength = 64 * 1024
)

// Lifecycle is the session handler as seen by a transport.
type Lifecycle interface {
	protocol.Session
	contract.SessionLifecycle
}

type Handler struct {
	log                  *slog.Logger
	lifecycle            Lifecycle
	dispatcher           *protocol.Dispatcher
	secret               []byte
	upgrader             websocket.Upgrader
	connectionBufferSize int
	deliveryTimeout      time.Duration
}

func NewHandler(log *slog.Logger, lifecycle Lifecycle, secret []byte,
	connectionBufferSize int, deliveryTimeout time.Duration) *Handler {
	return &Handler{
		log:        log,
		lifecycle:  lifecycle,
		dispatcher: protocol.NewDispatcher(log, lifecycle),
		secret:     secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		connectionBufferSize: connectionBufferSize,
		deliveryTimeout:      deliveryTimeout,
	}
}

// tokenOf reads the bearer token of the upgrade request. Browsers cannot set
// headers on a WebSocket, so the access_token query parameter is accepted too.
func tokenOf(r *http.Request) string {
	if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return r.URL.Query().Get("access_token")
}

// ServeHTTP upgrades the request and serves the session until either side closes it.
// An invalid token is refused with 401 before the upgrade, a missing one opens
// an anonymous session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenOf(r)
	if token != "" {
		if _, err := auth.ValidateToken(h.secret, token); err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn := sink.NewConnectionSink(token, h.connectionBufferSize, h.deliveryTimeout)
	if err := h.lifecycle.OnConnect(ctx, conn); err != nil {
		conn.Close()
		h.closeWith(ws, websocket.CloseTryAgainLater, "rooms unavailable, retry later")
		return
	}
	defer func() {
		cancel()
		h.lifecycle.OnDisconnect(context.WithoutCancel(ctx), conn)
	}()

	results := make(chan protocol.Frame, h.connectionBufferSize)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.read(ctx, ws, conn, results)
	}()

	h.write(ctx, ws, conn, results, readDone)
}

func (h *Handler) read(ctx context.Context, ws *websocket.Conn, conn contract.Connection, results chan<- protocol.Frame) {
	ws.SetReadLimit(maxFrameLength)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("WebSocket read failed", "connection_id", conn.ID(), "error", err)
			}
			return
		}

		var res protocol.Frame
		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			res = protocol.Reject(err)
		} else {
			res = h.dispatcher.Dispatch(ctx, conn, frame)
		}

		select {
		case results <- res:
		case <-ctx.Done():
			return
		}
	}
}

// write is the only writer of ws.
func (h *Handler) write(ctx context.Context, ws *websocket.Conn, conn *sink.ConnectionSink,
	results <-chan protocol.Frame, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case <-conn.Done():
			h.log.Warn("Session closed, client too slow", "connection_id", conn.ID())
			h.closeWith(ws, websocket.ClosePolicyViolation, "too slow")
			return
		case frame := <-results:
			if err := h.send(ws, frame); err != nil {
				return
			}
		case e := <-conn.Events():
			frame, err := protocol.EventFrame(e)
			if err != nil {
				h.log.Error("Unable to render event", "connection_id", conn.ID(), "event", e.Name(), "error", err)
				continue
			}
			if err := h.send(ws, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(ws *websocket.Conn, frame protocol.Frame) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(frame); err != nil {
		h.log.Debug("WebSocket write failed", "error", err)
		return err
	}
	return nil
}

func (h *Handler) closeWith(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
