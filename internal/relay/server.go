package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"facebridge/server/internal/model"
	"facebridge/server/internal/notify"
)

const (
	greetingMessage = "Connected to relay server"
	busyMessage     = "Server busy: too many connections"
	invalidJSON     = "Invalid JSON"
)

// Server accepts plugin WebSocket connections, enforces admission and
// runs the per-connection read loop.
type Server struct {
	log        *zap.SugaredLogger
	gate       *Gate
	dispatcher *Dispatcher
	notifier   *notify.Notifier
	upgrader   websocket.Upgrader
}

func NewServer(log *zap.SugaredLogger, gate *Gate, d *Dispatcher, n *notify.Notifier) *Server {
	return &Server{
		log:        log.Named("relay"),
		gate:       gate,
		dispatcher: d,
		notifier:   n,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The plugin connects from an arbitrary local origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS performs the upgrade and admission steps, then hands the
// connection to the read loop. Excess connections still complete the
// handshake so the busy message is delivered over valid framing.
func (s *Server) HandleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnf("upgrade failed for %s: %v", c.Request.RemoteAddr, err)
		return
	}
	defer conn.Close()

	permit, ok := s.gate.TryAcquire()
	if !ok {
		s.rejectBusy(conn, c.Request.RemoteAddr)
		return
	}
	defer permit.Release()

	s.handleConn(c.Request.Context(), conn, c.Request.RemoteAddr)
}

// rejectBusy sends the fixed busy notice followed by a close frame.
// Busy connections never hold a permit.
func (s *Server) rejectBusy(conn *websocket.Conn, peer string) {
	s.log.Infof("rejecting %s: at capacity", peer)
	s.notifier.CEPStatus("Connection rejected: server busy")

	if err := conn.WriteJSON(model.Notice{Status: model.StatusError, Message: busyMessage}); err != nil {
		s.log.Warnf("sending busy notice to %s: %v", peer, err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleConn(ctx context.Context, conn *websocket.Conn, peer string) {
	s.log.Infof("client connected: %s", peer)
	s.notifier.CEPStatus("Connected")

	// Greeting goes out before anything is read from the client.
	if err := conn.WriteJSON(model.Notice{Status: model.StatusOK, Message: greetingMessage}); err != nil {
		s.log.Warnf("sending greeting to %s: %v", peer, err)
		return
	}

	// Strictly sequential: the next frame is read only after the
	// previous response has been sent.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if _, closed := err.(*websocket.CloseError); closed {
				s.log.Infof("client disconnected: %s", peer)
				s.notifier.CEPStatus("Disconnected")
			} else {
				s.log.Warnf("read error from %s: %v", peer, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req model.Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := conn.WriteJSON(model.Notice{Status: model.StatusError, Message: invalidJSON}); err != nil {
				s.log.Warnf("write error to %s: %v", peer, err)
				return
			}
			continue
		}

		resp := s.dispatcher.Dispatch(ctx, req)
		if err := conn.WriteJSON(resp); err != nil {
			s.log.Warnf("write error to %s: %v", peer, err)
			return
		}
	}
}
