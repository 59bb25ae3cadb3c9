package broadcast

import (
	"context"
	"net/http"
	"time"

	"netqos/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

var validChannels = map[string]struct{}{
	domain.ChannelTraffic:    {},
	domain.ChannelByType:     {},
	domain.ChannelAllocation: {},
	domain.ChannelAlerts:     {},
}

// ControlMessage is the inbound subscribe/unsubscribe frame.
type ControlMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

// WebSocketServer bridges hub subscribers onto websocket connections. One
// writer goroutine per connection drains the subscriber queue; a reader
// goroutine handles control frames and liveness.
type WebSocketServer struct {
	hub *Hub

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	connLimiter *rate.Limiter

	logger *zap.SugaredLogger
}

func NewWebSocketServer(hub *Hub, pingInterval, pongTimeout, writeTimeout time.Duration, connectionsPerMinute int, logger *zap.SugaredLogger) *WebSocketServer {
	var limiter *rate.Limiter
	if connectionsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(connectionsPerMinute)/60.0), connectionsPerMinute)
	}
	return &WebSocketServer{
		hub:          hub,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		writeTimeout: writeTimeout,
		connLimiter:  limiter,
		logger:       logger,
	}
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.connLimiter != nil && !s.connLimiter.Allow() {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Register()
	defer s.hub.Unregister(sub)

	// Initial filter may come from the query string; otherwise the
	// subscriber receives all channels until a subscribe frame narrows it.
	if channels, ok := r.URL.Query()["channel"]; ok {
		sub.Subscribe(filterValid(channels)...)
	}

	s.logger.Infow("subscriber connected", "subscriber_id", sub.ID(), "remote", r.RemoteAddr)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errorChan := make(chan error, 1)
	go s.readLoop(conn, sub, errorChan)

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Envelope)
	go func() {
		for {
			env, ok := sub.Next(ctx)
			if !ok {
				close(messageChan)
				return
			}
			select {
			case messageChan <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case env, ok := <-messageChan:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteJSON(env.Message); err != nil {
				s.logger.Infow("error writing to subscriber", "subscriber_id", sub.ID(), "error", err)
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "subscriber_id", sub.ID(), "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from subscriber", "subscriber_id", sub.ID(), "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) readLoop(conn *websocket.Conn, sub *Subscriber, errorChan chan<- error) {
	for {
		var msg ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			errorChan <- err
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		switch msg.Type {
		case "subscribe":
			sub.Subscribe(filterValid(msg.Channels)...)
		case "unsubscribe":
			sub.Unsubscribe(msg.Channels...)
		default:
			s.logger.Debugw("ignoring unknown control frame",
				"subscriber_id", sub.ID(),
				"type", msg.Type,
			)
		}
	}
}

func filterValid(channels []string) []string {
	out := make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, ok := validChannels[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
