package signal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"
	"callnet/internal/core/services"
	"callnet/pkg/config"
	"callnet/pkg/utils"
	"callnet/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin allow-list is enforced by the edge proxy.
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketServer is the realtime transport adapter. Each accepted socket
// is authenticated, bound in the registry, and driven by a read loop that
// translates wire messages into signaling service calls. Server pushes go
// the other way through the registry, never through this loop.
type WebSocketServer struct {
	signaling ports.SignalingService
	registry  *Registry
	auth      services.AuthService

	pingInterval time.Duration
	pongTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	msgRate     rate.Limit
	msgBurst    int
	maxMsgBytes int64

	logger *zap.SugaredLogger
}

// ClientMessage is the inbound wire frame. Fields beyond Type and CallID
// are used per message type; unused ones stay empty.
type ClientMessage struct {
	Type    string          `json:"type"`
	CallID  domain.CallID   `json:"call_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type initiatePayload struct {
	Callee   domain.UserID `json:"callee"`
	CallType string        `json:"call_type"`
}

type qualityPayload struct {
	RoundTripTimeMs int64   `json:"rtt_ms"`
	PacketLossRatio float64 `json:"packet_loss"`
}

type rtcpPayload struct {
	// Raw RTCP compound packet, base64 over the JSON frame.
	Data string `json:"data"`
}

func NewWebSocketServer(
	signaling ports.SignalingService,
	registry *Registry,
	auth services.AuthService,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	s := &WebSocketServer{
		signaling:    signaling,
		registry:     registry,
		auth:         auth,
		pingInterval: cfg.Signal.PingInterval,
		pongTimeout:  cfg.Signal.PongTimeout,
		readTimeout:  cfg.Signal.PongTimeout,
		writeTimeout: cfg.Signal.WriteTimeout,
		logger:       logger,
	}
	if cfg.RateLimiting.Enabled {
		s.msgRate = rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond)
		s.msgBurst = cfg.RateLimiting.WebSocket.Burst
		s.maxMsgBytes = cfg.RateLimiting.WebSocket.MaxMessageSizeBytes
	}
	return s
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		s.logger.Warnw("websocket auth rejected", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer rawConn.Close()

	if s.maxMsgBytes > 0 {
		rawConn.SetReadLimit(s.maxMsgBytes)
	}

	conn := newWSConn(domain.ConnID(utils.GenerateConnID()), rawConn, s.writeTimeout)
	s.registry.Bind(userID, conn)
	s.signaling.SocketOpened(userID)

	s.logger.Infow("user connected", "user_id", userID, "conn_id", conn.ID())

	rawConn.SetReadDeadline(time.Now().Add(s.readTimeout))
	rawConn.SetPongHandler(func(string) error {
		rawConn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	var limiter *rate.Limiter
	if s.msgRate > 0 {
		limiter = rate.NewLimiter(s.msgRate, s.msgBurst)
	}

	messageChan := make(chan ClientMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg ClientMessage
			if err := rawConn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			rawConn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.sendError(conn, msg.Type, "rate limit exceeded")
				continue
			}
			if err := s.handleMessage(r.Context(), userID, conn, msg); err != nil {
				s.logger.Infow("message rejected",
					"user_id", userID,
					"type", msg.Type,
					"call_id", msg.CallID,
					"error", err,
				)
				s.sendError(conn, msg.Type, err.Error())
			}

		case <-pingTicker.C:
			if err := conn.writeControl(websocket.PingMessage); err != nil {
				s.logger.Infow("ping failed", "user_id", userID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "user_id", userID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.registry.Unbind(conn)
	s.signaling.SocketClosed(userID)
	s.logger.Infow("user disconnected", "user_id", userID, "conn_id", conn.ID())
}

func (s *WebSocketServer) handleMessage(ctx context.Context, userID domain.UserID, conn *wsConn, msg ClientMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	switch msg.Type {
	case "initiate":
		return s.handleInitiate(ctx, userID, conn, msg)
	case "answer":
		return s.signaling.Answer(ctx, msg.CallID, userID)
	case "reject":
		return s.signaling.Reject(ctx, msg.CallID, userID)
	case "end":
		return s.signaling.End(ctx, msg.CallID, userID)
	case "signal":
		return s.signaling.RelaySignal(ctx, msg.CallID, userID, msg.Payload)
	case "quality":
		return s.handleQuality(ctx, userID, msg)
	case "quality_rtcp":
		return s.handleQualityRTCP(ctx, userID, msg)
	case "status":
		return s.handleStatus(ctx, userID, conn, msg)
	case "list":
		return s.handleList(ctx, userID, conn)
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *WebSocketServer) handleInitiate(ctx context.Context, userID domain.UserID, conn *wsConn, msg ClientMessage) error {
	var payload initiatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid initiate payload: %w", err)
	}
	if err := validation.ValidateUserID(string(payload.Callee)); err != nil {
		return fmt.Errorf("invalid callee: %w", err)
	}
	if err := validation.ValidateCallType(payload.CallType); err != nil {
		return err
	}

	sess, err := s.signaling.Initiate(ctx, userID, payload.Callee, domain.CallType(payload.CallType))
	if err != nil {
		return err
	}

	// An offline callee still gets a ringing call (it may reconnect before
	// the timeout); the initiator just learns it up front.
	return s.registry.Send(conn, "call-initiated", map[string]interface{}{
		"call":          sess.Summary(time.Now()),
		"callee_online": len(s.registry.Resolve(payload.Callee)) > 0,
	})
}

func (s *WebSocketServer) handleQuality(ctx context.Context, userID domain.UserID, msg ClientMessage) error {
	var payload qualityPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid quality payload: %w", err)
	}
	if err := validation.ValidateQualitySample(payload.RoundTripTimeMs, payload.PacketLossRatio); err != nil {
		return err
	}

	return s.signaling.ReportQuality(ctx, domain.QualitySample{
		CallID:          msg.CallID,
		Reporter:        userID,
		RoundTripTimeMs: payload.RoundTripTimeMs,
		PacketLossRatio: payload.PacketLossRatio,
		Timestamp:       time.Now(),
	})
}

func (s *WebSocketServer) handleQualityRTCP(ctx context.Context, userID domain.UserID, msg ClientMessage) error {
	var payload rtcpPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid rtcp payload: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return fmt.Errorf("invalid rtcp payload encoding: %w", err)
	}

	return s.signaling.ReportRTCP(ctx, msg.CallID, userID, raw)
}

func (s *WebSocketServer) handleStatus(ctx context.Context, userID domain.UserID, conn *wsConn, msg ClientMessage) error {
	summary, err := s.signaling.GetStatus(ctx, msg.CallID, userID)
	if err != nil {
		return err
	}
	return s.registry.Send(conn, domain.EventCallStatus, summary)
}

func (s *WebSocketServer) handleList(ctx context.Context, userID domain.UserID, conn *wsConn) error {
	summaries, err := s.signaling.ListActiveCalls(ctx, userID)
	if err != nil {
		return err
	}
	return s.registry.Send(conn, "active-calls", map[string]interface{}{
		"calls": summaries,
	})
}

func (s *WebSocketServer) sendError(conn *wsConn, inReplyTo, message string) {
	conn.WriteEvent("error", map[string]interface{}{
		"in_reply_to": inReplyTo,
		"message":     message,
	})
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().Unix(),
		"connected_users": s.registry.ConnectedUsers(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
