package signal

import (
	"sync"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConn wraps a gorilla connection as a ports.Conn. gorilla allows at most
// one concurrent writer, so every write path goes through the mutex.
type wsConn struct {
	id           domain.ConnID
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func newWSConn(id domain.ConnID, conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{id: id, conn: conn, writeTimeout: writeTimeout}
}

func (c *wsConn) ID() domain.ConnID { return c.id }

func (c *wsConn) WriteEvent(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(envelope{Type: event, Payload: payload})
}

func (c *wsConn) writeControl(messageType int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(messageType, nil)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// envelope is the outbound wire frame shared by every server-pushed event.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Registry tracks which live connections belong to which user. A user may
// hold several connections at once (multiple devices); each connection
// belongs to exactly one user.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]map[domain.ConnID]ports.Conn
	owner  map[domain.ConnID]domain.UserID

	logger *zap.SugaredLogger
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]map[domain.ConnID]ports.Conn),
		owner:  make(map[domain.ConnID]domain.UserID),
		logger: logger,
	}
}

func (r *Registry) Bind(user domain.UserID, conn ports.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[user]
	if !ok {
		conns = make(map[domain.ConnID]ports.Conn)
		r.byUser[user] = conns
	}
	conns[conn.ID()] = conn
	r.owner[conn.ID()] = user

	r.logger.Infow("socket bound", "user_id", user, "conn_id", conn.ID(), "sockets", len(conns))
}

func (r *Registry) Unbind(conn ports.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.owner[conn.ID()]
	if !ok {
		return
	}
	delete(r.owner, conn.ID())

	conns := r.byUser[user]
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(r.byUser, user)
	}

	r.logger.Infow("socket unbound", "user_id", user, "conn_id", conn.ID(), "sockets", len(conns))
}

func (r *Registry) Resolve(user domain.UserID) []ports.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[user]
	if len(conns) == 0 {
		return nil
	}
	out := make([]ports.Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Send(conn ports.Conn, event string, payload interface{}) error {
	if err := conn.WriteEvent(event, payload); err != nil {
		return domain.ErrDeliveryFailed
	}
	return nil
}

// ConnectedUsers reports how many distinct users hold at least one socket.
func (r *Registry) ConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// NotificationDispatcher fans a notification out to every socket its
// recipient currently holds. Delivery is best-effort: a failed socket is
// logged and skipped, and the dispatch fails only when no socket accepted
// the frame.
type NotificationDispatcher struct {
	registry ports.SocketRegistry
	logger   *zap.SugaredLogger
}

func NewNotificationDispatcher(registry ports.SocketRegistry, logger *zap.SugaredLogger) *NotificationDispatcher {
	return &NotificationDispatcher{registry: registry, logger: logger}
}

func (d *NotificationDispatcher) Dispatch(n domain.Notification) error {
	conns := d.registry.Resolve(n.Recipient)
	if len(conns) == 0 {
		d.logger.Debugw("notification dropped, recipient offline",
			"user_id", n.Recipient,
			"event", n.Event,
		)
		return domain.ErrDeliveryFailed
	}

	delivered := 0
	for _, conn := range conns {
		if err := d.registry.Send(conn, n.Event, n.Payload); err != nil {
			d.logger.Warnw("notification write failed",
				"user_id", n.Recipient,
				"conn_id", conn.ID(),
				"event", n.Event,
				"error", err,
			)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return domain.ErrDeliveryFailed
	}
	return nil
}
