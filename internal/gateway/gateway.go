// Package gateway is the real-time tracking channel. A socket joins a
// tracking session with a "start" frame and then relays live position
// updates to the other parties with "broadcast" frames.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/BearBump/DispatchBox/internal/apperrors"
	"github.com/BearBump/DispatchBox/internal/logger"
	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type SessionRegistry interface {
	ResolveDelivery(ctx context.Context, sessionID string) (*models.Delivery, error)
	BindSocket(ctx context.Context, sessionID string, p models.Participant, socketID string) error
	Unbind(ctx context.Context, sessionID string, p models.Participant, socketID string) error
	Get(ctx context.Context, sessionID string) (models.SocketBindings, error)
}

type LiveUpdater interface {
	ApplyLiveUpdate(ctx context.Context, sessionID string, upd models.LiveUpdate) (*models.Delivery, error)
}

type Gateway struct {
	sessions   SessionRegistry
	deliveries LiveUpdater
	log        *logger.Logger

	upgrader       websocket.Upgrader
	allowedOrigins []string
	eventTimeout   time.Duration

	mu      sync.RWMutex
	clients map[string]*Client
}

func New(sessions SessionRegistry, deliveries LiveUpdater, log *logger.Logger) *Gateway {
	g := &Gateway{
		sessions:     sessions,
		deliveries:   deliveries,
		log:          log,
		eventTimeout: 10 * time.Second,
		clients:      make(map[string]*Client),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      g.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return g
}

// WithAllowedOrigins restricts browser origins; empty or "*" allows any.
func (g *Gateway) WithAllowedOrigins(origins []string) *Gateway {
	g.allowedOrigins = origins
	return g
}

func (g *Gateway) WithEventTimeout(d time.Duration) *Gateway {
	if d > 0 {
		g.eventTimeout = d
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.allowedOrigins) == 0 {
		return true
	}
	for _, o := range g.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	g.log.WithField("origin", origin).Warn("websocket origin rejected")
	return false
}

// ServeHTTP upgrades the connection and greets the socket with "start".
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &Client{
		id:   uuid.NewString(),
		gw:   g,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	g.mu.Lock()
	g.clients[c.id] = c
	total := len(g.clients)
	g.mu.Unlock()
	g.log.WithFields(logrus.Fields{"socket_id": c.id, "total_clients": total}).Info("socket connected")

	g.emit(c, EventStart, messagePayload{Message: connectedMessage})

	go c.writePump()
	go c.readPump()
}

// Connected reports how many sockets are open.
func (g *Gateway) Connected() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Close drops every open socket.
func (g *Gateway) Close() {
	g.mu.Lock()
	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (g *Gateway) disconnect(c *Client) {
	g.mu.Lock()
	delete(g.clients, c.id)
	g.mu.Unlock()
	c.close()

	ctx, cancel := context.WithTimeout(context.Background(), g.eventTimeout)
	defer cancel()
	for _, b := range c.takeBindings() {
		if err := g.sessions.Unbind(ctx, b.sessionID, b.role, c.id); err != nil {
			g.log.WithError(err).WithFields(logrus.Fields{
				"socket_id":  c.id,
				"session_id": b.sessionID,
				"role":       string(b.role),
			}).Warn("unbind socket failed")
		}
	}
	g.log.WithField("socket_id", c.id).Info("socket disconnected")
}

func (g *Gateway) handle(c *Client, frame []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), g.eventTimeout)
	defer cancel()

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		g.fail(c, "", apperrors.Invalid("Malformed frame"))
		return
	}

	var err error
	switch env.Event {
	case EventStart:
		err = g.handleStart(ctx, c, env.Data)
	case EventBroadcast:
		err = g.handleBroadcast(ctx, c, env.Data)
	default:
		err = apperrors.Invalid("Unknown event %q", env.Event)
	}
	if err != nil {
		g.fail(c, env.Event, err)
	}
}

func (g *Gateway) handleStart(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p startPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperrors.Invalid("Malformed start payload")
	}

	d, err := g.sessions.ResolveDelivery(ctx, p.SessionID)
	if err != nil {
		return err
	}

	if role, ok := models.ParseParticipant(p.Role); ok {
		if err := g.sessions.BindSocket(ctx, p.SessionID, role, c.id); err != nil {
			return err
		}
		c.bind(p.SessionID, role)
		g.log.WithFields(logrus.Fields{"socket_id": c.id, "session_id": p.SessionID, "role": p.Role}).Info("socket joined session")
	}

	g.emit(c, EventStart, d)
	return nil
}

func (g *Gateway) handleBroadcast(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p broadcastPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperrors.Invalid("Malformed broadcast payload")
	}
	upd, err := decodeLiveUpdate(p.Data)
	if err != nil {
		return err
	}

	d, err := g.deliveries.ApplyLiveUpdate(ctx, p.SessionID, upd)
	if err != nil {
		return err
	}
	targets, err := g.sessions.Get(ctx, p.SessionID)
	if err != nil {
		return err
	}

	g.fanOut(targets.All(), c.id, d)
	return nil
}

// Push sends the current delivery snapshot to every socket bound to the
// session. Used when a transition happens outside the socket channel.
func (g *Gateway) Push(ctx context.Context, sessionID string) error {
	d, err := g.sessions.ResolveDelivery(ctx, sessionID)
	if err != nil {
		return err
	}
	targets, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	g.fanOut(targets.All(), "", d)
	return nil
}

// fanOut emits one "broadcast" per distinct socket, plus the sender when it
// is not already bound.
func (g *Gateway) fanOut(socketIDs []string, senderID string, d *models.Delivery) {
	frame, err := encode(EventBroadcast, d)
	if err != nil {
		g.log.WithError(err).Error("encode broadcast")
		return
	}
	echoed := false
	for _, id := range socketIDs {
		if id == senderID {
			echoed = true
		}
		g.send(id, frame)
	}
	if senderID != "" && !echoed {
		g.send(senderID, frame)
	}
}

func (g *Gateway) send(socketID string, frame []byte) {
	g.mu.RLock()
	c, ok := g.clients[socketID]
	g.mu.RUnlock()
	if !ok {
		g.log.WithField("socket_id", socketID).Debug("stale socket binding, skipping")
		return
	}
	if !c.enqueue(frame) {
		g.log.WithField("socket_id", socketID).Warn("socket send buffer full, frame dropped")
	}
}

func (g *Gateway) emit(c *Client, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		g.log.WithError(err).WithField("event", event).Error("encode frame")
		return
	}
	if !c.enqueue(frame) {
		g.log.WithField("socket_id", c.id).Warn("socket send buffer full, frame dropped")
	}
}

// fail reports err to the originating socket only.
func (g *Gateway) fail(c *Client, event string, err error) {
	entry := g.log.WithError(err).WithFields(logrus.Fields{"socket_id": c.id, "event": event})
	if apperrors.Kind(err) == nil {
		entry.Error("socket event failed")
	} else {
		entry.Debug("socket event rejected")
	}
	g.emit(c, EventError, messagePayload{Message: apperrors.PublicMessage(err, "Something went wrong")})
}
