package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway is C7, the RealtimeGateway (spec.md §4.7): it upgrades HTTP
// connections into one of five namespaces, relays EventBus traffic into
// per-job rooms, and tracks connection statistics.
type Gateway struct {
	bus  *eventbus.Bus
	auth *Authenticator

	mu    sync.RWMutex
	rooms map[Namespace]map[string]map[string]*session // namespace -> jobID -> sessionID -> session

	stats *statsTracker
}

func NewGateway(bus *eventbus.Bus, auth *Authenticator) *Gateway {
	rooms := make(map[Namespace]map[string]map[string]*session, len(namespaces))
	for _, ns := range namespaces {
		rooms[ns] = make(map[string]map[string]*session)
	}
	return &Gateway{bus: bus, auth: auth, rooms: rooms, stats: newStatsTracker()}
}

// controlMessage is the client->server wire shape for subscribe/unsubscribe
// (spec.md §6 "messages subscribe:job/unsubscribe:job carrying a job-id").
type controlMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// ServeWS upgrades the request into a session on namespace ns. A bearer
// token is required when requireAuth is true (live-stream ingress); it is
// parsed from the "Authorization: Bearer <token>" header or the "token"
// query parameter when present either way.
func (g *Gateway) ServeWS(ns Namespace, requireAuth bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.authenticateRequest(r)
		if requireAuth && err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.LogError("", "websocket upgrade failed", err, "namespace", string(ns))
			return
		}

		if requireAuth && claims == nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"), deadlineNow())
			conn.Close()
			return
		}

		sess := newSession(uuid.NewString(), ns, conn, claims)
		g.stats.onConnect(ns)
		go g.readPump(sess)
		go sess.writePump()
	}
}

func (g *Gateway) authenticateRequest(r *http.Request) (*Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return nil, errors.Authorization("missing bearer token", nil)
	}
	return g.auth.Authenticate(token)
}

// readPump drains client control messages (subscribe/unsubscribe) and
// enforces the inactivity timeout, mirroring the teacher's ws_hub readPump:
// a read deadline of config.InactivityTimeout is pushed forward by every
// inbound message and pong, so a session silent for that long is closed.
func (g *Gateway) readPump(sess *session) {
	defer func() {
		g.leaveAllRooms(sess)
		g.stats.onDisconnect(sess.namespace)
		close(sess.send)
		sess.conn.Close()
	}()

	sess.conn.SetReadLimit(4096)
	_ = sess.conn.SetReadDeadline(time.Now().Add(config.InactivityTimeout))
	sess.conn.SetPongHandler(func(string) error {
		sess.touch()
		return sess.conn.SetReadDeadline(time.Now().Add(config.InactivityTimeout))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		sess.touch()
		_ = sess.conn.SetReadDeadline(time.Now().Add(config.InactivityTimeout))
		g.handleControlMessage(sess, data)
	}
}

func (g *Gateway) handleControlMessage(sess *session, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.JobID == "" {
		return
	}
	switch msg.Type {
	case "subscribe":
		g.joinRoom(sess, msg.JobID)
	case "unsubscribe":
		g.leaveRoom(sess, msg.JobID)
	}
}

func (g *Gateway) joinRoom(sess *session, jobID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room := g.rooms[sess.namespace][jobID]
	if room == nil {
		room = make(map[string]*session)
		g.rooms[sess.namespace][jobID] = room
	}
	room[sess.id] = sess
	sess.joinRoom(jobID)
}

func (g *Gateway) leaveRoom(sess *session, jobID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[sess.namespace][jobID]; ok {
		delete(room, sess.id)
		if len(room) == 0 {
			delete(g.rooms[sess.namespace], jobID)
		}
	}
	sess.leaveRoom(jobID)
}

func (g *Gateway) leaveAllRooms(sess *session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for jobID, room := range g.rooms[sess.namespace] {
		delete(room, sess.id)
		if len(room) == 0 {
			delete(g.rooms[sess.namespace], jobID)
		}
	}
}

// Relay runs for the lifetime of ctx, subscribing to every EventBus topic
// root and fanning each message out to the namespace it belongs to plus
// /videoagent for general subscribers (spec.md §4.7: "demultiplexed by
// topic-prefix ... emitted both to the specialised namespace and to
// /videoagent").
func (g *Gateway) Relay(ctx context.Context) {
	sub := g.bus.Subscribe(ctx, "*:*")
	defer sub.Close()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		g.dispatch(msg)
	}
}

func (g *Gateway) dispatch(msg eventbus.Message) {
	parts := strings.SplitN(msg.Topic, ":", 2)
	if len(parts) != 2 {
		return
	}
	root, jobID := parts[0], parts[1]

	kind, err := eventbus.SniffKind(msg.Payload)
	if err != nil {
		return
	}
	g.stats.onEvent(string(kind))

	ns := namespaceForRoot(root)
	if ns == "" {
		return
	}

	g.broadcastToRoom(ns, jobID, msg.Payload)
	if ns != NamespaceVideoAgent {
		g.broadcastToRoom(NamespaceVideoAgent, jobID, msg.Payload)
	}
}

func namespaceForRoot(root string) Namespace {
	switch root {
	case eventbus.TopicJobs:
		return NamespaceJobs
	case eventbus.TopicProgress:
		return NamespaceProgress
	case eventbus.TopicFrames:
		return NamespaceFrames
	case eventbus.TopicScenes:
		return NamespaceScenes
	default:
		return ""
	}
}

func (g *Gateway) broadcastToRoom(ns Namespace, jobID string, payload []byte) {
	g.mu.RLock()
	room := g.rooms[ns][jobID]
	sessions := make([]*session, 0, len(room))
	for _, s := range room {
		sessions = append(sessions, s)
	}
	g.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.send <- payload:
		default:
			// slow consumer; drop rather than block the relay loop.
		}
	}
}

// Stats returns the current connection/event statistics (spec.md §4.7).
func (g *Gateway) Stats() Stats {
	return g.stats.snapshot()
}

func deadlineNow() time.Time {
	return time.Now().Add(2 * time.Second)
}
