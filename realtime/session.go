package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/catalystvision/core/config"
)

// Namespace is one of the five logical routing surfaces a client connects to
// (spec.md §4.7).
type Namespace string

const (
	NamespaceVideoAgent Namespace = "/videoagent"
	NamespaceJobs       Namespace = "/jobs"
	NamespaceProgress   Namespace = "/progress"
	NamespaceFrames     Namespace = "/frames"
	NamespaceScenes     Namespace = "/scenes"
)

var namespaces = []Namespace{NamespaceVideoAgent, NamespaceJobs, NamespaceProgress, NamespaceFrames, NamespaceScenes}

// session is one connected websocket client (spec.md §4.7 "RealtimeGateway
// owns Session"). rooms tracks which job:<id> rooms it has subscribed to
// within its namespace.
type session struct {
	id        string
	namespace Namespace
	conn      *websocket.Conn
	send      chan []byte
	claims    *Claims // nil for unauthenticated read-only subscribers

	mu           sync.Mutex
	rooms        map[string]struct{}
	lastActivity time.Time
}

func newSession(id string, namespace Namespace, conn *websocket.Conn, claims *Claims) *session {
	return &session{
		id:           id,
		namespace:    namespace,
		conn:         conn,
		send:         make(chan []byte, 64),
		claims:       claims,
		rooms:        make(map[string]struct{}),
		lastActivity: time.Now(),
	}
}

func (s *session) joinRoom(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[jobID] = struct{}{}
}

func (s *session) leaveRoom(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, jobID)
}

func (s *session) inRoom(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[jobID]
	return ok
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// writePump relays queued messages to the socket and sends periodic pings,
// following the teacher's hub pattern (starsinc1708-TorrX ws_hub.go) with
// the spec's 15s ping interval in place of the teacher's 30s.
func (s *session) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
