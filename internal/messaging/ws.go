package messaging

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-dispatch/internal/models"
)

var ErrNoSession = errors.New("no ws session")

// WSSession is one connected driver app session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds live driver sessions keyed by channel id. Drivers running
// the companion app get offers pushed here before the chat fallback kicks in.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession)}
}

func (r *WSRegistry) Add(channelID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[channelID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, channelID)
}

// PushOffer sends the notify intent to the driver's live session, if any.
func (r *WSRegistry) PushOffer(channelID string, in models.NotifyIntent) error {
	r.mu.RLock()
	s, ok := r.sessions[channelID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.send(in)
}
