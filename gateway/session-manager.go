package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	promclient "github.com/spooky-finn/go-orderbook-relay/infrastructure/prometheus"
)

var logger = log.With().Str("component", "gateway").Logger()

var (
	ErrMalformedClientID = errors.New("malformed client id")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoConnection      = errors.New("session has no connection")
)

// ClientConn is the outbound transport handle of one client. Satisfied by
// *websocket.Conn.
type ClientConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// writeTimeout bounds a single frame write, so a stalled client cannot wedge
// the goroutine writing to it.
const writeTimeout = 10 * time.Second

// Task is a cancellable subscription bound to one client session. Done closes
// once the task has fully stopped and will write no more frames.
type Task struct {
	Cancel context.CancelFunc
	Done   <-chan struct{}
}

func (t *Task) stop() {
	t.Cancel()
	<-t.Done
}

// ClientSession is the per-client state: an id, an optional transport
// connection, and at most one active subscription task. All mutation goes
// through the owning SessionManager.
type ClientSession struct {
	ID string

	mu     sync.Mutex
	conn   ClientConn
	task   *Task
	closed bool

	// writeMu serializes frame writes. It is separate from mu so that a slow
	// write never blocks Disconnect or SetTask from taking mu.
	writeMu sync.Mutex
}

// Send writes one JSON frame to the client connection. Frames from the reader
// goroutine (error frames) and the subscription task are serialized here.
// Each write carries a deadline, so a stalled client fails the write instead
// of wedging the sender.
func (s *ClientSession) Send(v interface{}) error {
	s.mu.Lock()
	conn := s.conn
	if s.closed || conn == nil {
		s.mu.Unlock()
		return ErrNoConnection
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// SessionManager is the process-wide client id to session registry. It is
// explicitly constructed and passed to whoever needs it; there is no package
// global. Operations on one session never block unrelated clients.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*ClientSession),
	}
}

// Register allocates a fresh client id with an empty session entry, so a
// client can obtain its id before opening the streaming connection.
func (m *SessionManager) Register() string {
	id := uuid.NewString()

	m.mu.Lock()
	m.sessions[id] = &ClientSession{ID: id}
	m.mu.Unlock()

	logger.Info().Str("client_id", id).Msg("registered client")
	return id
}

// Attach binds a transport connection to the session, creating the entry if
// the (well-formed) id was never registered.
func (m *SessionManager) Attach(clientID string, conn ClientConn) (*ClientSession, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, ErrMalformedClientID
	}

	m.mu.Lock()
	session, ok := m.sessions[clientID]
	if !ok {
		session = &ClientSession{ID: clientID}
		m.sessions[clientID] = session
	}
	m.mu.Unlock()

	session.mu.Lock()
	prev := session.conn
	session.conn = conn
	session.mu.Unlock()

	if prev != nil {
		// The client reconnected over the old transport. Close the stale
		// connection; the session stays counted as one connected client.
		_ = prev.Close()
	} else {
		promclient.ConnectedClientsGauge.Inc()
	}
	return session, nil
}

// SetTask installs a new subscription task. Any previously active task is
// cancelled and awaited first, so two tasks never deliver to one connection.
func (m *SessionManager) SetTask(clientID string, task *Task) error {
	m.mu.RLock()
	session, ok := m.sessions[clientID]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return ErrSessionNotFound
	}
	prev := session.task
	session.task = nil
	session.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		// Disconnected while we waited; the caller must stop the new task.
		return ErrSessionNotFound
	}
	session.task = task
	return nil
}

// Disconnect cancels the active task, closes the connection, and drops the
// session. Idempotent: repeat calls and unknown ids are no-ops.
func (m *SessionManager) Disconnect(clientID string) {
	m.mu.Lock()
	session, ok := m.sessions[clientID]
	if ok {
		delete(m.sessions, clientID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return
	}
	session.closed = true
	task := session.task
	session.task = nil
	conn := session.conn
	session.mu.Unlock()

	// Close the transport first: it unblocks a task stuck writing to a
	// stalled client, so the await below always completes.
	if conn != nil {
		_ = conn.Close()
		promclient.ConnectedClientsGauge.Dec()
	}
	if task != nil {
		task.stop()
	}

	logger.Info().Str("client_id", clientID).Msg("client disconnected")
}

// SessionCount reports the number of live sessions.
func (m *SessionManager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
