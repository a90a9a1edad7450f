package presence

import (
	"context"
	"sync"
	"time"

	"MuseShare/logger"

	"github.com/gorilla/websocket"
)

// StateStore is the durable side of presence: which conversations each user
// has open right now, and when they were last seen. The message engine reads
// this set at send time to decide read-vs-unread.
type StateStore interface {
	AddActive(ctx context.Context, userID, conversationID string) error
	RemoveActive(ctx context.Context, userID, conversationID string) error
	IsActive(ctx context.Context, userID, conversationID string) (bool, error)
	ClearActive(ctx context.Context, userID string) error
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}

// FollowerSource resolves who follows a user, for follower fan-out.
type FollowerSource interface {
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// Conn is one live websocket. A user may hold several.
type Conn struct {
	ID     string
	UserID string // empty until authenticate

	ws *websocket.Conn
	mu sync.Mutex // serializes writes on the socket

	joined map[string]struct{} // conversation channels this conn subscribed to
}

func (c *Conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Manager is the presence service: live connection registry plus the three
// addressing primitives (user, conversation channel, followers). Lifecycle
// is owned by the server; inject it, never reach for a global.
type Manager struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Conn // userID -> connID -> conn
	byConv map[string]map[string]*Conn // conversationID -> connID -> conn

	state     StateStore
	followers FollowerSource

	stopOnce sync.Once
}

func NewManager(state StateStore, followers FollowerSource) *Manager {
	return &Manager{
		byUser:    make(map[string]map[string]*Conn),
		byConv:    make(map[string]map[string]*Conn),
		state:     state,
		followers: followers,
	}
}

// Close drops every live connection.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, conns := range m.byUser {
			for _, c := range conns {
				_ = c.ws.Close()
			}
		}
		m.byUser = make(map[string]map[string]*Conn)
		m.byConv = make(map[string]map[string]*Conn)
	})
}

// Authenticate binds the connection to a user and enrolls it in the user's
// personal channel.
func (m *Manager) Authenticate(c *Conn, userID string) {
	if userID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c.UserID = userID
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]*Conn)
	}
	m.byUser[userID][c.ID] = c
}

// JoinConversation records the conversation as actively open for the user
// (durably, via the state store) and subscribes the connection to the
// conversation's broadcast channel. Unauthenticated connections are ignored.
func (m *Manager) JoinConversation(ctx context.Context, c *Conn, conversationID string) error {
	if c.UserID == "" || conversationID == "" {
		return nil
	}
	if err := m.state.AddActive(ctx, c.UserID, conversationID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c.joined == nil {
		c.joined = make(map[string]struct{})
	}
	c.joined[conversationID] = struct{}{}
	if m.byConv[conversationID] == nil {
		m.byConv[conversationID] = make(map[string]*Conn)
	}
	m.byConv[conversationID][c.ID] = c
	return nil
}

// LeaveConversation is the inverse of JoinConversation.
func (m *Manager) LeaveConversation(ctx context.Context, c *Conn, conversationID string) error {
	if c.UserID == "" || conversationID == "" {
		return nil
	}
	if err := m.state.RemoveActive(ctx, c.UserID, conversationID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(c.joined, conversationID)
	if conns := m.byConv[conversationID]; conns != nil {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(m.byConv, conversationID)
		}
	}
	return nil
}

// Disconnect unregisters the connection. The user's active-conversation set
// is cleared only when this was their last live connection, so closing one
// tab does not mark conversations unviewed for a still-open tab.
func (m *Manager) Disconnect(ctx context.Context, c *Conn) {
	m.mu.Lock()
	for convID := range c.joined {
		if conns := m.byConv[convID]; conns != nil {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(m.byConv, convID)
			}
		}
	}
	c.joined = nil

	last := false
	if c.UserID != "" {
		if conns := m.byUser[c.UserID]; conns != nil {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(m.byUser, c.UserID)
				last = true
			}
		}
	}
	m.mu.Unlock()

	if c.UserID == "" {
		return
	}
	if last {
		if err := m.state.ClearActive(ctx, c.UserID); err != nil {
			logger.Warnf("[presence] clear active user=%s err=%v", c.UserID, err)
		}
		if err := m.state.TouchLastSeen(ctx, c.UserID, time.Now()); err != nil {
			logger.Warnf("[presence] touch last seen user=%s err=%v", c.UserID, err)
		}
	}
}

// IsViewing reports whether the user currently has the conversation open.
func (m *Manager) IsViewing(ctx context.Context, userID, conversationID string) (bool, error) {
	return m.state.IsActive(ctx, userID, conversationID)
}

// ConnCount returns the user's live connection count.
func (m *Manager) ConnCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

// SendToUser delivers an event to every live connection of one user.
// Best-effort: failures are logged, never returned as API errors.
func (m *Manager) SendToUser(userID, event string, payload any) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		logger.Errorf("[presence] encode %s: %v", event, err)
		return
	}

	m.mu.RLock()
	conns := make([]*Conn, 0, len(m.byUser[userID]))
	for _, c := range m.byUser[userID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			logger.Warnf("[presence] send %s to user=%s conn=%s err=%v", event, userID, c.ID, err)
		}
	}
}

// SendToConversation delivers an event to every connection subscribed to the
// conversation channel, skipping connections of users in except.
func (m *Manager) SendToConversation(conversationID, event string, payload any, except ...string) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		logger.Errorf("[presence] encode %s: %v", event, err)
		return
	}
	skip := make(map[string]struct{}, len(except))
	for _, u := range except {
		skip[u] = struct{}{}
	}

	m.mu.RLock()
	conns := make([]*Conn, 0, len(m.byConv[conversationID]))
	for _, c := range m.byConv[conversationID] {
		if _, ok := skip[c.UserID]; ok {
			continue
		}
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			logger.Warnf("[presence] send %s to conv=%s conn=%s err=%v", event, conversationID, c.ID, err)
		}
	}
}

// SendToFollowers delivers an event to all live followers of a user.
func (m *Manager) SendToFollowers(ctx context.Context, userID, event string, payload any) {
	if m.followers == nil {
		return
	}
	ids, err := m.followers.FollowerIDs(ctx, userID)
	if err != nil {
		logger.Warnf("[presence] followers of %s: %v", userID, err)
		return
	}
	for _, id := range ids {
		m.SendToUser(id, event, payload)
	}
}
