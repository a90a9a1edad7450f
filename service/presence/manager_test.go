package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memState is an in-memory StateStore.
type memState struct {
	mu       sync.Mutex
	active   map[string]map[string]struct{}
	lastSeen map[string]time.Time
}

func newMemState() *memState {
	return &memState{
		active:   map[string]map[string]struct{}{},
		lastSeen: map[string]time.Time{},
	}
}

func (s *memState) AddActive(_ context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[userID] == nil {
		s.active[userID] = map[string]struct{}{}
	}
	s.active[userID][conversationID] = struct{}{}
	return nil
}

func (s *memState) RemoveActive(_ context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active[userID], conversationID)
	return nil
}

func (s *memState) IsActive(_ context.Context, userID, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[userID][conversationID]
	return ok, nil
}

func (s *memState) ClearActive(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userID)
	return nil
}

func (s *memState) TouchLastSeen(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[userID] = at
	return nil
}

type memFollowers struct {
	followers map[string][]string
}

func (f *memFollowers) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	return f.followers[userID], nil
}

func TestJoinLeaveTracksViewingState(t *testing.T) {
	state := newMemState()
	m := NewManager(state, &memFollowers{})
	ctx := context.Background()

	c := &Conn{ID: "c1"}
	m.Authenticate(c, "alice")
	assert.Equal(t, 1, m.ConnCount("alice"))

	require.NoError(t, m.JoinConversation(ctx, c, "conv1"))
	viewing, err := m.IsViewing(ctx, "alice", "conv1")
	require.NoError(t, err)
	assert.True(t, viewing)

	viewing, err = m.IsViewing(ctx, "alice", "conv2")
	require.NoError(t, err)
	assert.False(t, viewing)

	require.NoError(t, m.LeaveConversation(ctx, c, "conv1"))
	viewing, err = m.IsViewing(ctx, "alice", "conv1")
	require.NoError(t, err)
	assert.False(t, viewing)
}

func TestJoinIgnoredBeforeAuthenticate(t *testing.T) {
	state := newMemState()
	m := NewManager(state, &memFollowers{})
	ctx := context.Background()

	c := &Conn{ID: "c1"}
	require.NoError(t, m.JoinConversation(ctx, c, "conv1"))

	viewing, err := m.IsViewing(ctx, "", "conv1")
	require.NoError(t, err)
	assert.False(t, viewing)
	assert.Empty(t, state.active)
}

func TestDisconnectClearsActiveState(t *testing.T) {
	state := newMemState()
	m := NewManager(state, &memFollowers{})
	ctx := context.Background()

	c := &Conn{ID: "c1"}
	m.Authenticate(c, "alice")
	require.NoError(t, m.JoinConversation(ctx, c, "conv1"))

	m.Disconnect(ctx, c)

	assert.Equal(t, 0, m.ConnCount("alice"))
	viewing, err := m.IsViewing(ctx, "alice", "conv1")
	require.NoError(t, err)
	assert.False(t, viewing)
	_, seen := state.lastSeen["alice"]
	assert.True(t, seen)
}

func TestDisconnectOnlyLastConnectionClears(t *testing.T) {
	state := newMemState()
	m := NewManager(state, &memFollowers{})
	ctx := context.Background()

	// two tabs of the same user, both viewing conv1
	tab1 := &Conn{ID: "c1"}
	tab2 := &Conn{ID: "c2"}
	m.Authenticate(tab1, "alice")
	m.Authenticate(tab2, "alice")
	require.NoError(t, m.JoinConversation(ctx, tab1, "conv1"))
	require.NoError(t, m.JoinConversation(ctx, tab2, "conv1"))
	assert.Equal(t, 2, m.ConnCount("alice"))

	// closing one tab must not mark conv1 unviewed for the other
	m.Disconnect(ctx, tab1)
	assert.Equal(t, 1, m.ConnCount("alice"))
	viewing, err := m.IsViewing(ctx, "alice", "conv1")
	require.NoError(t, err)
	assert.True(t, viewing)
	_, seen := state.lastSeen["alice"]
	assert.False(t, seen)

	// the last tab going away clears everything
	m.Disconnect(ctx, tab2)
	assert.Equal(t, 0, m.ConnCount("alice"))
	viewing, err = m.IsViewing(ctx, "alice", "conv1")
	require.NoError(t, err)
	assert.False(t, viewing)
}

func TestDisconnectUnauthenticatedConn(t *testing.T) {
	state := newMemState()
	m := NewManager(state, &memFollowers{})

	c := &Conn{ID: "c1"}
	m.Disconnect(context.Background(), c)

	assert.Empty(t, state.active)
	assert.Empty(t, state.lastSeen)
}

func TestFrameRoundTrip(t *testing.T) {
	data, err := EncodeFrame(EventNewMessage, map[string]string{"conversationId": "conv1"})
	require.NoError(t, err)

	f, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, f.Event)
	assert.Contains(t, string(f.Data), "conv1")

	_, err = ParseFrame([]byte("not json"))
	assert.Error(t, err)
}
