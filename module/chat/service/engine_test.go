package service

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"MuseShare/module/chat/model"
	notimodel "MuseShare/module/notification/model"
	trackmodel "MuseShare/module/track/model"
	"MuseShare/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	convs map[string]*model.Conversation
	ucs   []*model.UserConversation
	msgs  []*model.Message
	notis []*notimodel.Notification
	hist  map[string]*trackmodel.History
}

func newMemStore() *memStore {
	return &memStore{
		convs: map[string]*model.Conversation{},
		hist:  map[string]*trackmodel.History{},
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string{}, a...)
	y := append([]string{}, b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func (s *memStore) FindConversationByParticipants(_ context.Context, participantIDs []string) (*model.Conversation, error) {
	for _, c := range s.convs {
		if sameSet(c.Participants, participantIDs) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindConversationByID(_ context.Context, id string) (*model.Conversation, error) {
	return s.convs[id], nil
}

func (s *memStore) InsertConversation(_ context.Context, conv *model.Conversation) error {
	s.convs[conv.ID] = conv
	return nil
}

func (s *memStore) UpdateConversationOnSend(_ context.Context, conv *model.Conversation) error {
	s.convs[conv.ID] = conv
	return nil
}

func (s *memStore) ResetUnread(_ context.Context, conversationID, userID string) error {
	if c := s.convs[conversationID]; c != nil {
		c.SetUnread(userID, 0)
	}
	return nil
}

func (s *memStore) InsertUserConversations(_ context.Context, rows []*model.UserConversation) error {
	s.ucs = append(s.ucs, rows...)
	return nil
}

func (s *memStore) FindUserConversation(_ context.Context, userID, conversationID string) (*model.UserConversation, error) {
	for _, uc := range s.ucs {
		if uc.UserID == userID && uc.ConversationID == conversationID {
			return uc, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListUserConversations(_ context.Context, userID string) ([]*model.UserConversation, error) {
	var out []*model.UserConversation
	for _, uc := range s.ucs {
		if uc.UserID == userID {
			out = append(out, uc)
		}
	}
	return out, nil
}

func (s *memStore) SetUserConversationDeleted(_ context.Context, userID, conversationID string, at time.Time) error {
	for _, uc := range s.ucs {
		if uc.UserID == userID && uc.ConversationID == conversationID {
			t := at
			uc.DeletedAt = &t
		}
	}
	return nil
}

func (s *memStore) InsertMessage(_ context.Context, msg *model.Message) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *memStore) FindMessage(_ context.Context, id string) (*model.Message, error) {
	for _, m := range s.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (s *memStore) MarkMessagesRead(_ context.Context, conversationID, userID string, after *time.Time) error {
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if after != nil && !m.CreatedAt.After(*after) {
			continue
		}
		if !m.ReadByUser(userID) {
			m.ReadBy = append(m.ReadBy, userID)
		}
	}
	return nil
}

func (s *memStore) ListMessages(_ context.Context, conversationID string, after *time.Time, page, limit int64) ([]*model.Message, int64, error) {
	var visible []*model.Message
	for _, m := range s.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if after != nil && !m.CreatedAt.After(*after) {
			continue
		}
		visible = append(visible, m)
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].CreatedAt.After(visible[j].CreatedAt) })
	total := int64(len(visible))
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return visible[start:end], total, nil
}

func (s *memStore) InsertNotification(_ context.Context, n *notimodel.Notification) error {
	s.notis = append(s.notis, n)
	return nil
}

func (s *memStore) FindHistory(_ context.Context, id string) (*trackmodel.History, error) {
	return s.hist[id], nil
}

// nopTx runs the function directly; the memory store has no transactions.
type nopTx struct{}

func (nopTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memViewer answers IsViewing from a static map.
type memViewer struct {
	viewing map[string]string // userID -> conversationID currently open
}

func (v *memViewer) IsViewing(_ context.Context, userID, conversationID string) (bool, error) {
	return v.viewing[userID] == conversationID, nil
}

func newTestEngine(store *memStore, viewer *memViewer) *Engine {
	e := NewEngine(store, nopTx{}, viewer)
	var seq int
	e.newID = func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks int
	e.clock = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	return e
}

func TestGetOrCreateConversationIdempotent(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, created, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob", "carol"})
	require.NoError(t, err)
	require.True(t, created)
	require.ElementsMatch(t, []string{"alice", "bob", "carol"}, conv.Participants)
	for _, p := range conv.Participants {
		assert.Zero(t, conv.UnreadFor(p))
	}
	assert.Len(t, store.ucs, 3)

	// same set, different requester and order
	again, created, err := e.GetOrCreateConversation(ctx, "carol", []string{"alice", "bob", "alice"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)
	assert.Len(t, store.ucs, 3)
}

func TestGetOrCreateConversationNeedsTwoParticipants(t *testing.T) {
	e := newTestEngine(newMemStore(), &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	_, _, err := e.GetOrCreateConversation(ctx, "alice", nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrValidation))

	_, _, err = e.GetOrCreateConversation(ctx, "alice", []string{"alice", ""})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func TestSendMessageSplitsByViewingState(t *testing.T) {
	store := newMemStore()
	viewer := &memViewer{viewing: map[string]string{}}
	e := newTestEngine(store, viewer)
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob", "carol"})
	require.NoError(t, err)

	// carol has the conversation open, bob does not
	viewer.viewing["carol"] = conv.ID

	msg, effects, err := e.SendMessage(ctx, "alice", SendMessageInput{
		ConversationID: conv.ID,
		Text:           "hey",
	})
	require.NoError(t, err)

	assert.True(t, msg.ReadByUser("alice"))
	assert.True(t, msg.ReadByUser("carol"))
	assert.False(t, msg.ReadByUser("bob"))

	got := store.convs[conv.ID]
	assert.EqualValues(t, 0, got.UnreadFor("alice"))
	assert.EqualValues(t, 0, got.UnreadFor("carol"))
	assert.EqualValues(t, 1, got.UnreadFor("bob"))
	assert.Equal(t, msg.ID, got.LastMessageID)

	require.Len(t, store.notis, 1)
	n := store.notis[0]
	assert.Equal(t, "bob", n.Recipient)
	assert.Equal(t, notimodel.TypeNewMessage, n.Type)
	assert.Equal(t, "hey", n.Content)

	var toBob, toConv, updated int
	for _, ef := range effects {
		switch ef.Event {
		case "newNotification":
			assert.Equal(t, "bob", ef.ToUser)
			toBob++
		case "newMessage":
			assert.Equal(t, conv.ID, ef.ToConversation)
			toConv++
		case "conversationUpdated":
			updated++
		}
	}
	assert.Equal(t, 1, toBob)
	assert.Equal(t, 1, toConv)
	assert.Equal(t, 3, updated)
}

func TestSendMessageUnreadAccumulates(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID, Text: "m"})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, store.convs[conv.ID].UnreadFor("bob"))
	assert.EqualValues(t, 0, store.convs[conv.ID].UnreadFor("alice"))
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)

	_, _, err = e.SendMessage(ctx, "mallory", SendMessageInput{ConversationID: conv.ID, Text: "hi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrNoPermission))
	assert.Empty(t, store.msgs)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	e := newTestEngine(newMemStore(), &memViewer{viewing: map[string]string{}})

	_, _, err := e.SendMessage(context.Background(), "alice", SendMessageInput{ConversationID: "nope", Text: "hi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrRecordNotFound))
}

func TestSendMessageAttachmentFallbackContent(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)

	_, _, err = e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID})
	require.NoError(t, err)
	require.Len(t, store.notis, 1)
	assert.Equal(t, "Sent an attachment", store.notis[0].Content)
}

func TestSendMessageImplicitConversation(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	msg, _, err := e.SendMessage(ctx, "alice", SendMessageInput{
		ParticipantIDs: []string{"bob"},
		Text:           "first",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ConversationID)
	conv := store.convs[msg.ConversationID]
	require.NotNil(t, conv)
	assert.ElementsMatch(t, []string{"alice", "bob"}, conv.Participants)

	// second implicit send reuses the conversation
	msg2, _, err := e.SendMessage(ctx, "bob", SendMessageInput{
		ParticipantIDs: []string{"alice"},
		Text:           "second",
	})
	require.NoError(t, err)
	assert.Equal(t, msg.ConversationID, msg2.ConversationID)
}

func TestReplyFeedRules(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	store.hist["h1"] = &trackmodel.History{ID: "h1", UserID: "bob", TrackID: "t1"}
	store.hist["own"] = &trackmodel.History{ID: "own", UserID: "alice", TrackID: "t2"}

	// unknown feed
	_, _, err := e.SendMessage(ctx, "alice", SendMessageInput{ParticipantIDs: []string{"bob"}, Text: "x", RepliedFeedID: "missing"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrValidation))

	// own feed
	_, _, err = e.SendMessage(ctx, "alice", SendMessageInput{ParticipantIDs: []string{"bob"}, Text: "x", RepliedFeedID: "own"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrValidation))

	// feed owner must be in the target conversation
	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"carol"})
	require.NoError(t, err)
	_, _, err = e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID, Text: "x", RepliedFeedID: "h1"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrValidation))

	// valid reply produces a REPLY_FEED notification
	msg, _, err := e.SendMessage(ctx, "alice", SendMessageInput{ParticipantIDs: []string{"bob"}, Text: "nice track", RepliedFeedID: "h1"})
	require.NoError(t, err)
	assert.Equal(t, "h1", msg.RepliedFeedID)
	require.Len(t, store.notis, 1)
	assert.Equal(t, notimodel.TypeReplyFeed, store.notis[0].Type)
	assert.Equal(t, "bob", store.notis[0].Recipient)
}

func TestGetMessagesMarksReadAndResetsUnread(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _, err := e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID, Text: "m"})
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, store.convs[conv.ID].UnreadFor("bob"))

	page, err := e.GetMessages(ctx, "bob", conv.ID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.TotalMessages)
	assert.EqualValues(t, 1, page.TotalPages)
	require.Len(t, page.Messages, 3)
	for _, m := range page.Messages {
		assert.True(t, m.ReadByUser("bob"))
	}
	// newest first
	assert.True(t, page.Messages[0].CreatedAt.After(page.Messages[2].CreatedAt))
	assert.EqualValues(t, 0, store.convs[conv.ID].UnreadFor("bob"))
}

func TestGetMessagesPagination(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _, err := e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID, Text: "m"})
		require.NoError(t, err)
	}

	page, err := e.GetMessages(ctx, "bob", conv.ID, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.TotalMessages)
	assert.EqualValues(t, 3, page.TotalPages)
	assert.Len(t, page.Messages, 2)
}

func TestGetMessagesAuthz(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)

	_, err = e.GetMessages(ctx, "mallory", conv.ID, 1, 20)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrNoPermission))

	_, err = e.GetMessages(ctx, "alice", "nope", 1, 20)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrRecordNotFound))
}

func TestDeleteConversationHidesUntilNewMessage(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &memViewer{viewing: map[string]string{}})
	ctx := context.Background()

	conv, _, err := e.GetOrCreateConversation(ctx, "alice", []string{"bob"})
	require.NoError(t, err)
	_, _, err = e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID, Text: "before"})
	require.NoError(t, err)

	effects, err := e.DeleteConversation(ctx, "bob", conv.ID)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, "conversationDeleted", effects[0].Event)
	assert.Equal(t, "bob", effects[0].ToUser)

	// hidden for bob, still visible for alice
	bobInbox, err := e.ListConversations(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobInbox)
	aliceInbox, err := e.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, aliceInbox, 1)

	// pre-delete history stays hidden for bob
	page, err := e.GetMessages(ctx, "bob", conv.ID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.TotalMessages)

	// a newer message makes the conversation reappear with only new history
	_, _, err = e.SendMessage(ctx, "alice", SendMessageInput{ConversationID: conv.ID, Text: "after"})
	require.NoError(t, err)

	bobInbox, err = e.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobInbox, 1)

	page, err = e.GetMessages(ctx, "bob", conv.ID, 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, page.TotalMessages)
	assert.Equal(t, "after", page.Messages[0].Text)
}

func TestDeleteConversationUnknown(t *testing.T) {
	e := newTestEngine(newMemStore(), &memViewer{viewing: map[string]string{}})

	_, err := e.DeleteConversation(context.Background(), "alice", "nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrRecordNotFound))
}
