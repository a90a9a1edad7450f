package service

import (
	"context"
	"sort"
	"time"

	"MuseShare/data/database/utils/tx"
	"MuseShare/module/chat/model"
	notimodel "MuseShare/module/notification/model"
	trackmodel "MuseShare/module/track/model"
	"MuseShare/tools/errs"
	"MuseShare/tools/ids"
	"MuseShare/tools/safe"
)

// Store is everything the engine needs from the durable store. All methods
// participate in whatever transaction the ctx carries.
type Store interface {
	FindConversationByParticipants(ctx context.Context, participantIDs []string) (*model.Conversation, error) // nil, nil when absent
	FindConversationByID(ctx context.Context, id string) (*model.Conversation, error)
	InsertConversation(ctx context.Context, conv *model.Conversation) error
	UpdateConversationOnSend(ctx context.Context, conv *model.Conversation) error
	ResetUnread(ctx context.Context, conversationID, userID string) error

	InsertUserConversations(ctx context.Context, rows []*model.UserConversation) error
	FindUserConversation(ctx context.Context, userID, conversationID string) (*model.UserConversation, error) // nil, nil when absent
	ListUserConversations(ctx context.Context, userID string) ([]*model.UserConversation, error)
	SetUserConversationDeleted(ctx context.Context, userID, conversationID string, at time.Time) error

	InsertMessage(ctx context.Context, msg *model.Message) error
	FindMessage(ctx context.Context, id string) (*model.Message, error) // nil, nil when absent
	MarkMessagesRead(ctx context.Context, conversationID, userID string, after *time.Time) error
	ListMessages(ctx context.Context, conversationID string, after *time.Time, page, limit int64) ([]*model.Message, int64, error)

	InsertNotification(ctx context.Context, n *notimodel.Notification) error
	FindHistory(ctx context.Context, id string) (*trackmodel.History, error) // nil, nil when absent
}

// Viewer answers "does this user have this conversation open right now":
// the presence service in production, a fake in tests.
type Viewer interface {
	IsViewing(ctx context.Context, userID, conversationID string) (bool, error)
}

// Effect is a live delivery to perform after commit. Effects are plain
// data: the transactional phase produces them, the handler hands them to
// the presence service best-effort once the durable state is final.
type Effect struct {
	ToUser         string // personal channel target, mutually exclusive with ToConversation
	ToConversation string
	Event          string
	Payload        any
}

// Engine orchestrates conversations, messages, unread counts, read
// receipts and notification fan-out.
type Engine struct {
	store  Store
	tx     tx.Tx
	viewer Viewer

	clock func() time.Time
	newID func() string
}

func NewEngine(store Store, txr tx.Tx, viewer Viewer) *Engine {
	safe.MustNotNil(store, "store")
	safe.MustNotNil(txr, "tx")
	safe.MustNotNil(viewer, "viewer")
	return &Engine{
		store:  store,
		tx:     txr,
		viewer: viewer,
		clock:  time.Now,
		newID:  ids.GenerateString,
	}
}

// normalizeParticipants makes sure the requester is included, dedupes, and
// sorts so equal sets always produce the same slice.
func normalizeParticipants(requester string, participantIDs []string) ([]string, error) {
	seen := map[string]struct{}{requester: {}}
	out := []string{requester}
	for _, id := range participantIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) < 2 {
		return nil, errs.ErrValidation.WithDetail("at least two unique participants are required")
	}
	sort.Strings(out)
	return out, nil
}

// GetOrCreateConversation returns the conversation with exactly this
// participant set, creating it (plus one UserConversation row per
// participant) atomically when absent. Idempotent for equal sets in any
// order.
func (e *Engine) GetOrCreateConversation(ctx context.Context, requester string, participantIDs []string) (*model.Conversation, bool, error) {
	participants, err := normalizeParticipants(requester, participantIDs)
	if err != nil {
		return nil, false, err
	}

	var (
		conv    *model.Conversation
		created bool
	)
	err = e.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		conv, created, err = e.getOrCreateConversationTx(ctx, participants)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

func (e *Engine) getOrCreateConversationTx(ctx context.Context, participants []string) (*model.Conversation, bool, error) {
	existing, err := e.store.FindConversationByParticipants(ctx, participants)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := e.clock()
	conv := &model.Conversation{
		ID:           e.newID(),
		Participants: participants,
		UnreadCount:  make(map[string]int64, len(participants)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rows := make([]*model.UserConversation, 0, len(participants))
	for _, p := range participants {
		conv.UnreadCount[p] = 0
		rows = append(rows, &model.UserConversation{
			ID:             e.newID(),
			UserID:         p,
			ConversationID: conv.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if err := e.store.InsertConversation(ctx, conv); err != nil {
		return nil, false, err
	}
	if err := e.store.InsertUserConversations(ctx, rows); err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// SendMessageInput is the POST /messages body plus the resolved sender.
type SendMessageInput struct {
	ConversationID string   `json:"conversationId"`
	ParticipantIDs []string `json:"participantIds"`
	Text           string   `json:"text"`
	RepliedFeedID  string   `json:"repliedFeedId"`
}

// SendMessage creates the message, updates unread counts and read receipts
// by live-viewing state, and writes notifications for non-viewing
// participants, all in one transaction. Returns the effects to deliver
// post-commit.
func (e *Engine) SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*model.Message, []Effect, error) {
	var participants []string
	if in.ConversationID == "" {
		if len(in.ParticipantIDs) == 0 {
			return nil, nil, errs.ErrValidation.WithDetail("participantIds is required when no conversationId provided")
		}
		var err error
		participants, err = normalizeParticipants(senderID, in.ParticipantIDs)
		if err != nil {
			return nil, nil, err
		}
	}

	var (
		msg     *model.Message
		effects []Effect
	)
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		var (
			conv    *model.Conversation
			created bool
			err     error
		)
		if in.ConversationID == "" {
			conv, created, err = e.getOrCreateConversationTx(ctx, participants)
			if err != nil {
				return err
			}
		} else {
			conv, err = e.store.FindConversationByID(ctx, in.ConversationID)
			if err != nil {
				return err
			}
			if conv == nil {
				return errs.ErrRecordNotFound.WithDetail("conversation not found")
			}
			if !conv.HasParticipant(senderID) {
				return errs.ErrNoPermission.WithDetail("sender is not a participant")
			}
		}

		notiType := notimodel.TypeNewMessage
		if in.RepliedFeedID != "" {
			if err := e.checkRepliedFeed(ctx, senderID, in.RepliedFeedID, conv, created); err != nil {
				return err
			}
			notiType = notimodel.TypeReplyFeed
		}

		now := e.clock()
		msg = &model.Message{
			ID:             e.newID(),
			ConversationID: conv.ID,
			Sender:         senderID,
			Text:           in.Text,
			ReadBy:         []string{senderID},
			RepliedFeedID:  in.RepliedFeedID,
			CreatedAt:      now,
		}

		// split recipients by whether they have the conversation open at
		// this moment
		var notify []string
		for _, p := range conv.Participants {
			if p == senderID {
				continue
			}
			viewing, err := e.viewer.IsViewing(ctx, p, conv.ID)
			if err != nil {
				return err
			}
			if viewing {
				msg.ReadBy = append(msg.ReadBy, p)
				conv.SetUnread(p, 0)
			} else {
				conv.SetUnread(p, conv.UnreadFor(p)+1)
				notify = append(notify, p)
			}
		}
		conv.SetUnread(senderID, 0)

		if err := e.store.InsertMessage(ctx, msg); err != nil {
			return err
		}
		conv.LastMessageID = msg.ID
		conv.UpdatedAt = now
		if err := e.store.UpdateConversationOnSend(ctx, conv); err != nil {
			return err
		}

		content := in.Text
		if content == "" {
			content = "Sent an attachment"
		}
		for _, recipient := range notify {
			n := &notimodel.Notification{
				ID:             e.newID(),
				Recipient:      recipient,
				Sender:         senderID,
				Type:           notiType,
				Content:        content,
				ConversationID: conv.ID,
				MessageID:      msg.ID,
				CreatedAt:      now,
			}
			if err := e.store.InsertNotification(ctx, n); err != nil {
				return err
			}
			effects = append(effects, Effect{ToUser: recipient, Event: "newNotification", Payload: n})
		}

		effects = append(effects, Effect{
			ToConversation: conv.ID,
			Event:          "newMessage",
			Payload:        map[string]any{"conversationId": conv.ID, "message": msg},
		})
		for _, p := range conv.Participants {
			effects = append(effects, Effect{ToUser: p, Event: "conversationUpdated", Payload: conv})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, effects, nil
}

// checkRepliedFeed enforces the feed-reply rules: the history record must
// exist, must not be the sender's own, and (when replying into an existing
// conversation) its owner must already be a participant.
func (e *Engine) checkRepliedFeed(ctx context.Context, senderID, historyID string, conv *model.Conversation, created bool) error {
	h, err := e.store.FindHistory(ctx, historyID)
	if err != nil {
		return err
	}
	if h == nil {
		return errs.ErrValidation.WithDetail("replied feed not found")
	}
	if h.UserID == senderID {
		return errs.ErrValidation.WithDetail("cannot reply to your own feed")
	}
	if !created && !conv.HasParticipant(h.UserID) {
		return errs.ErrValidation.WithDetail("feed owner is not a participant")
	}
	return nil
}

// MessagesPage is what GetMessages returns.
type MessagesPage struct {
	Messages      []*model.Message `json:"messages"`
	Page          int64            `json:"page"`
	Limit         int64            `json:"limit"`
	TotalPages    int64            `json:"totalPages"`
	TotalMessages int64            `json:"totalMessages"`
}

// GetMessages returns one page of the conversation, newest first, after
// marking every currently-visible message read for the caller and resetting
// their unread count in one transaction, so the reset and the read marking
// can never diverge. Messages older than the caller's soft-delete floor are
// hidden.
func (e *Engine) GetMessages(ctx context.Context, userID, conversationID string, page, limit int64) (*MessagesPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var out *MessagesPage
	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		conv, err := e.store.FindConversationByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return errs.ErrRecordNotFound.WithDetail("conversation not found")
		}
		if !conv.HasParticipant(userID) {
			return errs.ErrNoPermission.WithDetail("not a participant")
		}
		uc, err := e.store.FindUserConversation(ctx, userID, conversationID)
		if err != nil {
			return err
		}
		if uc == nil {
			return errs.ErrRecordNotFound.WithDetail("user conversation not found")
		}

		// soft-deleted history stays hidden until overtaken by new messages
		floor := uc.DeletedAt

		if err := e.store.MarkMessagesRead(ctx, conversationID, userID, floor); err != nil {
			return err
		}
		if err := e.store.ResetUnread(ctx, conversationID, userID); err != nil {
			return err
		}

		msgs, total, err := e.store.ListMessages(ctx, conversationID, floor, page, limit)
		if err != nil {
			return err
		}
		out = &MessagesPage{
			Messages:      msgs,
			Page:          page,
			Limit:         limit,
			TotalPages:    (total + limit - 1) / limit,
			TotalMessages: total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListConversations returns the caller's inbox, filtered by the per-user
// visibility predicate: deleted conversations reappear once their last
// message is newer than the delete mark.
func (e *Engine) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	rows, err := e.store.ListUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Conversation, 0, len(rows))
	for _, uc := range rows {
		conv, err := e.store.FindConversationByID(ctx, uc.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			continue
		}
		var lastAt time.Time
		if conv.LastMessageID != "" {
			last, err := e.store.FindMessage(ctx, conv.LastMessageID)
			if err != nil {
				return nil, err
			}
			if last != nil {
				lastAt = last.CreatedAt
			}
		}
		if uc.VisibleWith(lastAt) {
			out = append(out, conv)
		}
	}
	return out, nil
}

// DeleteConversation soft-deletes the conversation for the caller only and
// emits a conversationDeleted effect to their own channel.
func (e *Engine) DeleteConversation(ctx context.Context, userID, conversationID string) ([]Effect, error) {
	uc, err := e.store.FindUserConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if uc == nil {
		return nil, errs.ErrRecordNotFound.WithDetail("conversation not found")
	}
	if err := e.store.SetUserConversationDeleted(ctx, userID, conversationID, e.clock()); err != nil {
		return nil, err
	}
	return []Effect{{
		ToUser:  userID,
		Event:   "conversationDeleted",
		Payload: map[string]any{"conversationId": conversationID},
	}}, nil
}
