package chat

import (
	"context"
	"errors"
	"time"

	"MuseShare/module/chat/model"
	chatservice "MuseShare/module/chat/service"
	notimodel "MuseShare/module/notification/model"
	trackmodel "MuseShare/module/track/model"
	"MuseShare/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoStore implements the engine's Store on MongoDB. Callers pass a
// session-bound ctx when running inside a transaction.
type mongoStore struct{}

func NewStore() chatservice.Store {
	return &mongoStore{}
}

func (s *mongoStore) FindConversationByParticipants(ctx context.Context, participantIDs []string) (*model.Conversation, error) {
	var conv model.Conversation
	filter := bson.M{"participants": bson.M{
		"$all":  participantIDs,
		"$size": len(participantIDs),
	}}
	err := conv.Collection().FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find conversation by participants", "err", err)
	}
	return &conv, nil
}

func (s *mongoStore) FindConversationByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := conv.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find conversation", "id", id, "err", err)
	}
	return &conv, nil
}

func (s *mongoStore) InsertConversation(ctx context.Context, conv *model.Conversation) error {
	if _, err := conv.Collection().InsertOne(ctx, conv); err != nil {
		return errs.ErrStore.WrapMsg("insert conversation", "err", err)
	}
	return nil
}

func (s *mongoStore) UpdateConversationOnSend(ctx context.Context, conv *model.Conversation) error {
	update := bson.M{"$set": bson.M{
		"last_message_id": conv.LastMessageID,
		"unread_count":    conv.UnreadCount,
		"updated_at":      conv.UpdatedAt,
	}}
	res, err := conv.Collection().UpdateByID(ctx, conv.ID, update)
	if err != nil {
		return errs.ErrStore.WrapMsg("update conversation", "id", conv.ID, "err", err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrInvariant.WrapMsg("conversation vanished mid-transaction", "id", conv.ID)
	}
	return nil
}

func (s *mongoStore) ResetUnread(ctx context.Context, conversationID, userID string) error {
	var conv model.Conversation
	update := bson.M{"$set": bson.M{
		"unread_count." + userID: int64(0),
		"updated_at":             time.Now(),
	}}
	if _, err := conv.Collection().UpdateByID(ctx, conversationID, update); err != nil {
		return errs.ErrStore.WrapMsg("reset unread", "conversation", conversationID, "user", userID, "err", err)
	}
	return nil
}

func (s *mongoStore) InsertUserConversations(ctx context.Context, rows []*model.UserConversation) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]any, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r)
	}
	var uc model.UserConversation
	if _, err := uc.Collection().InsertMany(ctx, docs); err != nil {
		return errs.ErrStore.WrapMsg("insert user conversations", "err", err)
	}
	return nil
}

func (s *mongoStore) FindUserConversation(ctx context.Context, userID, conversationID string) (*model.UserConversation, error) {
	var uc model.UserConversation
	filter := bson.M{"user_id": userID, "conversation_id": conversationID}
	err := uc.Collection().FindOne(ctx, filter).Decode(&uc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find user conversation", "user", userID, "err", err)
	}
	return &uc, nil
}

func (s *mongoStore) ListUserConversations(ctx context.Context, userID string) ([]*model.UserConversation, error) {
	var uc model.UserConversation
	cur, err := uc.Collection().Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("list user conversations", "user", userID, "err", err)
	}
	var rows []*model.UserConversation
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrStore.WrapMsg("decode user conversations", "user", userID, "err", err)
	}
	return rows, nil
}

func (s *mongoStore) SetUserConversationDeleted(ctx context.Context, userID, conversationID string, at time.Time) error {
	var uc model.UserConversation
	filter := bson.M{"user_id": userID, "conversation_id": conversationID}
	update := bson.M{"$set": bson.M{"deleted_at": at, "updated_at": at}}
	if _, err := uc.Collection().UpdateOne(ctx, filter, update); err != nil {
		return errs.ErrStore.WrapMsg("soft delete user conversation", "user", userID, "err", err)
	}
	return nil
}

func (s *mongoStore) InsertMessage(ctx context.Context, msg *model.Message) error {
	if _, err := msg.Collection().InsertOne(ctx, msg); err != nil {
		return errs.ErrStore.WrapMsg("insert message", "err", err)
	}
	return nil
}

func (s *mongoStore) FindMessage(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := msg.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find message", "id", id, "err", err)
	}
	return &msg, nil
}

func messageVisibilityFilter(conversationID string, after *time.Time) bson.M {
	filter := bson.M{"conversation_id": conversationID}
	if after != nil {
		filter["created_at"] = bson.M{"$gt": *after}
	}
	return filter
}

func (s *mongoStore) MarkMessagesRead(ctx context.Context, conversationID, userID string, after *time.Time) error {
	var msg model.Message
	filter := messageVisibilityFilter(conversationID, after)
	filter["read_by"] = bson.M{"$ne": userID}
	update := bson.M{"$addToSet": bson.M{"read_by": userID}}
	if _, err := msg.Collection().UpdateMany(ctx, filter, update); err != nil {
		return errs.ErrStore.WrapMsg("mark messages read", "conversation", conversationID, "user", userID, "err", err)
	}
	return nil
}

func (s *mongoStore) ListMessages(ctx context.Context, conversationID string, after *time.Time, page, limit int64) ([]*model.Message, int64, error) {
	var msg model.Message
	filter := messageVisibilityFilter(conversationID, after)

	total, err := msg.Collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errs.ErrStore.WrapMsg("count messages", "conversation", conversationID, "err", err)
	}

	cur, err := msg.Collection().Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page-1)*limit).
		SetLimit(limit))
	if err != nil {
		return nil, 0, errs.ErrStore.WrapMsg("list messages", "conversation", conversationID, "err", err)
	}
	var msgs []*model.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, 0, errs.ErrStore.WrapMsg("decode messages", "conversation", conversationID, "err", err)
	}
	return msgs, total, nil
}

func (s *mongoStore) InsertNotification(ctx context.Context, n *notimodel.Notification) error {
	if _, err := n.Collection().InsertOne(ctx, n); err != nil {
		return errs.ErrStore.WrapMsg("insert notification", "err", err)
	}
	return nil
}

func (s *mongoStore) FindHistory(ctx context.Context, id string) (*trackmodel.History, error) {
	var h trackmodel.History
	err := h.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(&h)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find history", "id", id, "err", err)
	}
	return &h, nil
}
