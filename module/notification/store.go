package notification

import (
	"context"

	"MuseShare/module/notification/model"
	"MuseShare/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists notifications. Every mutating query is scoped to the
// recipient, so a user can never touch someone else's rows.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Insert(ctx context.Context, n *model.Notification) error {
	if _, err := n.Collection().InsertOne(ctx, n); err != nil {
		return errs.ErrStore.WrapMsg("insert notification", "err", err)
	}
	return nil
}

// List returns the recipient's notifications, newest first.
func (s *Store) List(ctx context.Context, recipient string, limit int64) ([]*model.Notification, error) {
	var n model.Notification
	cur, err := n.Collection().Find(ctx, bson.M{"recipient": recipient}, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("list notifications", "recipient", recipient, "err", err)
	}
	var rows []*model.Notification
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrStore.WrapMsg("decode notifications", "recipient", recipient, "err", err)
	}
	return rows, nil
}

// MarkRead flips one notification; ok=false when it does not exist or
// belongs to someone else.
func (s *Store) MarkRead(ctx context.Context, recipient, id string) (bool, error) {
	var n model.Notification
	res, err := n.Collection().UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return false, errs.ErrStore.WrapMsg("mark notification read", "id", id, "err", err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipient string) error {
	var n model.Notification
	_, err := n.Collection().UpdateMany(ctx,
		bson.M{"recipient": recipient, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return errs.ErrStore.WrapMsg("mark all read", "recipient", recipient, "err", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, recipient, id string) (bool, error) {
	var n model.Notification
	res, err := n.Collection().DeleteOne(ctx, bson.M{"_id": id, "recipient": recipient})
	if err != nil {
		return false, errs.ErrStore.WrapMsg("delete notification", "id", id, "err", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) DeleteAll(ctx context.Context, recipient string) error {
	var n model.Notification
	if _, err := n.Collection().DeleteMany(ctx, bson.M{"recipient": recipient}); err != nil {
		return errs.ErrStore.WrapMsg("delete all notifications", "recipient", recipient, "err", err)
	}
	return nil
}
