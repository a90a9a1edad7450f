package track

import (
	"context"
	"errors"

	"MuseShare/module/track/model"
	"MuseShare/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the durable side of the track module. IncPlayCount is what the
// sync job drains into.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// IncPlayCount applies one snapshotted amount as an atomic increment.
func (s *Store) IncPlayCount(ctx context.Context, trackID string, by int64) error {
	var t model.Track
	update := bson.M{"$inc": bson.M{"play_count": by}}
	if _, err := t.Collection().UpdateByID(ctx, trackID, update); err != nil {
		return errs.ErrStore.WrapMsg("inc play count", "track", trackID, "err", err)
	}
	return nil
}

func (s *Store) FindTrack(ctx context.Context, id string) (*model.Track, error) {
	var t model.Track
	err := t.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find track", "id", id, "err", err)
	}
	return &t, nil
}

// Trending returns public tracks by descending play count.
func (s *Store) Trending(ctx context.Context, limit int64) ([]*model.Track, error) {
	var t model.Track
	cur, err := t.Collection().Find(ctx, bson.M{"privacy": model.PrivacyPublic}, options.Find().
		SetSort(bson.D{{Key: "play_count", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("trending", "err", err)
	}
	var tracks []*model.Track
	if err := cur.All(ctx, &tracks); err != nil {
		return nil, errs.ErrStore.WrapMsg("decode trending", "err", err)
	}
	return tracks, nil
}

// AddLike records the like and bumps the counter; ok=false when the user
// already liked the track.
func (s *Store) AddLike(ctx context.Context, trackID, userID string) (bool, error) {
	var t model.Track
	filter := bson.M{"_id": trackID, "likes": bson.M{"$ne": userID}}
	update := bson.M{
		"$addToSet": bson.M{"likes": userID},
		"$inc":      bson.M{"liked_count": int64(1)},
	}
	res, err := t.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errs.ErrStore.WrapMsg("like track", "track", trackID, "err", err)
	}
	return res.ModifiedCount > 0, nil
}

// RemoveLike is the inverse of AddLike.
func (s *Store) RemoveLike(ctx context.Context, trackID, userID string) (bool, error) {
	var t model.Track
	filter := bson.M{"_id": trackID, "likes": userID}
	update := bson.M{
		"$pull": bson.M{"likes": userID},
		"$inc":  bson.M{"liked_count": int64(-1)},
	}
	res, err := t.Collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errs.ErrStore.WrapMsg("unlike track", "track", trackID, "err", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) InsertHistory(ctx context.Context, h *model.History) error {
	if _, err := h.Collection().InsertOne(ctx, h); err != nil {
		return errs.ErrStore.WrapMsg("insert history", "err", err)
	}
	return nil
}

// ListHistory returns the user's most recent listening events.
func (s *Store) ListHistory(ctx context.Context, userID string, limit int64) ([]*model.History, error) {
	var h model.History
	cur, err := h.Collection().Find(ctx, bson.M{"user_id": userID}, options.Find().
		SetSort(bson.D{{Key: "played_at", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("list history", "user", userID, "err", err)
	}
	var rows []*model.History
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrStore.WrapMsg("decode history", "user", userID, "err", err)
	}
	return rows, nil
}
