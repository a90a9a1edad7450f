package user

import (
	"context"
	"errors"

	"MuseShare/module/user/model"
	"MuseShare/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store reads the user collection; also the follower source for presence
// fan-out.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := u.Collection().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find user by email", "err", err)
	}
	return &u, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := u.Collection().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find user", "id", id, "err", err)
	}
	return &u, nil
}

// FollowerIDs returns who follows the user; empty when the user is unknown.
func (s *Store) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return u.Followers, nil
}
