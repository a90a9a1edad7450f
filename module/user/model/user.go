package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*User)(nil)

// User carries the fields the core needs: identity for auth and the social
// graph for follower fan-out. Profile CRUD lives outside this service.
type User struct {
	ID          string   `bson:"_id" json:"id"`
	DisplayName string   `bson:"display_name" json:"displayName"`
	Email       string   `bson:"email" json:"email"`
	Password    string   `bson:"password" json:"-"` // bcrypt hash, managed by the auth collaborator
	Avatar      string   `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Followers   []string `bson:"followers,omitempty" json:"followers,omitempty"`
	Following   []string `bson:"following,omitempty" json:"following,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (*User) GetTableName() string {
	return "user"
}

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}
