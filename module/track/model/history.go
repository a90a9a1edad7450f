package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*History)(nil)

// History is one listening event; feed replies reference these records.
type History struct {
	ID       string    `bson:"_id" json:"id"`
	UserID   string    `bson:"user_id" json:"userId"`
	TrackID  string    `bson:"track_id" json:"trackId"`
	PlayedAt time.Time `bson:"played_at" json:"playedAt"`
}

func (*History) GetTableName() string {
	return "history"
}

func (h *History) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(h.GetTableName())
}
