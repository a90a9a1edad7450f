package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*Message)(nil)

// Message belongs to exactly one conversation. ReadBy always contains the
// sender and only ever grows. RepliedFeedID links a feed-reply message to
// the listening-history record it reacts to.
type Message struct {
	ID             string   `bson:"_id" json:"id"`
	ConversationID string   `bson:"conversation_id" json:"conversationId"`
	Sender         string   `bson:"sender" json:"sender"`
	Text           string   `bson:"text,omitempty" json:"text,omitempty"`
	ReadBy         []string `bson:"read_by" json:"readBy"`
	RepliedFeedID  string   `bson:"replied_feed_id,omitempty" json:"repliedFeedId,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (*Message) GetTableName() string {
	return "message"
}

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.GetTableName())
}

// ReadByUser reports whether the user already read the message.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
