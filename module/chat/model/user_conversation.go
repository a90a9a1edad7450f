package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*UserConversation)(nil)

// UserConversation is the per-(user, conversation) view state, unique per
// pair. DeletedAt is a per-user soft delete of inbox visibility: the
// conversation reappears as soon as a message newer than DeletedAt arrives,
// nothing is ever destroyed.
type UserConversation struct {
	ID             string     `bson:"_id" json:"id"`
	UserID         string     `bson:"user_id" json:"userId"`
	ConversationID string     `bson:"conversation_id" json:"conversationId"`
	DeletedAt      *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (*UserConversation) GetTableName() string {
	return "user_conversation"
}

func (uc *UserConversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(uc.GetTableName())
}

// VisibleWith applies the visibility predicate against the conversation's
// last message time (zero when the conversation has no message yet).
func (uc *UserConversation) VisibleWith(lastMessageAt time.Time) bool {
	if uc.DeletedAt == nil {
		return true
	}
	return lastMessageAt.After(*uc.DeletedAt)
}
