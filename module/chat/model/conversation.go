package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*Conversation)(nil)

// Conversation is one chat between a fixed set of participants (>= 2).
// UnreadCount maps participant id -> unread messages; a missing key reads
// as 0. Every participant gets an entry at creation and the map is never
// missing an active participant afterwards.
type Conversation struct {
	ID            string           `bson:"_id" json:"id"`
	Participants  []string         `bson:"participants" json:"participants"`
	LastMessageID string           `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"` // inbox preview
	UnreadCount   map[string]int64 `bson:"unread_count" json:"unreadCount"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (*Conversation) GetTableName() string {
	return "conversation"
}

func (c *Conversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(c.GetTableName())
}

// UnreadFor reads a participant's unread count, absent key means 0.
func (c *Conversation) UnreadFor(userID string) int64 {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

// SetUnread writes a participant's unread count, allocating on first use.
func (c *Conversation) SetUnread(userID string, n int64) {
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int64)
	}
	c.UnreadCount[userID] = n
}

// HasParticipant reports membership.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
