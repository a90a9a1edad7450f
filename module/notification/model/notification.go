package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*Notification)(nil)

// Notification types.
const (
	TypeNewMessage   = "NEW_MESSAGE"
	TypeNewFollow    = "NEW_FOLLOW"
	TypeLikeTrack    = "LIKE_TRACK"
	TypeLikePlaylist = "LIKE_PLAYLIST"
	TypeCommentTrack = "COMMENT_TRACK"
	TypeReplyFeed    = "REPLY_FEED"
	TypeSystem       = "SYSTEM"
)

// Notification is one event delivered to one recipient who was not actively
// viewing the relevant context at the time. Only IsRead ever changes.
type Notification struct {
	ID        string `bson:"_id" json:"id"`
	Recipient string `bson:"recipient" json:"recipient"`
	Sender    string `bson:"sender,omitempty" json:"sender,omitempty"`
	Type      string `bson:"type" json:"type"`
	Content   string `bson:"content,omitempty" json:"content,omitempty"`

	ConversationID string `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	MessageID      string `bson:"message_id,omitempty" json:"messageId,omitempty"`
	TrackID        string `bson:"track_id,omitempty" json:"trackId,omitempty"`
	PlaylistID     string `bson:"playlist_id,omitempty" json:"playlistId,omitempty"`
	CommentID      string `bson:"comment_id,omitempty" json:"commentId,omitempty"`

	IsRead    bool      `bson:"is_read" json:"isRead"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (*Notification) GetTableName() string {
	return "notification"
}

func (n *Notification) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(n.GetTableName())
}
