package model

import (
	"time"

	"MuseShare/data/database"
	"MuseShare/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

var _ database.Table = (*Track)(nil)

// Track privacy levels.
const (
	PrivacyPublic  = "Public"
	PrivacyFriends = "Friends"
	PrivacyPrivate = "Private"
)

// Track is an uploaded piece of music. PlayCount is eventually consistent:
// plays accumulate in the fast store and land here on the next sync tick,
// monotonically non-decreasing outside corrective admin writes.
type Track struct {
	ID          string   `bson:"_id" json:"id"`
	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	AudioURL    string   `bson:"audio_url" json:"audioUrl"`
	CoverArtURL string   `bson:"cover_art_url,omitempty" json:"coverArtUrl,omitempty"`
	Genre       string   `bson:"genre,omitempty" json:"genre,omitempty"`
	Tags        []string `bson:"tags,omitempty" json:"tags,omitempty"`
	Duration    int64    `bson:"duration,omitempty" json:"duration,omitempty"`

	ArtistID        string   `bson:"artist_id" json:"artistId"`
	FeaturedArtists []string `bson:"featured_artists,omitempty" json:"featuredArtists,omitempty"`

	Likes      []string `bson:"likes,omitempty" json:"likes,omitempty"`
	LikedCount int64    `bson:"liked_count" json:"likedCount"`
	PlayCount  int64    `bson:"play_count" json:"playCount"`

	Privacy   string    `bson:"privacy" json:"privacy"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (*Track) GetTableName() string {
	return "track"
}

func (t *Track) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(t.GetTableName())
}

// Liked reports whether the user already liked the track.
func (t *Track) Liked(userID string) bool {
	for _, id := range t.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
