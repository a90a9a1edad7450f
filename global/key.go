package global

// Redis key layout. Keep every key builder here so the namespace has one
// owner.

const (
	// PlayCountKey is the shared accumulator hash: field=trackID, value=pending increments.
	PlayCountKey = "track:playCount"
	// PlayCountSnapshotPrefix prefixes the uniquely-named snapshot the sync job renames to.
	PlayCountSnapshotPrefix = "track:playCount:syncing:"
)

// PlayDedupKey marks one counted play per (user, track) per window.
func PlayDedupKey(userID, trackID string) string {
	return "play:" + userID + ":" + trackID
}

// ActiveConvKey is the set of conversation ids the user currently has open.
func ActiveConvKey(userID string) string {
	return "active_conv:" + userID
}

// LastSeenKey stores the user's last-seen unix timestamp.
func LastSeenKey(userID string) string {
	return "last_seen:" + userID
}

// TrendingKey caches the trending-tracks response.
const TrendingKey = "trendingTracks"
