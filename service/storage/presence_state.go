package storage

import (
	"context"
	"time"

	"MuseShare/global"
	redismgr "MuseShare/service/storage/redis"
	"MuseShare/tools/errs"

	"github.com/redis/go-redis/v9"
)

// PresenceState keeps the per-user active-conversation sets and last-seen
// stamps in Redis. Set add/remove are single atomic commands, so concurrent
// join/leave/disconnect handlers for one user never lose an update.
type PresenceState struct {
	rdb *redis.Client
}

func NewPresenceState() *PresenceState {
	return &PresenceState{rdb: redismgr.GetRedis()}
}

// AddActive marks the conversation as open for the user.
func (s *PresenceState) AddActive(ctx context.Context, userID, conversationID string) error {
	if err := s.rdb.SAdd(ctx, global.ActiveConvKey(userID), conversationID).Err(); err != nil {
		return errs.ErrStore.WrapMsg("sadd active", "user", userID, "err", err)
	}
	return nil
}

// RemoveActive marks the conversation as closed for the user.
func (s *PresenceState) RemoveActive(ctx context.Context, userID, conversationID string) error {
	if err := s.rdb.SRem(ctx, global.ActiveConvKey(userID), conversationID).Err(); err != nil {
		return errs.ErrStore.WrapMsg("srem active", "user", userID, "err", err)
	}
	return nil
}

// IsActive reports whether the user currently has the conversation open.
func (s *PresenceState) IsActive(ctx context.Context, userID, conversationID string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, global.ActiveConvKey(userID), conversationID).Result()
	if err != nil {
		return false, errs.ErrStore.WrapMsg("sismember active", "user", userID, "err", err)
	}
	return ok, nil
}

// ClearActive drops the user's whole active set (used on final disconnect).
func (s *PresenceState) ClearActive(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, global.ActiveConvKey(userID)).Err(); err != nil {
		return errs.ErrStore.WrapMsg("del active", "user", userID, "err", err)
	}
	return nil
}

// TouchLastSeen stamps the user's last-seen time.
func (s *PresenceState) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	if err := s.rdb.Set(ctx, global.LastSeenKey(userID), at.Unix(), 0).Err(); err != nil {
		return errs.ErrStore.WrapMsg("set last seen", "user", userID, "err", err)
	}
	return nil
}
