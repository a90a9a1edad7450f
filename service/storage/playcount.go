package storage

import (
	"context"
	"strconv"
	"time"

	"MuseShare/global"
	redismgr "MuseShare/service/storage/redis"
	"MuseShare/tools/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PlayStore is the fast-store side of play counting: the shared accumulator
// hash, the per-(user,track) dedup markers, and the rename-snapshot handoff
// the sync job relies on.
type PlayStore struct {
	rdb *redis.Client
}

func NewPlayStore() *PlayStore {
	return &PlayStore{rdb: redismgr.GetRedis()}
}

// ClaimPlay atomically claims the (user, track) dedup slot for the window.
// Returns false when a marker is still live, i.e. this call must not count.
func (s *PlayStore) ClaimPlay(ctx context.Context, userID, trackID string, window time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, global.PlayDedupKey(userID, trackID), "1", window).Result()
	if err != nil {
		return false, errs.ErrStore.WrapMsg("setnx play dedup", "track", trackID, "err", err)
	}
	return ok, nil
}

// IncrPlay adds one pending play to the shared accumulator.
func (s *PlayStore) IncrPlay(ctx context.Context, trackID string) error {
	return s.IncrPlayBy(ctx, trackID, 1)
}

// IncrPlayBy adds n pending plays (used to requeue a failed flush).
func (s *PlayStore) IncrPlayBy(ctx context.Context, trackID string, n int64) error {
	if err := s.rdb.HIncrBy(ctx, global.PlayCountKey, trackID, n).Err(); err != nil {
		return errs.ErrStore.WrapMsg("hincrby play", "track", trackID, "err", err)
	}
	return nil
}

// TakeSnapshot atomically renames the live accumulator to a uniquely-named
// snapshot key and returns it. Increments arriving after the rename land in
// a fresh accumulator the next tick will pick up. ok=false means nothing was
// pending.
func (s *PlayStore) TakeSnapshot(ctx context.Context) (key string, ok bool, err error) {
	n, err := s.rdb.Exists(ctx, global.PlayCountKey).Result()
	if err != nil {
		return "", false, errs.ErrStore.WrapMsg("exists accumulator", "err", err)
	}
	if n == 0 {
		return "", false, nil
	}

	key = global.PlayCountSnapshotPrefix + uuid.NewString()
	if err := s.rdb.Rename(ctx, global.PlayCountKey, key).Err(); err != nil {
		// the accumulator can vanish between EXISTS and RENAME; that just
		// means another tick got there first
		if err.Error() == "ERR no such key" {
			return "", false, nil
		}
		return "", false, errs.ErrStore.WrapMsg("rename accumulator", "err", err)
	}
	return key, true, nil
}

// ReadSnapshot returns all (trackID -> pending count) entries of a snapshot.
func (s *PlayStore) ReadSnapshot(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("hgetall snapshot", "key", key, "err", err)
	}
	out := make(map[string]int64, len(raw))
	for trackID, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errs.ErrInvariant.WrapMsg("non-numeric play count", "key", key, "track", trackID, "value", v)
		}
		out[trackID] = n
	}
	return out, nil
}

// DeleteSnapshot removes a fully-applied snapshot.
func (s *PlayStore) DeleteSnapshot(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return errs.ErrStore.WrapMsg("del snapshot", "key", key, "err", err)
	}
	return nil
}

// ListSnapshots scans for snapshot keys left behind by a crashed tick.
func (s *PlayStore) ListSnapshots(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, global.PlayCountSnapshotPrefix+"*", 100).Result()
		if err != nil {
			return nil, errs.ErrStore.WrapMsg("scan snapshots", "err", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
