package service

import (
	"context"
	"time"

	"MuseShare/tools/safe"
)

// FastStore is the ephemeral side of play counting: dedup markers, the
// shared accumulator, and snapshot handoff. Backed by Redis in production.
type FastStore interface {
	ClaimPlay(ctx context.Context, userID, trackID string, window time.Duration) (bool, error)
	IncrPlay(ctx context.Context, trackID string) error
	IncrPlayBy(ctx context.Context, trackID string, n int64) error
	TakeSnapshot(ctx context.Context) (key string, ok bool, err error)
	ReadSnapshot(ctx context.Context, key string) (map[string]int64, error)
	DeleteSnapshot(ctx context.Context, key string) error
	ListSnapshots(ctx context.Context) ([]string, error)
}

// PlayService is the hot increment path. It never errors on legitimate
// repeated calls: a play inside the dedup window is a non-error "not
// counted" outcome.
type PlayService struct {
	fast   FastStore
	window time.Duration
}

func NewPlayService(fast FastStore, window time.Duration) *PlayService {
	safe.MustNotNil(fast, "fast store")
	if window <= 0 {
		window = 60 * time.Second
	}
	return &PlayService{fast: fast, window: window}
}

// ConfirmPlay counts at most one play per (user, track) per dedup window.
// The claim is a single atomic set-if-absent, so a concurrent burst from
// one user can only win once.
func (p *PlayService) ConfirmPlay(ctx context.Context, userID, trackID string) (counted bool, err error) {
	ok, err := p.fast.ClaimPlay(ctx, userID, trackID, p.window)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := p.fast.IncrPlay(ctx, trackID); err != nil {
		return false, err
	}
	return true, nil
}
