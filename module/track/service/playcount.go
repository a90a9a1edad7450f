package service

import (
	"context"
	"sync"
	"time"

	"MuseShare/logger"
	"MuseShare/tools/safe"
)

// CounterStore is the durable side of the sync job.
type CounterStore interface {
	IncPlayCount(ctx context.Context, trackID string, by int64) error
}

// Syncer periodically drains the fast-store play accumulator into the
// durable track counters. The atomic rename-snapshot handoff is the only
// serialization: increments arriving after the rename land in a fresh
// accumulator the next tick picks up, so nothing is lost or double-counted.
type Syncer struct {
	fast     FastStore
	tracks   CounterStore
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSyncer(fast FastStore, tracks CounterStore, interval time.Duration) *Syncer {
	safe.MustNotNil(fast, "fast store")
	safe.MustNotNil(tracks, "track store")
	if interval <= 0 {
		interval = time.Minute
	}
	return &Syncer{
		fast:     fast,
		tracks:   tracks,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the tick loop until Stop.
func (s *Syncer) Start() {
	s.wg.Add(1)
	safe.Go(func() {
		defer s.wg.Done()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				if err := s.SyncTick(ctx); err != nil {
					logger.Errorf("[playcount] sync tick: %v", err)
				}
				cancel()
			}
		}
	})
}

// Stop halts the loop and waits for an in-flight tick.
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// SyncTick reprocesses any snapshot a crashed tick left behind, then
// renames the live accumulator to a fresh snapshot and drains it.
func (s *Syncer) SyncTick(ctx context.Context) error {
	orphans, err := s.fast.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	for _, key := range orphans {
		if err := s.drainSnapshot(ctx, key); err != nil {
			return err
		}
	}

	key, ok, err := s.fast.TakeSnapshot(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return s.drainSnapshot(ctx, key)
}

// drainSnapshot applies every (track, count) entry as a durable atomic
// increment. Per-track failures do not block the rest: the failed amounts
// are pushed back into the live accumulator for the next tick, and the
// snapshot is always deleted so it cannot be applied twice.
func (s *Syncer) drainSnapshot(ctx context.Context, key string) error {
	counts, err := s.fast.ReadSnapshot(ctx, key)
	if err != nil {
		return err
	}

	for trackID, n := range counts {
		if n <= 0 {
			continue
		}
		if err := s.tracks.IncPlayCount(ctx, trackID, n); err != nil {
			logger.Warnf("[playcount] apply track=%s n=%d: %v", trackID, n, err)
			if rerr := s.fast.IncrPlayBy(ctx, trackID, n); rerr != nil {
				logger.Errorf("[playcount] requeue track=%s n=%d: %v", trackID, n, rerr)
			}
		}
	}
	return s.fast.DeleteSnapshot(ctx, key)
}
