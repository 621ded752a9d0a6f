package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jbt95/trenes/internal/feed"
	"github.com/jbt95/trenes/internal/insights"
)

// FeedSource fetches the raw feeds stored alongside each snapshot
type FeedSource interface {
	VehiclePositions(ctx context.Context) ([]feed.VehiclePosition, error)
	Alerts(ctx context.Context) ([]feed.Alert, error)
}

// SnapshotBuilder computes a full insights snapshot
type SnapshotBuilder interface {
	Build(ctx context.Context) (*insights.Snapshot, error)
}

// Notifier is told about every successful capture
type Notifier interface {
	NotifyCaptured(ctx context.Context, entry IndexEntry) error
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Notifier          Notifier
	SummarySampleSize int
	Now               func() time.Time
}

const defaultSummarySampleSize = 20

// Service owns the history index. All index read-modify-write sequences go
// through mu, so a single Service must front a given store.
type Service struct {
	store      Store
	feeds      FeedSource
	builder    SnapshotBuilder
	notifier   Notifier
	sampleSize int
	now        func() time.Time

	mu sync.Mutex
}

// NewService creates a history service
func NewService(store Store, feeds FeedSource, builder SnapshotBuilder, opts Options) *Service {
	s := &Service{
		store:      store,
		feeds:      feeds,
		builder:    builder,
		notifier:   opts.Notifier,
		sampleSize: opts.SummarySampleSize,
		now:        opts.Now,
	}
	if s.sampleSize <= 0 {
		s.sampleSize = defaultSummarySampleSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Capture builds a snapshot, persists it with the raw feeds and appends it
// to the index. The snapshot refetches the feeds on its own, so the stored
// vehicle and alert lists may differ slightly from the stored totals.
func (s *Service) Capture(ctx context.Context) (string, error) {
	var (
		vehicles []feed.VehiclePosition
		alerts   []feed.Alert
		snap     *insights.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vehicles, err = s.feeds.VehiclePositions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		alerts, err = s.feeds.Alerts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap, err = s.builder.Build(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := newEntryID(snap.GeneratedAt)
	payload, err := json.Marshal(newEntry(id, snap, vehicles, alerts))
	if err != nil {
		return "", fmt.Errorf("failed to encode entry %s: %w", id, err)
	}

	if err := s.store.WriteEntry(ctx, id, payload); err != nil {
		return "", persistErr("write entry "+id, err)
	}

	vehicleCount, alertCount := len(vehicles), len(alerts)
	desc := IndexEntry{
		ID:           &id,
		Timestamp:    snap.GeneratedAt,
		Filename:     FilenameFor(id),
		VehicleCount: &vehicleCount,
		AlertCount:   &alertCount,
	}

	s.mu.Lock()
	err = s.store.AppendIndexEntry(ctx, desc)
	s.mu.Unlock()
	if err != nil {
		if delErr := s.store.DeleteEntry(context.WithoutCancel(ctx), id); delErr != nil {
			log.Printf("History: Warning: failed to remove orphaned entry %s: %v", id, delErr)
		}
		return "", persistErr("append index entry", err)
	}

	log.Printf("History: captured %s (%d vehicles, %d alerts)", id, vehicleCount, alertCount)

	if s.notifier != nil {
		if err := s.notifier.NotifyCaptured(ctx, desc); err != nil {
			log.Printf("History: Warning: capture notification for %s failed: %v", id, err)
		}
	}
	return id, nil
}

// newEntryID combines the capture second with a random suffix so
// same-second captures stay distinct
func newEntryID(ts int64) string {
	return fmt.Sprintf("%d-%s", ts, uuid.New().String()[:8])
}

// Cleanup drops entries older than keepDays and returns how many index
// entries were removed. Blob deletion failures are logged, not returned.
func (s *Service) Cleanup(ctx context.Context, keepDays int) (int, error) {
	cutoff := s.now().Add(-time.Duration(keepDays) * 24 * time.Hour).Unix()

	s.mu.Lock()
	index, err := s.store.ListIndex(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, persistErr("list index", err)
	}

	kept := make([]IndexEntry, 0, len(index))
	var expired []IndexEntry
	for _, e := range index {
		if e.Timestamp < cutoff {
			expired = append(expired, e)
		} else {
			kept = append(kept, e)
		}
	}

	if len(expired) == 0 {
		s.mu.Unlock()
		return 0, nil
	}

	err = s.store.RewriteIndex(ctx, kept)
	s.mu.Unlock()
	if err != nil {
		return 0, persistErr("rewrite index", err)
	}

	for _, e := range expired {
		if err := s.store.DeleteEntry(ctx, e.ResolvedID()); err != nil {
			log.Printf("History: Warning: failed to delete entry %s: %v", e.ResolvedID(), err)
		}
	}

	log.Printf("History: cleanup removed %d entries older than %d days", len(expired), keepDays)
	return len(expired), nil
}
