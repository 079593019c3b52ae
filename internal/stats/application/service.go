package application

import (
	"context"
	"errors"
	"time"

	activity "receivables-cloud/internal/activity/domain"
	snapshotapp "receivables-cloud/internal/snapshot/application"
	snapshot "receivables-cloud/internal/snapshot/domain"
)

const defaultActivityLimit = 50

// ActivityReader is the collaborator-provided recent-activity feed.
type ActivityReader interface {
	ListRecentActivities(ctx context.Context, limit int) ([]activity.Record, error)
}

// Meta describes where a statistics value came from.
type Meta struct {
	Source     string    `json:"source"`
	ComputedAt time.Time `json:"computed_at"`
}

// Service serves aggregated statistics through the cache. All reporting
// reads go through the snapshot calculator and global aggregator; nothing
// reimplements the debt formula.
type Service struct {
	cache         *Cache
	snapshots     *snapshotapp.SnapshotService
	aggregator    *snapshotapp.Aggregator
	activities    ActivityReader
	activityLimit int
}

// NewService constructs the statistics service. The activity reader is
// optional; without it the recent-activities scope reports InvalidScope.
func NewService(cache *Cache, snapshots *snapshotapp.SnapshotService, aggregator *snapshotapp.Aggregator, activities ActivityReader) (*Service, error) {
	if cache == nil {
		return nil, errors.New("stats service: nil cache")
	}
	if snapshots == nil {
		return nil, errors.New("stats service: nil snapshot service")
	}
	if aggregator == nil {
		return nil, errors.New("stats service: nil aggregator")
	}
	return &Service{
		cache:         cache,
		snapshots:     snapshots,
		aggregator:    aggregator,
		activities:    activities,
		activityLimit: defaultActivityLimit,
	}, nil
}

// GlobalSummary returns the cached system-wide aggregate.
func (s *Service) GlobalSummary(ctx context.Context) (snapshotapp.GlobalSummary, Meta, error) {
	cached, err := s.cache.Get(ctx, ScopeGlobal, func(ctx context.Context) (any, error) {
		return s.aggregator.ComputeGlobalSummary(ctx)
	})
	if err != nil {
		return snapshotapp.GlobalSummary{}, Meta{}, err
	}
	summary, ok := cached.Value.(snapshotapp.GlobalSummary)
	if !ok {
		return snapshotapp.GlobalSummary{}, Meta{}, errors.New("stats service: unexpected global summary type")
	}
	return summary, meta(cached), nil
}

// AccountSnapshot returns the cached snapshot for one account.
func (s *Service) AccountSnapshot(ctx context.Context, accountID string) (snapshot.Snapshot, Meta, error) {
	cached, err := s.cache.Get(ctx, RepresentativeScope(accountID), func(ctx context.Context) (any, error) {
		return s.snapshots.ComputeSnapshot(ctx, accountID)
	})
	if err != nil {
		return snapshot.Snapshot{}, Meta{}, err
	}
	snap, ok := cached.Value.(snapshot.Snapshot)
	if !ok {
		return snapshot.Snapshot{}, Meta{}, errors.New("stats service: unexpected snapshot type")
	}
	return snap, meta(cached), nil
}

// RecentActivities returns the cached activity feed.
func (s *Service) RecentActivities(ctx context.Context) ([]activity.Record, Meta, error) {
	if s.activities == nil {
		return nil, Meta{}, ErrInvalidScope
	}
	cached, err := s.cache.Get(ctx, ScopeRecentActivities, func(ctx context.Context) (any, error) {
		return s.activities.ListRecentActivities(ctx, s.activityLimit)
	})
	if err != nil {
		return nil, Meta{}, err
	}
	records, ok := cached.Value.([]activity.Record)
	if !ok {
		return nil, Meta{}, errors.New("stats service: unexpected activity type")
	}
	return records, meta(cached), nil
}

// Invalidate validates the raw scope and drops the matching cache
// entries. The invalidation is synchronous: it is visible to the next Get
// before this returns.
func (s *Service) Invalidate(raw string) (Scope, error) {
	scope, err := ParseScope(raw)
	if err != nil {
		return "", err
	}
	s.cache.Invalidate(scope)
	return scope, nil
}

// InvalidateAccount drops the per-account scope and the global scope,
// used when a correction rewrites stored debt.
func (s *Service) InvalidateAccount(accountID string) {
	s.cache.Invalidate(RepresentativeScope(accountID))
	s.cache.Invalidate(ScopeGlobal)
}

func meta(cached CachedValue) Meta {
	return Meta{Source: cached.Source, ComputedAt: cached.ComputedAt}
}
