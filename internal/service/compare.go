package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/emrgen/revision/internal/cache"
	"github.com/emrgen/revision/internal/compare"
	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/store"
)

// DefaultStatTTL bounds how long a comparison report lives in the hot
// cache. The stat table keeps its own freshness check against the version
// rows, so the TTL only controls redis churn.
const DefaultStatTTL = time.Hour

// NewCompareService creates a new CompareService. The cache may be nil, in
// which case only the comparison_stats table is consulted before
// recomputing.
func NewCompareService(store store.Store, statCache cache.StatCache, comparator *compare.Comparator) *CompareService {
	return &CompareService{
		store:      store,
		cache:      statCache,
		comparator: comparator,
		ttl:        DefaultStatTTL,
	}
}

// CompareService computes comparison reports between two versions and
// caches them. Cached rows are derived data only: any miss, staleness or
// decode failure falls back to recomputing from the two snapshots.
type CompareService struct {
	store      store.Store
	cache      cache.StatCache
	comparator *compare.Comparator
	group      singleflight.Group
	ttl        time.Duration
}

// CompareVersions builds the comparison report for a version pair.
// Comparing the same unchanged pair twice yields bit-identical reports.
func (c *CompareService) CompareVersions(ctx context.Context, version1ID, version2ID string) (*compare.Stat, error) {
	v1ID, err := uuid.Parse(version1ID)
	if err != nil {
		return nil, invalidArgument("version1 id must be a valid uuid")
	}
	v2ID, err := uuid.Parse(version2ID)
	if err != nil {
		return nil, invalidArgument("version2 id must be a valid uuid")
	}

	v1, err := c.store.GetVersion(ctx, v1ID)
	if err != nil {
		return nil, storeErr(err)
	}
	v2, err := c.store.GetVersion(ctx, v2ID)
	if err != nil {
		return nil, storeErr(err)
	}

	key := cache.StatKey(v1.ID, v2.ID)

	if c.cache != nil {
		if report, ok := c.cache.Get(ctx, key); ok {
			if stat, err := compare.DecodeStat(report); err == nil {
				return stat, nil
			}
			// a broken cache entry is dropped, never trusted
			_ = c.cache.Delete(ctx, key)
		}
	}

	if row, err := c.store.GetComparisonStat(ctx, v1ID, v2ID); err == nil && c.fresh(row, v1, v2) {
		if stat, err := compare.DecodeStat(row.Report); err == nil {
			c.fill(ctx, key, row.Report)
			return stat, nil
		}
	}

	// concurrent identical comparisons collapse into one computation
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.compute(ctx, v1, v2, key)
	})
	if err != nil {
		return nil, err
	}

	return result.(*compare.Stat), nil
}

// Compare computes the report for two already-loaded versions without any
// caching. Rollback previews use this path.
func (c *CompareService) Compare(v1, v2 *model.Version) (*compare.Stat, error) {
	before, err := SnapshotOf(v1)
	if err != nil {
		return nil, internal(err)
	}
	after, err := SnapshotOf(v2)
	if err != nil {
		return nil, internal(err)
	}
	return c.comparator.Compare(before, after), nil
}

func (c *CompareService) compute(ctx context.Context, v1, v2 *model.Version, key string) (*compare.Stat, error) {
	stat, err := c.Compare(v1, v2)
	if err != nil {
		return nil, err
	}

	report, err := stat.Encode()
	if err != nil {
		return nil, internal(err)
	}

	row := &model.ComparisonStat{
		Version1ID:    v1.ID,
		Version2ID:    v2.ID,
		FilesAdded:    stat.FilesAdded,
		FilesRemoved:  stat.FilesRemoved,
		FilesModified: stat.FilesModified,
		LinesAdded:    stat.LinesAdded,
		LinesRemoved:  stat.LinesRemoved,
		Report:        report,
		ComputedAt:    time.Now().UTC(),
	}
	if err := c.store.SaveComparisonStat(ctx, row); err != nil {
		// the cache table is an accelerator, losing a row is not an error
		logrus.Errorf("saving comparison stat %s/%s: %v", v1.ID, v2.ID, err)
	}

	c.fill(ctx, key, report)

	return stat, nil
}

// fresh applies the recompute policy: a cached row is stale once either
// version row changed after it was computed (recompression, counter
// backfills and the like).
func (c *CompareService) fresh(row *model.ComparisonStat, v1, v2 *model.Version) bool {
	return !row.ComputedAt.Before(v1.UpdatedAt) && !row.ComputedAt.Before(v2.UpdatedAt)
}

func (c *CompareService) fill(ctx context.Context, key, report string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, report, c.ttl); err != nil {
		logrus.Errorf("filling stat cache %s: %v", key, err)
	}
}
