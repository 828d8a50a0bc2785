package job

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/emrgen/revision/internal/service"
	"github.com/emrgen/revision/internal/store"
)

// VersionCleaner prunes old versions across all contents. Active, tagged
// and rollback-created versions are never touched; the retention floor
// comes from configuration.
type VersionCleaner struct {
	store    store.Store
	versions *service.VersionService
	keep     int
}

// NewVersionCleaner creates a new VersionCleaner keeping the newest `keep`
// prunable versions per content.
func NewVersionCleaner(store store.Store, versions *service.VersionService, keep int) *VersionCleaner {
	return &VersionCleaner{
		store:    store,
		versions: versions,
		keep:     keep,
	}
}

func (c *VersionCleaner) Schedule() string {
	return "@daily"
}

func (c *VersionCleaner) Run() {
	ctx := context.Background()

	contents, err := c.store.ListContentIDs(ctx)
	if err != nil {
		logrus.Errorf("listing contents for version cleanup: %v", err)
		return
	}

	var pruned int
	for _, contentID := range contents {
		n, err := c.versions.CleanupOldVersions(ctx, contentID, c.keep)
		if err != nil {
			logrus.Errorf("cleaning up versions for content %s: %v", contentID, err)
			continue
		}
		pruned += n
	}

	if pruned > 0 {
		logrus.Infof("version cleanup pruned %d versions across %d contents", pruned, len(contents))
	}
}
