package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emrgen/revision/internal/store"
)

// DefaultStatMaxAge is how long cached comparison reports are kept before
// the pruner reclaims them. Reports are derived data, pruning one only
// costs a recomputation.
const DefaultStatMaxAge = 30 * 24 * time.Hour

// StatPruner reclaims stale cached comparison reports.
type StatPruner struct {
	store  store.Store
	maxAge time.Duration
}

func NewStatPruner(store store.Store, maxAge time.Duration) *StatPruner {
	if maxAge <= 0 {
		maxAge = DefaultStatMaxAge
	}
	return &StatPruner{
		store:  store,
		maxAge: maxAge,
	}
}

func (p *StatPruner) Schedule() string {
	return "@hourly"
}

func (p *StatPruner) Run() {
	cutoff := time.Now().Add(-p.maxAge)

	pruned, err := p.store.DeleteComparisonStatsBefore(context.Background(), cutoff)
	if err != nil {
		logrus.Errorf("pruning comparison stats: %v", err)
		return
	}
	if pruned > 0 {
		logrus.Infof("pruned %d comparison stats older than %s", pruned, p.maxAge)
	}
}
