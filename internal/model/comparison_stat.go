package model

import (
	"time"

	"gorm.io/gorm"
)

// ComparisonStat is the cached result of comparing two versions. It is
// derived data: the compare package can rebuild it from the two snapshots at
// any time, so rows here are never the source of truth and may be pruned.
type ComparisonStat struct {
	gorm.Model
	Version1ID string `gorm:"uuid;not null;uniqueIndex:idx_compared_pair,priority:1"`
	Version2ID string `gorm:"uuid;not null;uniqueIndex:idx_compared_pair,priority:2"`

	// headline numbers kept as columns for list views and pruning queries
	FilesAdded    int
	FilesRemoved  int
	FilesModified int
	LinesAdded    int
	LinesRemoved  int

	// full report, serialized compare.Stat
	Report string `gorm:"not null"`

	ComputedAt time.Time `gorm:"not null"`
}

func (ComparisonStat) TableName() string {
	return "comparison_stats"
}
