package compare

import (
	"encoding/json"
	"sort"

	"github.com/Masterminds/semver"
	"github.com/emrgen/revision/internal/diff"
	"github.com/emrgen/revision/internal/snapshot"
)

// Dependency group names.
const (
	GroupRequired  = "required"
	GroupOptional  = "optional"
	GroupConflicts = "conflicts"
)

// Dependency change types.
const (
	ChangeMajor = "major"
	ChangeMinor = "minor"
	ChangePatch = "patch"
	ChangeOther = "other"
)

// SizeStat is the byte size delta for one asset category.
type SizeStat struct {
	Before           int64   `json:"before"`
	After            int64   `json:"after"`
	Change           int64   `json:"change"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// DependencyChange describes a dependency present in both snapshots with a
// different version constraint.
type DependencyChange struct {
	Name       string `json:"name"`
	From       string `json:"from"`
	To         string `json:"to"`
	ChangeType string `json:"change_type"`
}

// GroupDiff is the added/removed/changed classification for one dependency
// group.
type GroupDiff struct {
	Added   map[string]string  `json:"added"`
	Removed map[string]string  `json:"removed"`
	Changed []DependencyChange `json:"changed"`
}

// FileRef names a single file with its size.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Distribution is a before/after pair of file-size bucket counts.
type Distribution struct {
	Before map[string]int `json:"before"`
	After  map[string]int `json:"after"`
}

// LargestFiles is the before/after pair of biggest assets.
type LargestFiles struct {
	Before FileRef `json:"before"`
	After  FileRef `json:"after"`
}

// MetricResult is the outcome of one pluggable metric: a numeric delta plus
// optional structured details.
type MetricResult struct {
	Delta   float64        `json:"delta"`
	Details map[string]any `json:"details,omitempty"`
}

// Stat is the full comparison report between two snapshots. It is a pure
// function of the two content blobs: comparing the same pair twice yields a
// bit-identical report.
type Stat struct {
	FilesAdded    int `json:"files_added"`
	FilesRemoved  int `json:"files_removed"`
	FilesModified int `json:"files_modified"`
	LinesAdded    int `json:"lines_added"`
	LinesRemoved  int `json:"lines_removed"`

	DiffTruncated bool `json:"diff_truncated,omitempty"`

	Tree diff.TreeResult `json:"tree"`

	// keyed by asset category: total, css, js, image, other
	Sizes map[string]SizeStat `json:"sizes"`

	// keyed by dependency group: required, optional, conflicts
	Dependencies map[string]GroupDiff `json:"dependency_changes"`

	Metrics map[string]MetricResult `json:"metrics"`

	FileSizeDistribution Distribution `json:"file_size_distribution"`
	LargestFiles         LargestFiles `json:"largest_files"`
}

// Metric is a pluggable analyzer producing a delta score and optional
// details for a snapshot pair. External analyzers can be substituted for the
// built-ins; the comparator only relies on this contract.
type Metric func(before, after *snapshot.Snapshot) MetricResult

// Comparator aggregates diff output and metric scores into a Stat.
type Comparator struct {
	maxLines int
	metrics  map[string]Metric
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithMaxLines overrides the per-file line cap used for modified files.
func WithMaxLines(n int) Option {
	return func(c *Comparator) {
		c.maxLines = n
	}
}

// WithMetric registers or replaces a named metric.
func WithMetric(name string, m Metric) Option {
	return func(c *Comparator) {
		c.metrics[name] = m
	}
}

// New returns a Comparator with the built-in metric set.
func New(opts ...Option) *Comparator {
	c := &Comparator{
		maxLines: diff.DefaultMaxLines,
		metrics: map[string]Metric{
			MetricQuality:     QualityMetric,
			MetricComplexity:  ComplexityMetric,
			MetricCoverage:    CoverageMetric,
			MetricSecurity:    SecurityMetric,
			MetricPerformance: PerformanceMetric,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare builds the full comparison report for a snapshot pair. Neither
// snapshot is mutated.
func (c *Comparator) Compare(before, after *snapshot.Snapshot) *Stat {
	tree := diff.Tree(before.Manifest(), after.Manifest())

	stat := &Stat{
		FilesAdded:    len(tree.Added),
		FilesRemoved:  len(tree.Removed),
		FilesModified: len(tree.Modified),
		Tree:          tree,
		Sizes:         sizeStats(before, after),
		Dependencies:  dependencyDiff(before.Dependencies, after.Dependencies),
		Metrics:       make(map[string]MetricResult, len(c.metrics)),
		FileSizeDistribution: Distribution{
			Before: before.SizeDistribution(),
			After:  after.SizeDistribution(),
		},
	}

	for _, path := range tree.Modified {
		result := diff.LinesN(before.Files[path].Body, after.Files[path].Body, c.maxLines)
		added, removed := result.Stats()
		stat.LinesAdded += added
		stat.LinesRemoved += removed
		if result.Truncated {
			stat.DiffTruncated = true
		}
	}

	name, size := before.LargestFile()
	stat.LargestFiles.Before = FileRef{Name: name, Size: size}
	name, size = after.LargestFile()
	stat.LargestFiles.After = FileRef{Name: name, Size: size}

	for metricName, metric := range c.metrics {
		stat.Metrics[metricName] = metric(before, after)
	}

	return stat
}

// Tree classifies the paths of a snapshot pair without line-diffing them.
func (c *Comparator) Tree(before, after *snapshot.Snapshot) diff.TreeResult {
	return diff.Tree(before.Manifest(), after.Manifest())
}

// FileLines reports the line-diff volume for a single path of the pair,
// used to annotate rollback file changes.
func (c *Comparator) FileLines(before, after *snapshot.Snapshot, path string) int {
	result := diff.LinesN(before.Files[path].Body, after.Files[path].Body, c.maxLines)
	added, removed := result.Stats()
	return added + removed
}

// Encode serializes the report. Go's JSON encoder writes map keys in sorted
// order, so equal reports encode to identical bytes.
func (s *Stat) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeStat(data string) (*Stat, error) {
	var stat Stat
	if err := json.Unmarshal([]byte(data), &stat); err != nil {
		return nil, err
	}
	return &stat, nil
}

func sizeStats(before, after *snapshot.Snapshot) map[string]SizeStat {
	beforeSizes := before.SizeByCategory()
	afterSizes := after.SizeByCategory()

	stats := make(map[string]SizeStat, len(beforeSizes))
	for category, b := range beforeSizes {
		a := afterSizes[category]
		stat := SizeStat{Before: b, After: a, Change: a - b}
		if b > 0 {
			stat.CompressionRatio = float64(b-a) / float64(b)
		}
		stats[category] = stat
	}
	return stats
}

func dependencyDiff(before, after snapshot.Dependencies) map[string]GroupDiff {
	return map[string]GroupDiff{
		GroupRequired:  groupDiff(before.Required, after.Required),
		GroupOptional:  groupDiff(before.Optional, after.Optional),
		GroupConflicts: groupDiff(before.Conflicts, after.Conflicts),
	}
}

func groupDiff(before, after map[string]string) GroupDiff {
	gd := GroupDiff{
		Added:   make(map[string]string),
		Removed: make(map[string]string),
		Changed: make([]DependencyChange, 0),
	}

	for name, version := range after {
		if _, ok := before[name]; !ok {
			gd.Added[name] = version
		}
	}
	for name, version := range before {
		to, ok := after[name]
		if !ok {
			gd.Removed[name] = version
			continue
		}
		if version != to {
			gd.Changed = append(gd.Changed, DependencyChange{
				Name:       name,
				From:       version,
				To:         to,
				ChangeType: changeType(version, to),
			})
		}
	}

	sort.Slice(gd.Changed, func(i, j int) bool {
		return gd.Changed[i].Name < gd.Changed[j].Name
	})

	return gd
}

// changeType classifies a version bump by the first semantic-version
// component that differs. Constraints that do not parse as plain versions
// fall back to "other".
func changeType(from, to string) string {
	vf, err := semver.NewVersion(from)
	if err != nil {
		return ChangeOther
	}
	vt, err := semver.NewVersion(to)
	if err != nil {
		return ChangeOther
	}

	switch {
	case vf.Major() != vt.Major():
		return ChangeMajor
	case vf.Minor() != vt.Minor():
		return ChangeMinor
	case vf.Patch() != vt.Patch():
		return ChangePatch
	default:
		return ChangeOther
	}
}
