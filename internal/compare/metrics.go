package compare

import (
	"sort"
	"strings"

	"github.com/emrgen/revision/internal/snapshot"
)

// Built-in metric names.
const (
	MetricQuality     = "quality"
	MetricComplexity  = "complexity"
	MetricCoverage    = "coverage"
	MetricSecurity    = "security"
	MetricPerformance = "performance"
)

// QualityMetric scores a snapshot on simple hygiene heuristics (oversized
// assets, empty files) and reports the score delta. It stands in for an
// external quality analyzer; substitute via WithMetric.
func QualityMetric(before, after *snapshot.Snapshot) MetricResult {
	b := qualityScore(before)
	a := qualityScore(after)
	return MetricResult{
		Delta: a - b,
		Details: map[string]any{
			"before": b,
			"after":  a,
		},
	}
}

func qualityScore(s *snapshot.Snapshot) float64 {
	score := 100.0
	for _, p := range s.Paths() {
		f := s.Files[p]
		if f.ByteSize() > 1024*1024 {
			score -= 5
		}
		if f.ByteSize() == 0 {
			score -= 1
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ComplexityMetric uses total text line count as a complexity proxy.
func ComplexityMetric(before, after *snapshot.Snapshot) MetricResult {
	b := lineCount(before)
	a := lineCount(after)
	return MetricResult{
		Delta: float64(a - b),
		Details: map[string]any{
			"lines_before": b,
			"lines_after":  a,
		},
	}
}

func lineCount(s *snapshot.Snapshot) int {
	total := 0
	for _, f := range s.Files {
		if f.Body == "" {
			continue
		}
		total += strings.Count(f.Body, "\n") + 1
	}
	return total
}

// CoverageMetric reports the delta in the ratio of test files to source
// files.
func CoverageMetric(before, after *snapshot.Snapshot) MetricResult {
	b := coverageRatio(before)
	a := coverageRatio(after)
	return MetricResult{
		Delta: a - b,
		Details: map[string]any{
			"ratio_before": b,
			"ratio_after":  a,
		},
	}
}

func coverageRatio(s *snapshot.Snapshot) float64 {
	var tests, sources int
	for p := range s.Files {
		if strings.Contains(p, "test") || strings.HasPrefix(p, "tests/") {
			tests++
		} else {
			sources++
		}
	}
	if sources == 0 {
		return 0
	}
	return float64(tests) / float64(sources)
}

// suspicious source fragments the security heuristic flags
var securityPatterns = []string{
	"eval(",
	"document.write(",
	"innerHTML =",
	"http://",
}

// SecurityMetric counts suspicious fragments; delta is the change in issue
// count (positive means new issues appeared).
func SecurityMetric(before, after *snapshot.Snapshot) MetricResult {
	b := securityIssues(before)
	a := securityIssues(after)

	return MetricResult{
		Delta: float64(len(a) - len(b)),
		Details: map[string]any{
			"issues_before": b,
			"issues_after":  a,
		},
	}
}

func securityIssues(s *snapshot.Snapshot) []string {
	issues := make([]string, 0)
	for _, p := range s.Paths() {
		body := s.Files[p].Body
		for _, pattern := range securityPatterns {
			if strings.Contains(body, pattern) {
				issues = append(issues, p+": "+pattern)
			}
		}
	}
	sort.Strings(issues)
	return issues
}

// PerformanceMetric reports the page weight change from css/js byte sizes
// as a delta in kilobytes.
func PerformanceMetric(before, after *snapshot.Snapshot) MetricResult {
	b := weightBytes(before)
	a := weightBytes(after)

	return MetricResult{
		Delta: float64(a-b) / 1024.0,
		Details: map[string]any{
			"weight_before": b,
			"weight_after":  a,
		},
	}
}

func weightBytes(s *snapshot.Snapshot) int64 {
	sizes := s.SizeByCategory()
	return sizes[snapshot.CategoryCSS] + sizes[snapshot.CategoryJS]
}
