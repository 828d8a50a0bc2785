package diff

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// TreeResult classifies the paths of two asset manifests. Paths are sorted
// so the result is stable for audit output.
type TreeResult struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Tree compares two path -> content-hash manifests by set difference and
// hash comparison. No byte-level comparison happens here; file bodies are
// only consulted by the line diff for paths reported as modified.
func Tree(oldTree, newTree map[string]string) TreeResult {
	oldPaths := mapset.NewSet[string]()
	for p := range oldTree {
		oldPaths.Add(p)
	}
	newPaths := mapset.NewSet[string]()
	for p := range newTree {
		newPaths.Add(p)
	}

	result := TreeResult{
		Added:    newPaths.Difference(oldPaths).ToSlice(),
		Removed:  oldPaths.Difference(newPaths).ToSlice(),
		Modified: make([]string, 0),
	}

	for p := range newPaths.Intersect(oldPaths).Iter() {
		if oldTree[p] != newTree[p] {
			result.Modified = append(result.Modified, p)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Modified)

	return result
}
