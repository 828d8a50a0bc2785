package diff

import (
	"sort"
	"strings"
)

// Edit operations.
const (
	OpEqual  = "equal"
	OpInsert = "insert"
	OpDelete = "delete"
)

// Edit is one line-level operation. OldLine/NewLine are zero-based indexes
// into the old and new texts; -1 when the op does not touch that side.
type Edit struct {
	Op      string `json:"op"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line"`
	NewLine int    `json:"new_line"`
}

// Result is a computed line diff. Truncated is set when either input
// exceeded the line cap and the diff covers only the capped prefix.
type Result struct {
	Edits     []Edit `json:"edits"`
	Truncated bool   `json:"truncated"`
}

// DefaultMaxLines caps the per-side line count fed to the quadratic LCS
// table. Inputs beyond the cap are diffed on their prefix and the result is
// flagged truncated instead of burning unbounded memory.
const DefaultMaxLines = 10000

// Lines computes an LCS-based line diff between two texts.
//
// The result is deterministic, and symmetric: swapping insert/delete tags
// (and the line indexes) of Lines(b, a) yields exactly Lines(a, b). Within a
// run of consecutive changes, operations are ordered by line position and
// then by text, which is what makes the symmetry hold as a strict sequence
// equality.
func Lines(oldText, newText string) Result {
	return LinesN(oldText, newText, DefaultMaxLines)
}

// LinesN is Lines with an explicit line cap.
func LinesN(oldText, newText string, maxLines int) Result {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	var truncated bool
	if maxLines > 0 {
		if len(oldLines) > maxLines {
			oldLines = oldLines[:maxLines]
			truncated = true
		}
		if len(newLines) > maxLines {
			newLines = newLines[:maxLines]
			truncated = true
		}
	}

	raw := backtrack(oldLines, newLines, lcsTable(oldLines, newLines))

	return Result{Edits: normalize(raw), Truncated: truncated}
}

// Stats sums inserted and deleted lines of a result.
func (r Result) Stats() (added, removed int) {
	for _, e := range r.Edits {
		switch e.Op {
		case OpInsert:
			added++
		case OpDelete:
			removed++
		}
	}
	return added, removed
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// lcsTable fills the classic O(n*m) longest-common-subsequence table.
func lcsTable(a, b []string) [][]int {
	n, m := len(a), len(b)
	table := make([][]int, n+1)
	for i := range table {
		table[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else if table[i-1][j] >= table[i][j-1] {
				table[i][j] = table[i-1][j]
			} else {
				table[i][j] = table[i][j-1]
			}
		}
	}
	return table
}

func backtrack(a, b []string, table [][]int) []Edit {
	i, j := len(a), len(b)
	var rev []Edit
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			rev = append(rev, Edit{Op: OpEqual, Text: a[i-1], OldLine: i - 1, NewLine: j - 1})
			i--
			j--
		// at an exact table tie the text comparison decides, so the
		// choice mirrors itself when the inputs are swapped
		case j > 0 && (i == 0 || table[i][j-1] > table[i-1][j] ||
			(table[i][j-1] == table[i-1][j] && b[j-1] < a[i-1])):
			rev = append(rev, Edit{Op: OpInsert, Text: b[j-1], OldLine: -1, NewLine: j - 1})
			j--
		default:
			rev = append(rev, Edit{Op: OpDelete, Text: a[i-1], OldLine: i - 1, NewLine: -1})
			i--
		}
	}

	edits := make([]Edit, 0, len(rev))
	for k := len(rev) - 1; k >= 0; k-- {
		edits = append(edits, rev[k])
	}
	return edits
}

// normalize reorders every maximal run of non-equal edits by (position,
// text). The position of a delete is its old line, of an insert its new
// line. LCS maximality guarantees a text never appears as both delete and
// insert within one run, so the ordering is total.
func normalize(edits []Edit) []Edit {
	out := make([]Edit, 0, len(edits))
	run := make([]Edit, 0)

	flush := func() {
		sort.SliceStable(run, func(x, y int) bool {
			px, py := pos(run[x]), pos(run[y])
			if px != py {
				return px < py
			}
			return run[x].Text < run[y].Text
		})
		out = append(out, run...)
		run = run[:0]
	}

	for _, e := range edits {
		if e.Op == OpEqual {
			flush()
			out = append(out, e)
			continue
		}
		run = append(run, e)
	}
	flush()

	return out
}

func pos(e Edit) int {
	if e.Op == OpInsert {
		return e.NewLine
	}
	return e.OldLine
}
