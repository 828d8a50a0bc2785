package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLines_Insert(t *testing.T) {
	result := Lines("hello\nworld", "hello\nthere\nworld")

	assert.False(t, result.Truncated)
	assert.Equal(t, []Edit{
		{Op: OpEqual, Text: "hello", OldLine: 0, NewLine: 0},
		{Op: OpInsert, Text: "there", OldLine: -1, NewLine: 1},
		{Op: OpEqual, Text: "world", OldLine: 1, NewLine: 2},
	}, result.Edits)

	added, removed := result.Stats()
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, removed)
}

func TestLines_Delete(t *testing.T) {
	result := Lines("a\nb\nc", "a\nc")

	assert.Equal(t, []Edit{
		{Op: OpEqual, Text: "a", OldLine: 0, NewLine: 0},
		{Op: OpDelete, Text: "b", OldLine: 1, NewLine: -1},
		{Op: OpEqual, Text: "c", OldLine: 2, NewLine: 1},
	}, result.Edits)
}

func TestLines_Identical(t *testing.T) {
	result := Lines("a\nb", "a\nb")
	for _, e := range result.Edits {
		assert.Equal(t, OpEqual, e.Op)
	}
	added, removed := result.Stats()
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, removed)
}

func TestLines_Empty(t *testing.T) {
	assert.Empty(t, Lines("", "").Edits)

	result := Lines("", "a\nb")
	assert.Equal(t, []Edit{
		{Op: OpInsert, Text: "a", OldLine: -1, NewLine: 0},
		{Op: OpInsert, Text: "b", OldLine: -1, NewLine: 1},
	}, result.Edits)

	result = Lines("a\nb", "")
	assert.Equal(t, []Edit{
		{Op: OpDelete, Text: "a", OldLine: 0, NewLine: -1},
		{Op: OpDelete, Text: "b", OldLine: 1, NewLine: -1},
	}, result.Edits)
}

// swap flips a diff's direction: inserts become deletes and the line
// indexes change sides.
func swap(result Result) Result {
	edits := make([]Edit, len(result.Edits))
	for i, e := range result.Edits {
		flipped := Edit{Text: e.Text, OldLine: e.NewLine, NewLine: e.OldLine}
		switch e.Op {
		case OpInsert:
			flipped.Op = OpDelete
		case OpDelete:
			flipped.Op = OpInsert
		default:
			flipped.Op = OpEqual
		}
		edits[i] = flipped
	}
	return Result{Edits: edits, Truncated: result.Truncated}
}

func TestLines_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"hello\nworld", "hello\nthere\nworld"},
		{"a\nb\nc\nd", "a\nx\nc\ny"},
		{"", "a\nb\nc"},
		{"one\ntwo\nthree", "three\ntwo\none"},
		{"x\ny\nz", "p\nq"},
		{"same\nsame\nsame", "same\nother\nsame"},
	}

	for _, pair := range pairs {
		forward := Lines(pair[0], pair[1])
		backward := Lines(pair[1], pair[0])
		assert.Equal(t, forward, swap(backward), "pair %q -> %q", pair[0], pair[1])
	}
}

func TestLinesN_Truncation(t *testing.T) {
	result := LinesN("a\nb\nc\nd", "a\nb", 2)

	assert.True(t, result.Truncated)
	for _, e := range result.Edits {
		assert.Equal(t, OpEqual, e.Op)
	}
}
