package bt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type board struct {
	visited []string
}

func record(name string, st Status) Action[*board] {
	return func(bb *board) Status {
		bb.visited = append(bb.visited, name)
		return st
	}
}

func TestSelectorStopsAtFirstNonFailure(t *testing.T) {
	bb := &board{}
	tree := &Selector[*board]{Children: []Node[*board]{
		record("a", StatusFailure),
		record("b", StatusRunning),
		record("c", StatusSuccess),
	}}
	assert.Equal(t, StatusRunning, tree.Tick(bb))
	assert.Equal(t, []string{"a", "b"}, bb.visited)
}

func TestSequenceStopsAtFirstNonSuccess(t *testing.T) {
	bb := &board{}
	tree := &Sequence[*board]{Children: []Node[*board]{
		Condition[*board](func(*board) bool { return true }),
		record("a", StatusSuccess),
		record("b", StatusFailure),
		record("c", StatusSuccess),
	}}
	assert.Equal(t, StatusFailure, tree.Tick(bb))
	assert.Equal(t, []string{"a", "b"}, bb.visited)
}

func TestNilNodesFail(t *testing.T) {
	var c Condition[*board]
	var a Action[*board]
	assert.Equal(t, StatusFailure, c.Tick(&board{}))
	assert.Equal(t, StatusFailure, a.Tick(&board{}))
	assert.Equal(t, "running", StatusRunning.String())
}
