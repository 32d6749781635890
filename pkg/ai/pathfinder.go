package ai

import (
	"container/list"

	"netarena/pkg/core"
)

type stepNode struct {
	Pos  core.GridPos
	Prev *stepNode
}

// 上、下、左、右
var neighborDeltas = [...]core.GridPos{{GridX: 0, GridY: -1}, {GridX: 0, GridY: 1}, {GridX: -1, GridY: 0}, {GridX: 1, GridY: 0}}

// nextStepToward 广度优先搜索，返回从 start 走向 target 的第一步
func nextStepToward(m *core.GameMap, start, target core.GridPos) (core.GridPos, bool) {
	if start == target {
		return start, true
	}
	queue := list.New()
	visited := map[core.GridPos]bool{start: true}
	queue.PushBack(&stepNode{Pos: start})

	var targetNode *stepNode
	for queue.Len() > 0 {
		n := queue.Remove(queue.Front()).(*stepNode)
		if n.Pos == target {
			targetNode = n
			break
		}
		for _, d := range neighborDeltas {
			npos := core.GridPos{GridX: n.Pos.GridX + d.GridX, GridY: n.Pos.GridY + d.GridY}
			if visited[npos] || !m.IsWalkable(npos.GridX, npos.GridY) {
				continue
			}
			visited[npos] = true
			queue.PushBack(&stepNode{Pos: npos, Prev: n})
		}
	}

	if targetNode == nil {
		return core.GridPos{}, false
	}
	for targetNode.Prev != nil && targetNode.Prev.Pos != start {
		targetNode = targetNode.Prev
	}
	return targetNode.Pos, true
}

// walkableDirections 当前格子可走的方向
func walkableDirections(m *core.GameMap, pos core.GridPos) []int {
	result := make([]int, 0, 4)
	for dir, d := range neighborDeltas {
		if m.IsWalkable(pos.GridX+d.GridX, pos.GridY+d.GridY) {
			result = append(result, dir+1)
		}
	}
	return result
}
