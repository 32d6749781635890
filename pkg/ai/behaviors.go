package ai

import (
	"math"

	"netarena/pkg/ai/bt"
	"netarena/pkg/core"
)

// 方向，与 neighborDeltas 下标加一对应
const (
	DirNone = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

// 游荡时保持同一方向的时长（秒）
const wanderDirectionTime = 0.5

// alignTolerance 认为已经对齐格子中心的像素误差
const alignTolerance = 2.0

func directionToInput(dir int) core.Input {
	switch dir {
	case DirUp:
		return core.Input{MoveY: -1}
	case DirDown:
		return core.Input{MoveY: 1}
	case DirLeft:
		return core.Input{MoveX: -1}
	case DirRight:
		return core.Input{MoveX: 1}
	}
	return core.Input{}
}

func manhattan(a, b core.GridPos) int {
	dx := a.GridX - b.GridX
	dy := a.GridY - b.GridY
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// condFindTarget 选择追击范围内最近的玩家
func condFindTarget(bb *Blackboard) bool {
	self := grid(bb.Self)
	best := -1
	bestDist := math.MaxInt
	for i, o := range bb.Others {
		if d := manhattan(self, grid(o)); d <= bb.Config.ChaseRange && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return false
	}
	bb.Target = &bb.Others[best]
	return true
}

// actChase 沿最短路径向目标移动一格
func actChase(bb *Blackboard) bt.Status {
	if bb.Target == nil {
		return bt.StatusFailure
	}
	self := grid(bb.Self)
	next, ok := nextStepToward(bb.Map, self, grid(*bb.Target))
	if !ok {
		return bt.StatusFailure
	}
	bb.NextInput = steerTo(bb.Self, next)

	if bb.Config.DashRange > 0 {
		d := bb.Target.Center().Sub(bb.Self.Center())
		inLine := math.Abs(d.X) < alignTolerance || math.Abs(d.Y) < alignTolerance
		bb.NextInput.Dash = inLine && d.Len() <= bb.Config.DashRange
	}
	return bt.StatusRunning
}

// actWander 随机游荡，方向保持一段时间
func actWander(bb *Blackboard) bt.Status {
	pos := grid(bb.Self)
	if bb.WanderTime > 0 && bb.WanderDirection != DirNone {
		d := neighborDeltas[bb.WanderDirection-1]
		if bb.Map.IsWalkable(pos.GridX+d.GridX, pos.GridY+d.GridY) {
			bb.NextInput = directionToInput(bb.WanderDirection)
			return bt.StatusRunning
		}
	}

	walkable := walkableDirections(bb.Map, pos)
	if len(walkable) == 0 {
		bb.WanderDirection = DirNone
		return bt.StatusRunning // 完全被困，不动
	}
	bb.WanderDirection = walkable[bb.RNG.Intn(len(walkable))]
	bb.WanderTime = wanderDirectionTime
	bb.NextInput = directionToInput(bb.WanderDirection)
	return bt.StatusRunning
}

// steerTo 先对齐当前格子中心的垂直轴，再朝目标格子移动，避免卡在拐角
func steerTo(self core.PlayerState, cell core.GridPos) core.Input {
	ix, iy := core.GridToPlayerXY(cell.GridX, cell.GridY)
	dx := float64(ix) - self.X
	dy := float64(iy) - self.Y

	in := core.Input{}
	if math.Abs(dx) > math.Abs(dy) {
		in.MoveX = math.Copysign(1, dx)
		if math.Abs(dy) > alignTolerance {
			in.MoveY = math.Copysign(1, dy)
		}
	} else if math.Abs(dy) > alignTolerance {
		in.MoveY = math.Copysign(1, dy)
		if math.Abs(dx) > alignTolerance {
			in.MoveX = math.Copysign(1, dx)
		}
	}
	return in
}
