package ai

import (
	"math/rand"

	"netarena/pkg/core"
)

// Blackboard 一次思考过程中共享的数据
type Blackboard struct {
	Map    *core.GameMap
	Self   core.PlayerState
	Others []core.PlayerState
	RNG    *rand.Rand
	Config *Config

	Target    *core.PlayerState
	NextInput core.Input

	// 游荡方向在多次思考之间保持，减少抖动
	WanderDirection int
	WanderTime      float64
}

// grid 玩家所在格子
func grid(s core.PlayerState) core.GridPos {
	return core.PlayerXYToGrid(int(s.X), int(s.Y))
}

func (bb *Blackboard) resetThink(m *core.GameMap, self core.PlayerState, others []core.PlayerState) {
	bb.Map = m
	bb.Self = self
	bb.Others = others
	bb.Target = nil
	bb.NextInput = core.Input{}
}
