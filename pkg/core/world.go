package core

// World 共享物理世界，维持玩家之间的最小间距。
// 作为 ticker.Simulator 由 ticker.Group 在每个 tick 所有成员移动之后调用一次。
type World struct {
	Map       *GameMap
	members   []*Player
	obstacles func() []PlayerState

	Steps int // 已执行的物理步进次数
}

// NewWorld 创建物理世界
func NewWorld(m *GameMap) *World {
	return &World{Map: m}
}

// Add 加入受物理步进影响的玩家
func (w *World) Add(p *Player) {
	w.members = append(w.members, p)
}

// Remove 按 ID 移除玩家
func (w *World) Remove(id int) {
	for i, p := range w.members {
		if p.ID == id {
			w.members = append(w.members[:i], w.members[i+1:]...)
			return
		}
	}
}

// Members 当前成员
func (w *World) Members() []*Player {
	return w.members
}

// SetObstacles 设置只读障碍（例如其他由自身时间线驱动的玩家），成员会被推离它们
func (w *World) SetObstacles(fn func() []PlayerState) {
	w.obstacles = fn
}

// Simulate 物理步进
func (w *World) Simulate(deltaTime float64) {
	w.Steps++

	for i := 0; i < len(w.members); i++ {
		for j := i + 1; j < len(w.members); j++ {
			separate(w.members[i], w.members[j])
		}
	}

	if w.obstacles == nil {
		return
	}
	for _, o := range w.obstacles() {
		for _, p := range w.members {
			pushAway(p, o)
		}
	}
}

// separate 两个成员各自后退一半重叠距离
func separate(a, b *Player) {
	sa, sb := a.MakeState(), b.MakeState()
	nx, ny, overlap := overlapOf(sa, sb)
	if overlap <= 0 {
		return
	}
	half := overlap / 2
	a.SetPosition(sa.X-nx*half, sa.Y-ny*half)
	b.SetPosition(sb.X+nx*half, sb.Y+ny*half)
}

// pushAway 成员独自后退整段重叠距离
func pushAway(p *Player, o PlayerState) {
	s := p.MakeState()
	nx, ny, overlap := overlapOf(o, s)
	if overlap <= 0 {
		return
	}
	p.SetPosition(s.X+nx*overlap, s.Y+ny*overlap)
}

// overlapOf 返回从 a 指向 b 的单位方向与重叠距离；完全重合时沿 X 轴分开
func overlapOf(a, b PlayerState) (float64, float64, float64) {
	d := b.Center().Sub(a.Center())
	dist := d.Len()
	if dist >= PlayerSeparation {
		return 0, 0, 0
	}
	if dist == 0 {
		return 1, 0, PlayerSeparation
	}
	return d.X / dist, d.Y / dist, PlayerSeparation - dist
}
