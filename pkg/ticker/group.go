package ticker

// GroupInput 组内每个成员一份输入，按成员顺序排列
type GroupInput[T Input[T]] []T

// WithDeltas 逐成员计算增量；previous 缺少的成员视为零值输入
func (g GroupInput[T]) WithDeltas(previous GroupInput[T]) GroupInput[T] {
	out := make(GroupInput[T], len(g))
	for i, in := range g {
		var prev T
		if i < len(previous) {
			prev = previous[i]
		}
		out[i] = in.WithDeltas(prev)
	}
	return out
}

// WithoutDeltas 逐成员清除增量
func (g GroupInput[T]) WithoutDeltas() GroupInput[T] {
	out := make(GroupInput[T], len(g))
	for i, in := range g {
		out[i] = in.WithoutDeltas()
	}
	return out
}

// GroupState 组内每个成员的状态
type GroupState[S State[S]] []S

// ApproxEqual 成员数量相同且逐个近似相等
func (g GroupState[S]) ApproxEqual(other GroupState[S]) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if !g[i].ApproxEqual(other[i]) {
			return false
		}
	}
	return true
}

// DebugDraw 绘制所有成员
func (g GroupState[S]) DebugDraw(c DebugCanvas) {
	for _, s := range g {
		s.DebugDraw(c)
	}
}

// Group 共享同一物理世界的一组实体。
// 每个 tick 先依次驱动所有成员，再调用一次物理步进，之后才读取状态。
type Group[TInput Input[TInput], TState State[TState]] struct {
	members []Tickable[TInput, TState]
	world   Simulator
}

// NewGroup 创建实体组，world 可以为 nil
func NewGroup[TInput Input[TInput], TState State[TState]](world Simulator, members ...Tickable[TInput, TState]) *Group[TInput, TState] {
	return &Group[TInput, TState]{
		members: members,
		world:   world,
	}
}

// Add 追加成员
func (g *Group[TInput, TState]) Add(member Tickable[TInput, TState]) {
	g.members = append(g.members, member)
}

// Len 成员数量
func (g *Group[TInput, TState]) Len() int {
	return len(g.members)
}

func (g *Group[TInput, TState]) MakeState() GroupState[TState] {
	out := make(GroupState[TState], len(g.members))
	for i, m := range g.members {
		out[i] = m.MakeState()
	}
	return out
}

func (g *Group[TInput, TState]) ApplyState(state GroupState[TState]) {
	for i, m := range g.members {
		if i < len(state) {
			m.ApplyState(state[i])
		}
	}
}

func (g *Group[TInput, TState]) Tick(deltaTime float64, input GroupInput[TInput], info TickInfo) {
	for i, m := range g.members {
		var in TInput
		if i < len(input) {
			in = input[i]
		}
		m.Tick(deltaTime, in, info)
	}
	if g.world != nil {
		g.world.Simulate(deltaTime)
	}
}
