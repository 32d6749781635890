package ticker

import "image/color"

// Input 单帧输入需要满足的约束。
// WithoutDeltas(WithDeltas(a, b)) 必须还原 a 的绝对内容。
type Input[T any] interface {
	// WithDeltas 返回相对 previous 计算出增量字段（例如"本帧按下"）的副本
	WithDeltas(previous T) T
	// WithoutDeltas 返回清除增量字段的副本，重复应用不会产生一次性效果
	WithoutDeltas() T
}

// InputSource 读取本地输入设备，是唯一允许读取实时输入的地方
type InputSource[T any] interface {
	GenerateLocal() T
}

// DebugCanvas 调试绘制目标
type DebugCanvas interface {
	DrawPoint(x, y float64, clr color.Color)
	DrawLine(x0, y0, x1, y1 float64, clr color.Color)
}

// State 单帧状态快照需要满足的约束
type State[T any] interface {
	// ApproxEqual 判断两个状态是否在误差范围内相等，用于跳过无意义的回滚
	ApproxEqual(other T) bool
	DebugDraw(c DebugCanvas)
}

// TickInfo 单次 tick 的上下文，不会被保存
type TickInfo struct {
	DeltaTime  float64
	Time       float64 // tick 开始时刻
	IsRealtime bool    // 本次 Seek 的最后一个 tick，且不在回滚重放中
	IsReplay   bool    // 回滚后重放历史
}

// Tickable 可被 Ticker 驱动的实体。
// Tick 不得读取墙钟时间，同一帧内可能被多次调用，也可能在历史状态上调用。
type Tickable[TInput any, TState any] interface {
	MakeState() TState
	ApplyState(state TState)
	Tick(deltaTime float64, input TInput, info TickInfo)
}

// Simulator 外部物理世界的步进接口
type Simulator interface {
	Simulate(deltaTime float64)
}

// SimulatorFunc 函数形式的 Simulator
type SimulatorFunc func(deltaTime float64)

func (f SimulatorFunc) Simulate(deltaTime float64) { f(deltaTime) }

// CorrectionObserver 回滚前后收到通知（例如插值器）
type CorrectionObserver[TState any] interface {
	BeforeCorrection(state TState, time float64)
	AfterCorrection(state TState, time float64)
}
