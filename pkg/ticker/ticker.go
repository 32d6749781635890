package ticker

import (
	"math"
	"reflect"
	"slices"

	"netarena/pkg/track"
)

// timeEpsilon 小于该值的剩余时间不再单独 tick
const timeEpsilon = 1e-9

// Status Ticker 所处阶段
type Status int

const (
	StatusIdle           Status = iota // 尚未开始播放
	StatusPlayingForward               // 正常向前推进
	StatusReconciling                  // 回滚到确认状态并重放
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlayingForward:
		return "playing"
	case StatusReconciling:
		return "reconciling"
	}
	return "unknown"
}

// Flags Seek / Reconcile 选项
type Flags uint8

const (
	// FlagIgnoreDeltas 不计算输入增量，用于预测本地不掌握完整输入历史的远端实体
	FlagIgnoreDeltas Flags = 1 << iota
	// FlagDontConfirm 应用状态但不把它当作确认状态，之后更权威的数据仍可覆盖
	FlagDontConfirm
)

// Has 是否包含 o
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// Stats Ticker 运行统计
type Stats struct {
	Ticks             int     // 所有 tick 数
	ReplayTicks       int     // 回滚重放中的 tick 数
	Seeks             int     // 实际推进了时间的 Seek 次数
	Reconciles        int     // 执行了回滚重放的次数
	SkippedReconciles int     // 预测与确认状态一致而跳过的次数
	StaleReconciles   int     // 早于已确认时间而被忽略的次数
	InputFallbacks    int     // 查询时刻之前没有输入，退回最早输入的 tick 数
	EmptyInputTicks   int     // 输入轨道为空、使用零值输入的 tick 数
	LateInputs        int     // 写入时已早于播放时间的新输入或改变了的输入
	LateReplays       int     // 因迟到输入而回退重放的次数
	SkippedTime       float64 // 超过 MaxTicksPerSeek 被跳过的时间
}

type observerEntry[TState any] struct {
	id  int
	obs CorrectionObserver[TState]
}

// Ticker 绑定一个实体的时间线：记录输入与状态历史，推进到目标时间，
// 在收到权威状态时回滚并按记录的输入确定性重放
type Ticker[TInput Input[TInput], TState State[TState]] struct {
	entity Tickable[TInput, TState]
	cfg    Config

	inputs *track.Track[TInput]
	states *track.Track[TState]

	status        Status
	playbackTime  float64
	confirmedTime float64
	hasConfirmed  bool

	// 最早一个尚未重放的迟到输入
	lateFrom float64
	hasLate  bool

	observers      []observerEntry[TState]
	nextObserverID int

	stats Stats
}

// New 为实体创建 Ticker
func New[TInput Input[TInput], TState State[TState]](entity Tickable[TInput, TState], cfg Config) *Ticker[TInput, TState] {
	cfg = cfg.normalized()
	return &Ticker[TInput, TState]{
		entity: entity,
		cfg:    cfg,
		inputs: track.New[TInput](cfg.Tolerance),
		states: track.New[TState](cfg.Tolerance),
		status: StatusIdle,
	}
}

// Entity 返回绑定的实体
func (t *Ticker[TInput, TState]) Entity() Tickable[TInput, TState] {
	return t.entity
}

// Config 返回参数
func (t *Ticker[TInput, TState]) Config() Config {
	return t.cfg
}

// Status 当前阶段
func (t *Ticker[TInput, TState]) Status() Status {
	return t.status
}

// PlaybackTime 实体当前状态对应的模拟时间
func (t *Ticker[TInput, TState]) PlaybackTime() float64 {
	return t.playbackTime
}

// ConfirmedTime 最近一次确认状态的时间
func (t *Ticker[TInput, TState]) ConfirmedTime() (float64, bool) {
	return t.confirmedTime, t.hasConfirmed
}

// Stats 返回统计
func (t *Ticker[TInput, TState]) Stats() Stats {
	return t.stats
}

// Inputs 输入轨道（只读使用）
func (t *Ticker[TInput, TState]) Inputs() *track.Track[TInput] {
	return t.inputs
}

// States 状态轨道（只读使用）
func (t *Ticker[TInput, TState]) States() *track.Track[TState] {
	return t.states
}

// StateAt 查询历史状态
func (t *Ticker[TInput, TState]) StateAt(time float64) (TState, bool) {
	return t.states.ValueAt(time, t.cfg.Tolerance)
}

// LatestInput 最新输入及其时间
func (t *Ticker[TInput, TState]) LatestInput() (TInput, float64, bool) {
	in, ok := t.inputs.Latest()
	return in, t.inputs.LatestTime(), ok
}

// AddObserver 注册回滚观察者，按注册顺序通知；返回的函数用于注销
func (t *Ticker[TInput, TState]) AddObserver(obs CorrectionObserver[TState]) func() {
	id := t.nextObserverID
	t.nextObserverID++
	t.observers = append(t.observers, observerEntry[TState]{id: id, obs: obs})
	return func() {
		for i, e := range t.observers {
			if e.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

// Reset 清空历史，从 time 开始以实体当前状态播放
func (t *Ticker[TInput, TState]) Reset(time float64) {
	t.inputs.Clear()
	t.states.Clear()
	t.hasConfirmed = false
	t.confirmedTime = 0
	t.hasLate = false
	t.start(time)
}

func (t *Ticker[TInput, TState]) start(time float64) {
	t.playbackTime = time
	t.status = StatusPlayingForward
	t.states.Set(time, t.entity.MakeState())
}

// InsertInput 写入输入；同一时间戳重复写入以最后一次为准。
// 早于播放时间的新输入会被记下，由 ReplayLateInputs 或下一次 Reconcile 重放。
func (t *Ticker[TInput, TState]) InsertInput(input TInput, time float64) {
	if t.status != StatusIdle && time < t.playbackTime-t.cfg.Tolerance {
		old, ok := t.inputs.ValueAt(time, t.cfg.Tolerance)
		if !ok || !reflect.DeepEqual(old, input) {
			t.stats.LateInputs++
			if !t.hasLate || time < t.lateFrom {
				t.lateFrom = time
			}
			t.hasLate = true
		}
	}
	t.inputs.Set(time, input)
}

// HasLateInputs 是否有尚未重放的迟到输入
func (t *Ticker[TInput, TState]) HasLateInputs() bool {
	return t.hasLate
}

// ReplayLateInputs 回退到最早迟到输入之前记录的状态，按完整输入历史重放到当前播放时间。
// 没有迟到输入或历史状态已被裁剪时返回 false。
func (t *Ticker[TInput, TState]) ReplayLateInputs(flags Flags) bool {
	if !t.hasLate {
		return false
	}
	t.hasLate = false

	idx := t.states.ClosestIndexBefore(t.lateFrom, t.cfg.Tolerance)
	if idx == track.NotFound {
		if t.states.Len() == 0 {
			return false
		}
		idx = 0
	}
	from, state := t.states.At(idx)
	if from >= t.playbackTime-timeEpsilon {
		return false
	}

	previous := t.playbackTime
	t.notifyBefore(previous)

	t.status = StatusReconciling
	t.entity.ApplyState(state)
	t.states.RemoveAfter(from)
	t.playbackTime = from
	t.advance(previous, flags, true)
	t.status = StatusPlayingForward
	t.stats.LateReplays++

	t.notifyAfter(previous)
	t.prune()
	return true
}

// InsertInputPack 写入一组输入，返回比原最新输入更新的条目数
func (t *Ticker[TInput, TState]) InsertInputPack(pack InputPack[TInput]) int {
	latest := t.inputs.LatestTime()
	fresh := 0
	n := min(len(pack.Inputs), len(pack.Times))
	for i := 0; i < n; i++ {
		if pack.Times[i] > latest+t.cfg.Tolerance {
			fresh++
		}
		t.InsertInput(pack.Inputs[i], pack.Times[i])
	}
	return fresh
}

// MakeInputPack 返回最新输入之前 maxAge 秒内的全部输入
func (t *Ticker[TInput, TState]) MakeInputPack(maxAge float64) InputPack[TInput] {
	pack := InputPack[TInput]{}
	if t.inputs.Len() == 0 {
		return pack
	}
	minTime := t.inputs.LatestTime() - maxAge
	for tm, in := range t.inputs.Since(minTime) {
		pack.Inputs = append(pack.Inputs, in)
		pack.Times = append(pack.Times, tm)
	}
	return pack
}

// Seek 把实体推进到 target。
// 正常播放时时间不会倒退：target 不晚于播放时间时什么也不做。
// 首次调用从最早的输入（若早于 target）或 target 开始。
func (t *Ticker[TInput, TState]) Seek(target float64, flags Flags) {
	if t.status == StatusIdle {
		start := target
		if earliest := t.inputs.EarliestTime(); earliest < target {
			start = earliest
		}
		t.start(start)
	}
	if target <= t.playbackTime {
		return
	}
	t.stats.Seeks++
	t.advance(target, flags, t.status == StatusReconciling)
	t.prune()
}

// Reconcile 应用 time 时刻的权威状态。
// 预测状态与之近似相等时不做任何事；否则回滚到 time，按记录的输入重放到原播放时间。
// 返回是否执行了回滚。
func (t *Ticker[TInput, TState]) Reconcile(state TState, time float64, flags Flags) bool {
	tol := t.cfg.Tolerance
	confirm := !flags.Has(FlagDontConfirm)

	if t.hasConfirmed && time < t.confirmedTime-tol {
		t.stats.StaleReconciles++
		return false
	}

	if t.status == StatusIdle {
		t.entity.ApplyState(state)
		t.playbackTime = time
		t.status = StatusPlayingForward
		t.states.Set(time, state)
		if confirm {
			t.markConfirmed(time)
		}
		return true
	}

	if predicted, ok := t.states.ValueAt(time, tol); ok && predicted.ApproxEqual(state) {
		t.stats.SkippedReconciles++
		if confirm {
			t.markConfirmed(time)
		}
		return false
	}

	// 确认时间晚于播放时间时实体直接跳到新时刻，两侧没有同一时刻的位置可比，不通知观察者
	previous := t.playbackTime
	notify := time <= previous+tol
	if notify {
		t.notifyBefore(previous)
	}

	t.status = StatusReconciling
	t.entity.ApplyState(state)
	t.states.RemoveAfter(time)
	t.states.Set(time, state)
	t.playbackTime = time
	if confirm {
		t.markConfirmed(time)
	}
	if t.hasLate && t.lateFrom >= time-tol {
		t.hasLate = false
	}

	target := math.Max(previous, time)
	t.advance(target, flags, true)
	t.status = StatusPlayingForward
	t.stats.Reconciles++

	if notify {
		t.notifyAfter(target)
	}

	t.prune()
	return true
}

// DebugDraw 绘制状态历史
func (t *Ticker[TInput, TState]) DebugDraw(c DebugCanvas) {
	for _, s := range t.states.All() {
		s.DebugDraw(c)
	}
}

// 观察者可能在回调中注销自己，遍历副本
func (t *Ticker[TInput, TState]) notifyBefore(time float64) {
	if len(t.observers) == 0 {
		return
	}
	state := t.entity.MakeState()
	for _, e := range slices.Clone(t.observers) {
		e.obs.BeforeCorrection(state, time)
	}
}

func (t *Ticker[TInput, TState]) notifyAfter(time float64) {
	if len(t.observers) == 0 {
		return
	}
	state := t.entity.MakeState()
	for _, e := range slices.Clone(t.observers) {
		e.obs.AfterCorrection(state, time)
	}
}

func (t *Ticker[TInput, TState]) markConfirmed(time float64) {
	if !t.hasConfirmed || time > t.confirmedTime {
		t.confirmedTime = time
	}
	t.hasConfirmed = true
}

// advance 从播放时间逐 tick 推进到 target，tick 在输入变化处切分
func (t *Ticker[TInput, TState]) advance(target float64, flags Flags, replay bool) {
	now := t.playbackTime
	ticks := 0

	for target-now > timeEpsilon {
		if ticks >= t.cfg.MaxTicksPerSeek {
			t.stats.SkippedTime += target - now
			now = target
			t.states.Set(now, t.entity.MakeState())
			break
		}

		// tick 起点总是落在输入时间戳上，这里用精确匹配，避免输入被提前生效
		idx := t.inputs.ClosestIndexBeforeOrEarliest(now, timeEpsilon)
		input := t.inputFor(idx, now, flags)
		end := math.Min(math.Min(now+t.cfg.MaxTickDelta, t.nextBoundary(idx, now)), target)
		if target-end <= timeEpsilon {
			end = target
		}

		info := TickInfo{
			DeltaTime:  end - now,
			Time:       now,
			IsRealtime: !replay && end >= target,
			IsReplay:   replay,
		}
		t.entity.Tick(info.DeltaTime, input, info)

		now = end
		t.playbackTime = now
		t.states.Set(now, t.entity.MakeState())

		ticks++
		t.stats.Ticks++
		if replay {
			t.stats.ReplayTicks++
		}
	}
	t.playbackTime = target
}

// inputFor 返回 now 时刻使用的输入。
// 从输入时间戳开始的 tick 带增量，同一输入的后续 tick 不带增量。
func (t *Ticker[TInput, TState]) inputFor(idx int, now float64, flags Flags) TInput {
	if idx == track.NotFound {
		t.stats.EmptyInputTicks++
		var zero TInput
		return zero.WithoutDeltas()
	}

	inTime, input := t.inputs.At(idx)
	if inTime > now+timeEpsilon {
		t.stats.InputFallbacks++
	}
	if flags.Has(FlagIgnoreDeltas) || math.Abs(inTime-now) > timeEpsilon {
		return input.WithoutDeltas()
	}

	var previous TInput
	if idx > 0 {
		previous = t.inputs.ValueAtIndex(idx - 1)
	}
	return input.WithDeltas(previous)
}

// nextBoundary 返回 now 之后第一个输入时间戳，没有则为 +Inf
func (t *Ticker[TInput, TState]) nextBoundary(idx int, now float64) float64 {
	if idx == track.NotFound {
		return math.Inf(1)
	}
	for j := idx; j < t.inputs.Len(); j++ {
		if tm := t.inputs.TimeAt(j); tm > now+timeEpsilon {
			return tm
		}
	}
	return math.Inf(1)
}

// prune 丢弃超出历史长度的数据。
// 最近的确认状态总是保留。确认时间之后的输入在再一个历史长度内保留，
// 更早的确认视为过期，输入只按历史长度裁剪，避免长期收不到确认时无限增长。
// 裁剪点生效的输入及其前一个（用于计算增量）总是保留。
func (t *Ticker[TInput, TState]) prune() {
	tol := t.cfg.Tolerance
	minTime := t.playbackTime - t.cfg.HistoryLength

	if t.states.EarliestTime() < minTime-tol {
		var confirmed TState
		var confirmedAt float64
		keepConfirmed := false
		if t.hasConfirmed && t.confirmedTime < minTime-tol {
			if i := t.states.IndexAt(t.confirmedTime, tol); i != track.NotFound {
				confirmedAt, confirmed = t.states.At(i)
				keepConfirmed = true
			}
		}
		t.states.Prune(minTime-tol, math.Inf(1))
		if keepConfirmed {
			t.states.Set(confirmedAt, confirmed)
		}
	}

	inputMin := minTime
	if t.hasConfirmed && t.confirmedTime >= minTime-t.cfg.HistoryLength {
		inputMin = math.Min(inputMin, t.confirmedTime)
	}
	if i := t.inputs.ClosestIndexBefore(inputMin, tol); i > 1 {
		t.inputs.Prune(t.inputs.TimeAt(i-1), math.Inf(1))
	}
}
