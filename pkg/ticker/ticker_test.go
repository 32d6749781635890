package ticker

import (
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type axisInput struct {
	Axis        float64
	Jump        bool
	JumpPressed bool
}

func (i axisInput) WithDeltas(previous axisInput) axisInput {
	i.JumpPressed = i.Jump && !previous.Jump
	return i
}

func (i axisInput) WithoutDeltas() axisInput {
	i.JumpPressed = false
	return i
}

type bodyState struct {
	X     float64
	V     float64
	Jumps int
}

func (s bodyState) ApproxEqual(o bodyState) bool {
	return math.Abs(s.X-o.X) < 1e-6 && math.Abs(s.V-o.V) < 1e-6 && s.Jumps == o.Jumps
}

func (s bodyState) DebugDraw(c DebugCanvas) {
	c.DrawPoint(s.X, 0, color.White)
}

type body struct {
	state bodyState
	ticks []TickInfo
	seen  []axisInput
}

func (b *body) MakeState() bodyState   { return b.state }
func (b *body) ApplyState(s bodyState) { b.state = s }
func (b *body) Tick(dt float64, in axisInput, info TickInfo) {
	b.state.V = in.Axis * 10
	b.state.X += b.state.V * dt
	if in.JumpPressed {
		b.state.Jumps++
	}
	b.ticks = append(b.ticks, info)
	b.seen = append(b.seen, in)
}

func testConfig() Config {
	return Config{
		HistoryLength:   10,
		MaxTickDelta:    1.0 / 60,
		MaxTicksPerSeek: 10000,
		Tolerance:       0.0005,
	}
}

func insertInputs(tk *Ticker[axisInput, bodyState]) {
	tk.InsertInput(axisInput{Axis: 1}, 0)
	tk.InsertInput(axisInput{Axis: -1, Jump: true}, 0.3)
	tk.InsertInput(axisInput{Axis: 0.5}, 0.7)
}

func playFrames(tk *Ticker[axisInput, bodyState], frames int, fps float64) {
	for f := 1; f <= frames; f++ {
		tk.Seek(float64(f)/fps, 0)
	}
}

func TestSeekSubdividesAtInputBoundaries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTickDelta = 1
	b := &body{}
	tk := New[axisInput, bodyState](b, cfg)

	tk.InsertInput(axisInput{Axis: 0}, 0.0)
	tk.InsertInput(axisInput{Axis: 1}, 0.1)
	tk.InsertInput(axisInput{Axis: 0}, 0.2)
	tk.Seek(0.25, 0)

	require.Len(t, b.ticks, 3)
	assert.InDelta(t, 0.0, b.ticks[0].Time, 1e-12)
	assert.InDelta(t, 0.1, b.ticks[1].Time, 1e-12)
	assert.InDelta(t, 0.2, b.ticks[2].Time, 1e-12)
	assert.InDelta(t, 0.1, b.ticks[0].DeltaTime, 1e-12)
	assert.InDelta(t, 0.1, b.ticks[1].DeltaTime, 1e-12)
	assert.InDelta(t, 0.05, b.ticks[2].DeltaTime, 1e-12)
	assert.False(t, b.ticks[0].IsRealtime)
	assert.False(t, b.ticks[1].IsRealtime)
	assert.True(t, b.ticks[2].IsRealtime)
	assert.InDelta(t, 1.0, b.state.X, 1e-9)
	assert.Equal(t, 0.25, tk.PlaybackTime())
}

func TestSeekRespectsMaxTickDelta(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTickDelta = 0.1
	b := &body{}
	tk := New[axisInput, bodyState](b, cfg)
	tk.Reset(0)

	tk.Seek(0.35, 0)
	require.Len(t, b.ticks, 4)
	for _, info := range b.ticks {
		assert.LessOrEqual(t, info.DeltaTime, 0.1+1e-12)
	}
	assert.Equal(t, 4, tk.Stats().EmptyInputTicks)
}

func TestSeekDoesNotMoveBackward(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	tk.Seek(0.5, 0)
	n := len(b.ticks)
	x := b.state.X

	tk.Seek(0.4, 0)
	tk.Seek(0.5, 0)
	assert.Len(t, b.ticks, n)
	assert.Equal(t, x, b.state.X)
	assert.Equal(t, 0.5, tk.PlaybackTime())
}

func TestFirstSeekWithoutInputsStartsAtTarget(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	assert.Equal(t, StatusIdle, tk.Status())

	tk.Seek(3, 0)
	assert.Empty(t, b.ticks)
	assert.Equal(t, 3.0, tk.PlaybackTime())
	assert.Equal(t, StatusPlayingForward, tk.Status())
}

func TestDeterministicReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	type timed struct {
		in axisInput
		t  float64
	}
	var inputs []timed
	for tm := 0.0; tm < 2; tm += 0.05 + rng.Float64()*0.1 {
		inputs = append(inputs, timed{axisInput{Axis: rng.Float64()*2 - 1, Jump: rng.Intn(2) == 0}, tm})
	}

	run := func(frameTimes []float64) bodyState {
		b := &body{}
		tk := New[axisInput, bodyState](b, testConfig())
		for _, in := range inputs {
			tk.InsertInput(in.in, in.t)
		}
		for _, ft := range frameTimes {
			tk.Seek(ft, 0)
		}
		return b.state
	}

	frames := []float64{}
	for tm := 0.0; tm < 2; tm += 1.0 / 60 {
		frames = append(frames, tm)
	}
	frames = append(frames, 2)

	first := run(frames)
	second := run(frames)
	assert.Equal(t, first, second)

	irregular := []float64{0.013, 0.4, 0.41, 1.3, 2}
	assert.True(t, first.ApproxEqual(run(irregular)))
}

func TestDeltasAppliedOncePerInput(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	tk.InsertInput(axisInput{}, 0)
	tk.InsertInput(axisInput{Jump: true}, 0.1)
	tk.InsertInput(axisInput{Jump: true}, 0.2)
	tk.InsertInput(axisInput{}, 0.3)
	tk.InsertInput(axisInput{Jump: true}, 0.4)
	playFrames(tk, 30, 60)

	assert.Equal(t, 2, b.state.Jumps)

	remote := &body{}
	rt := New[axisInput, bodyState](remote, testConfig())
	rt.InsertInput(axisInput{Jump: true}, 0.1)
	rt.Seek(0.5, FlagIgnoreDeltas)
	assert.Equal(t, 0, remote.state.Jumps)
}

func TestInputFallbackToEarliest(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	tk.Reset(0)
	tk.InsertInput(axisInput{Axis: 1}, 1)

	tk.Seek(0.5, 0)
	assert.Greater(t, tk.Stats().InputFallbacks, 0)
	assert.InDelta(t, 5.0, b.state.X, 1e-9)
	for _, in := range b.seen {
		assert.Equal(t, 1.0, in.Axis)
	}
}

func TestReconcileSkipsMatchingState(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	tm, predicted := tk.States().At(tk.States().Len() / 2)
	final := b.state
	ticks := len(b.ticks)

	changed := tk.Reconcile(predicted, tm, 0)
	assert.False(t, changed)
	assert.Equal(t, final, b.state)
	assert.Len(t, b.ticks, ticks)
	assert.Equal(t, 1, tk.Stats().SkippedReconciles)
	confirmed, ok := tk.ConfirmedTime()
	require.True(t, ok)
	assert.Equal(t, tm, confirmed)
}

func TestReconcileReplaysFromConfirmedState(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	tm, predicted := tk.States().At(tk.States().Len() / 2)
	confirmed := predicted
	confirmed.X += 3
	confirmed.Jumps = 5

	require.True(t, tk.Reconcile(confirmed, tm, 0))
	assert.Equal(t, 1.0, tk.PlaybackTime())
	assert.Equal(t, StatusPlayingForward, tk.Status())
	assert.Greater(t, tk.Stats().ReplayTicks, 0)

	for _, info := range b.ticks[len(b.ticks)-tk.Stats().ReplayTicks:] {
		assert.True(t, info.IsReplay)
		assert.False(t, info.IsRealtime)
	}

	ref := &body{state: confirmed}
	rt := New[axisInput, bodyState](ref, testConfig())
	rt.Reset(tm)
	insertInputs(rt)
	rt.Seek(1.0, 0)

	assert.True(t, ref.state.ApproxEqual(b.state), "got %+v want %+v", b.state, ref.state)
	stored, ok := tk.StateAt(tm)
	require.True(t, ok)
	assert.Equal(t, confirmed, stored)
}

func TestReconcileIgnoresStaleState(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	require.True(t, tk.Reconcile(bodyState{X: 100}, 0.6, 0))
	after := b.state

	assert.False(t, tk.Reconcile(bodyState{X: -100}, 0.2, 0))
	assert.Equal(t, after, b.state)
	assert.Equal(t, 1, tk.Stats().StaleReconciles)
}

func TestReconcileDontConfirm(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	require.True(t, tk.Reconcile(bodyState{X: 50}, 0.6, FlagDontConfirm))
	_, ok := tk.ConfirmedTime()
	assert.False(t, ok)

	// 更早的权威状态仍然可以覆盖临时状态
	require.True(t, tk.Reconcile(bodyState{X: 1}, 0.4, 0))
	confirmed, ok := tk.ConfirmedTime()
	require.True(t, ok)
	assert.Equal(t, 0.4, confirmed)
	assert.Less(t, b.state.X, 50.0)
}

func TestReconcileFromIdle(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())

	require.True(t, tk.Reconcile(bodyState{X: 7}, 2, 0))
	assert.Equal(t, 7.0, b.state.X)
	assert.Equal(t, 2.0, tk.PlaybackTime())
	assert.Equal(t, StatusPlayingForward, tk.Status())
}

type recorder struct {
	name   string
	events *[]string
	before []float64
}

func (r *recorder) BeforeCorrection(s bodyState, tm float64) {
	*r.events = append(*r.events, r.name+":before")
	r.before = append(r.before, s.X)
}

func (r *recorder) AfterCorrection(s bodyState, tm float64) {
	*r.events = append(*r.events, r.name+":after")
}

func TestObserversNotifiedInOrder(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	var events []string
	a := &recorder{name: "a", events: &events}
	c := &recorder{name: "c", events: &events}
	tk.AddObserver(a)
	unregister := tk.AddObserver(c)

	x := b.state.X
	tk.Reconcile(bodyState{X: 10}, 0.5, 0)
	assert.Equal(t, []string{"a:before", "c:before", "a:after", "c:after"}, events)
	assert.Equal(t, []float64{x}, a.before)

	events = events[:0]
	unregister()
	tk.Reconcile(bodyState{X: 20}, 0.6, 0)
	assert.Equal(t, []string{"a:before", "a:after"}, events)
}

type unregistering struct {
	recorder
	unregister func()
}

func (u *unregistering) BeforeCorrection(s bodyState, tm float64) {
	u.recorder.BeforeCorrection(s, tm)
	u.unregister()
}

func TestObserverMayUnregisterDuringCorrection(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	var events []string
	a := &unregistering{recorder: recorder{name: "a", events: &events}}
	a.unregister = tk.AddObserver(a)
	tk.AddObserver(&recorder{name: "c", events: &events})

	// a 在回调中注销自己，c 仍然收到通知
	tk.Reconcile(bodyState{X: 10}, 0.5, 0)
	assert.Equal(t, []string{"a:before", "c:before", "c:after"}, events)

	events = events[:0]
	tk.Reconcile(bodyState{X: 20}, 0.6, 0)
	assert.Equal(t, []string{"c:before", "c:after"}, events)
}

type timedRecorder struct {
	before, after []float64
}

func (r *timedRecorder) BeforeCorrection(s bodyState, tm float64) { r.before = append(r.before, tm) }
func (r *timedRecorder) AfterCorrection(s bodyState, tm float64)  { r.after = append(r.after, tm) }

func TestReconcileObserversCompareSameTime(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 30, 60)

	rec := &timedRecorder{}
	tk.AddObserver(rec)

	tk.Reconcile(bodyState{X: 3}, 0.25, 0)
	assert.Equal(t, []float64{0.5}, rec.before)
	assert.Equal(t, []float64{0.5}, rec.after)

	// 确认状态晚于播放时间：实体直接跳到新时刻，不通知观察者
	require.True(t, tk.Reconcile(bodyState{X: 9}, 0.8, 0))
	assert.Equal(t, 0.8, tk.PlaybackTime())
	assert.Len(t, rec.before, 1)
	assert.Len(t, rec.after, 1)
}

func TestInsertInputPack(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)

	pack := tk.MakeInputPack(0.45)
	require.Equal(t, []float64{0.3, 0.7}, pack.Times)
	require.NoError(t, pack.Validate())

	pack.Inputs[0].Axis = 9
	pack.Inputs = append(pack.Inputs, axisInput{Axis: 2})
	pack.Times = append(pack.Times, 0.9)

	fresh := tk.InsertInputPack(pack)
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 4, tk.Inputs().Len())
	v, ok := tk.Inputs().ValueAt(0.3, 0)
	require.True(t, ok)
	assert.Equal(t, 9.0, v.Axis)

	assert.Empty(t, New[axisInput, bodyState](&body{}, testConfig()).MakeInputPack(1).Times)
}

func TestInputPackValidate(t *testing.T) {
	bad := InputPack[axisInput]{Inputs: []axisInput{{}}, Times: []float64{0, 1}}
	assert.ErrorIs(t, bad.Validate(), ErrMalformedPack)

	unordered := InputPack[axisInput]{Inputs: []axisInput{{}, {}}, Times: []float64{1, 0}}
	assert.ErrorIs(t, unordered.Validate(), ErrMalformedPack)

	latest, ok := InputPack[axisInput]{Inputs: []axisInput{{}, {}}, Times: []float64{1, 2}}.LatestTime()
	require.True(t, ok)
	assert.Equal(t, 2.0, latest)
}

func TestMaxTicksPerSeekSkipsRemainder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTicksPerSeek = 5
	cfg.MaxTickDelta = 0.01
	b := &body{}
	tk := New[axisInput, bodyState](b, cfg)
	tk.Reset(0)

	tk.Seek(1, 0)
	assert.Len(t, b.ticks, 5)
	assert.Equal(t, 1.0, tk.PlaybackTime())
	assert.InDelta(t, 0.95, tk.Stats().SkippedTime, 1e-9)
	_, ok := tk.StateAt(1)
	assert.True(t, ok)
}

func TestPruneKeepsConfirmedState(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLength = 1
	b := &body{}
	tk := New[axisInput, bodyState](b, cfg)
	for i := 0; i < 60; i++ {
		tk.InsertInput(axisInput{Axis: float64(i%3) - 1}, float64(i)*0.1)
	}
	playFrames(tk, 60, 60)
	tk.Reconcile(bodyState{X: 42}, 0.5, 0)

	// 确认仍在保留期内：确认时间之后的输入全部保留
	playFrames(tk, 120, 60)
	assert.LessOrEqual(t, tk.Inputs().EarliestTime(), 0.5)

	playFrames(tk, 300, 60)
	assert.Equal(t, 5.0, tk.PlaybackTime())

	confirmed, ok := tk.StateAt(0.5)
	require.True(t, ok)
	assert.Equal(t, 42.0, confirmed.X)
	assert.GreaterOrEqual(t, tk.States().TimeAt(1), 4.0-cfg.Tolerance)

	// 过期的确认不再阻止输入裁剪
	assert.GreaterOrEqual(t, tk.Inputs().EarliestTime(), 3.8-1e-9)
}

func TestPruneBoundsInputsWhileUnconfirmed(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLength = 2
	b := &body{}
	tk := New[axisInput, bodyState](b, cfg)
	tk.InsertInput(axisInput{Axis: 1}, 0)
	tk.Seek(0.1, 0)
	tk.Reconcile(bodyState{X: 1}, 0.1, 0)

	for f := 7; f <= 60*60; f++ {
		now := float64(f) / 60
		tk.InsertInput(axisInput{Axis: float64(f%3) - 1}, now)
		tk.Seek(now, 0)
		if f%6 == 0 {
			tk.Reconcile(bodyState{X: float64(f)}, now-0.05, FlagDontConfirm)
		}
		require.LessOrEqual(t, tk.Inputs().Len(), 2*int(cfg.HistoryLength*60)+3)
	}

	confirmed, ok := tk.ConfirmedTime()
	require.True(t, ok)
	assert.Equal(t, 0.1, confirmed)
	assert.LessOrEqual(t, tk.Inputs().Len(), int(cfg.HistoryLength*60)+3)
}

func TestPruneBoundsHistoryWithoutConfirmation(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLength = 1
	b := &body{}
	tk := New[axisInput, bodyState](b, cfg)
	for i := 0; i < 60; i++ {
		tk.InsertInput(axisInput{Axis: 1}, float64(i)*0.1)
	}
	playFrames(tk, 300, 60)

	assert.GreaterOrEqual(t, tk.States().EarliestTime(), 4.0-cfg.Tolerance)
	assert.GreaterOrEqual(t, tk.Inputs().EarliestTime(), 3.8-1e-9)
	assert.LessOrEqual(t, tk.Inputs().EarliestTime(), 4.0)
}

func TestLateInputIsReplayed(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	tk.InsertInput(axisInput{}, 0)
	tk.Seek(0.5, 0)
	assert.False(t, tk.ReplayLateInputs(0))

	tk.InsertInput(axisInput{}, 0)
	assert.Equal(t, 0, tk.Stats().LateInputs)

	tk.InsertInput(axisInput{Axis: 1, Jump: true}, 0.2)
	assert.Equal(t, 1, tk.Stats().LateInputs)
	require.True(t, tk.HasLateInputs())

	require.True(t, tk.ReplayLateInputs(0))
	assert.False(t, tk.HasLateInputs())
	assert.Equal(t, 0.5, tk.PlaybackTime())
	assert.Equal(t, StatusPlayingForward, tk.Status())
	assert.Equal(t, 1, tk.Stats().LateReplays)

	ref := &body{}
	rt := New[axisInput, bodyState](ref, testConfig())
	rt.InsertInput(axisInput{}, 0)
	rt.InsertInput(axisInput{Axis: 1, Jump: true}, 0.2)
	rt.Seek(0.5, 0)
	assert.True(t, ref.state.ApproxEqual(b.state), "got %+v want %+v", b.state, ref.state)
	assert.Equal(t, 1, b.state.Jumps)
	assert.InDelta(t, 3.0, b.state.X, 1e-9)

	// 重复到达的同一输入不算迟到
	tk.InsertInput(axisInput{Axis: 1, Jump: true}, 0.2)
	assert.Equal(t, 1, tk.Stats().LateInputs)
	assert.False(t, tk.ReplayLateInputs(0))
}

func TestReconcileCoversLateInput(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 60, 60)

	tk.InsertInput(axisInput{Axis: 2}, 0.8)
	require.True(t, tk.HasLateInputs())
	require.True(t, tk.Reconcile(bodyState{X: 1}, 0.75, 0))
	assert.False(t, tk.HasLateInputs())
	assert.InDelta(t, 1+0.05*5+0.2*20, b.state.X, 1e-9)
}

type countingWorld struct {
	steps int
}

func (w *countingWorld) Simulate(dt float64) { w.steps++ }

func TestGroupStepsPhysicsOncePerTick(t *testing.T) {
	world := &countingWorld{}
	a, c := &body{}, &body{}
	group := NewGroup[axisInput, bodyState](world, a)
	group.Add(c)
	require.Equal(t, 2, group.Len())

	cfg := testConfig()
	cfg.MaxTickDelta = 0.1
	tk := New[GroupInput[axisInput], GroupState[bodyState]](group, cfg)
	tk.InsertInput(GroupInput[axisInput]{{Axis: 1}, {Axis: -1, Jump: true}}, 0)
	tk.Seek(0.5, 0)

	assert.Equal(t, 5, world.steps)
	assert.Len(t, a.ticks, 5)
	assert.InDelta(t, 5.0, a.state.X, 1e-9)
	assert.InDelta(t, -5.0, c.state.X, 1e-9)
	assert.Equal(t, 1, c.state.Jumps)

	st, ok := tk.StateAt(0.5)
	require.True(t, ok)
	assert.True(t, st.ApproxEqual(GroupState[bodyState]{a.state, c.state}))
	assert.False(t, st.ApproxEqual(GroupState[bodyState]{a.state}))
}

type canvas struct {
	points int
}

func (c *canvas) DrawPoint(x, y float64, clr color.Color)          { c.points++ }
func (c *canvas) DrawLine(x0, y0, x1, y1 float64, clr color.Color) {}

func TestDebugDrawVisitsHistory(t *testing.T) {
	b := &body{}
	tk := New[axisInput, bodyState](b, testConfig())
	insertInputs(tk)
	playFrames(tk, 10, 60)

	c := &canvas{}
	tk.DebugDraw(c)
	assert.Equal(t, tk.States().Len(), c.points)
}
