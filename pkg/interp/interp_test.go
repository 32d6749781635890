package interp

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netarena/pkg/ticker"
	"netarena/pkg/vmath"
)

type point struct{ X, Y float64 }

func (p point) ApproxEqual(o point) bool {
	return math.Abs(p.X-o.X) < 1e-9 && math.Abs(p.Y-o.Y) < 1e-9
}

func (p point) DebugDraw(c ticker.DebugCanvas) { c.DrawPoint(p.X, p.Y, color.White) }

func pointPos(p point) vmath.Vec3 { return vmath.V2(p.X, p.Y) }

func TestCorrectionAccumulatesOffset(t *testing.T) {
	ip := New(pointPos, 0.1)

	ip.BeforeCorrection(point{X: 10, Y: 5}, 1)
	ip.AfterCorrection(point{X: 7, Y: 5}, 1)
	assert.True(t, ip.Offset().ApproxEqual(vmath.V2(3, 0), 1e-12))

	ip.BeforeCorrection(point{X: 7, Y: 5}, 1.1)
	ip.AfterCorrection(point{X: 7, Y: 4}, 1.1)
	assert.True(t, ip.Offset().ApproxEqual(vmath.V2(3, 1), 1e-12))

	// 显示位置保持回滚前的位置
	shown := ip.Apply(vmath.V2(7, 4))
	assert.True(t, shown.ApproxEqual(vmath.V2(10, 5), 1e-12))

	total, snapped := ip.Corrections()
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, snapped)
}

func TestAfterCorrectionWithoutBeforeIsIgnored(t *testing.T) {
	ip := New(pointPos, 0.1)
	ip.AfterCorrection(point{X: 100}, 1)
	assert.Equal(t, vmath.Vec3{}, ip.Offset())
}

func TestUpdateDecaysOffsetSmoothly(t *testing.T) {
	ip := New(pointPos, 0.1)
	ip.BeforeCorrection(point{X: 1}, 0)
	ip.AfterCorrection(point{}, 0)

	prev := ip.Offset().X
	for i := 0; i < 120; i++ {
		ip.Update(1.0 / 60)
		cur := ip.Offset().X
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, 0.0)
		prev = cur
	}
	assert.Less(t, ip.Offset().Len(), 1e-3)
}

func TestUpdateIgnoresNonPositiveDelta(t *testing.T) {
	ip := New(pointPos, 0.1)
	ip.BeforeCorrection(point{X: 2}, 0)
	ip.AfterCorrection(point{}, 0)
	ip.Update(0)
	ip.Update(-1)
	assert.Equal(t, 2.0, ip.Offset().X)
}

func TestMaxOffsetSnaps(t *testing.T) {
	ip := New(pointPos, 0.1)
	ip.MaxOffset = 5
	ip.BeforeCorrection(point{X: 50}, 0)
	ip.AfterCorrection(point{}, 0)
	assert.Equal(t, vmath.Vec3{}, ip.Offset())
	_, snapped := ip.Corrections()
	assert.Equal(t, 1, snapped)
}

func TestReset(t *testing.T) {
	ip := New(pointPos, 0)
	assert.Equal(t, DefaultSmoothTime, ip.SmoothTime)
	ip.BeforeCorrection(point{X: 1}, 0)
	ip.AfterCorrection(point{}, 0)
	ip.Reset()
	assert.Equal(t, vmath.Vec3{}, ip.Offset())
}

type axis float64

func (a axis) WithDeltas(axis) axis { return a }
func (a axis) WithoutDeltas() axis  { return a }

type mover struct{ p point }

func (m *mover) MakeState() point   { return m.p }
func (m *mover) ApplyState(p point) { m.p = p }
func (m *mover) Tick(dt float64, in axis, _ ticker.TickInfo) {
	m.p.X += float64(in) * dt
}

func TestObservesTickerReconcile(t *testing.T) {
	m := &mover{}
	tk := ticker.New[axis, point](m, ticker.DefaultConfig())
	ip := New(pointPos, 0.1)
	tk.AddObserver(ip)

	tk.InsertInput(1, 0)
	for f := 1; f <= 60; f++ {
		tk.Seek(float64(f)/60, 0)
	}
	require.InDelta(t, 1.0, m.p.X, 1e-9)

	// 服务器认为 0.5 秒时位置为 0.25
	require.True(t, tk.Reconcile(point{X: 0.25}, 0.5, 0))
	assert.InDelta(t, 0.75, m.p.X, 1e-9)
	assert.InDelta(t, 0.25, ip.Offset().X, 1e-9)
	assert.InDelta(t, 1.0, ip.Apply(pointPos(m.p)).X, 1e-9)
}
