package interp

import (
	"math"

	"netarena/pkg/vmath"
)

// DefaultSmoothTime 默认平滑时间（秒）
const DefaultSmoothTime = 0.1

// Interpolator 隐藏回滚纠错造成的位置跳变。
// 回滚立即修正模拟状态，可见位置则通过一个逐帧衰减的偏移量逐渐追上。
type Interpolator[TState any] struct {
	position func(TState) vmath.Vec3

	// SmoothTime 偏移量衰减的时间常数（秒）
	SmoothTime float64
	// MaxOffset 偏移超过该长度时直接拉回，0 表示不限制
	MaxOffset float64

	offset   vmath.Vec3
	velocity vmath.Vec3

	pending     bool
	pendingPos  vmath.Vec3
	pendingTime float64

	corrections int
	snaps       int
}

// New 创建插值器，position 从状态中取出可见位置
func New[TState any](position func(TState) vmath.Vec3, smoothTime float64) *Interpolator[TState] {
	if smoothTime <= 0 {
		smoothTime = DefaultSmoothTime
	}
	return &Interpolator[TState]{
		position:   position,
		SmoothTime: smoothTime,
	}
}

// BeforeCorrection 记录回滚前的可见位置
func (p *Interpolator[TState]) BeforeCorrection(state TState, time float64) {
	p.pending = true
	p.pendingPos = p.position(state)
	p.pendingTime = time
}

// AfterCorrection 把回滚前后同一时刻的位置差累加进偏移量
func (p *Interpolator[TState]) AfterCorrection(state TState, time float64) {
	if !p.pending {
		return
	}
	p.pending = false
	p.corrections++

	p.offset = p.offset.Add(p.pendingPos.Sub(p.position(state)))
	if p.MaxOffset > 0 && p.offset.Len() > p.MaxOffset {
		p.snaps++
		p.offset = vmath.Vec3{}
		p.velocity = vmath.Vec3{}
	}
}

// Update 每个渲染帧调用一次，临界阻尼地把偏移量衰减到零
func (p *Interpolator[TState]) Update(deltaTime float64) {
	if deltaTime <= 0 {
		return
	}
	p.offset, p.velocity = smoothDamp(p.offset, p.velocity, p.SmoothTime, deltaTime)
	if p.offset.Len() < 1e-6 && p.velocity.Len() < 1e-6 {
		p.offset = vmath.Vec3{}
		p.velocity = vmath.Vec3{}
	}
}

// Apply 返回叠加偏移后的显示位置
func (p *Interpolator[TState]) Apply(pos vmath.Vec3) vmath.Vec3 {
	return pos.Add(p.offset)
}

// Offset 当前偏移量
func (p *Interpolator[TState]) Offset() vmath.Vec3 {
	return p.offset
}

// Corrections 累计处理的纠错次数与其中被直接拉回的次数
func (p *Interpolator[TState]) Corrections() (total, snapped int) {
	return p.corrections, p.snaps
}

// Reset 清除偏移，例如实体被传送后
func (p *Interpolator[TState]) Reset() {
	p.offset = vmath.Vec3{}
	p.velocity = vmath.Vec3{}
	p.pending = false
}

// smoothDamp 朝零值的临界阻尼弹簧，使用指数函数的多项式近似
func smoothDamp(current, velocity vmath.Vec3, smoothTime, dt float64) (vmath.Vec3, vmath.Vec3) {
	smoothTime = math.Max(smoothTime, 1e-4)
	omega := 2 / smoothTime
	x := omega * dt
	decay := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	temp := velocity.Add(current.Scale(omega)).Scale(dt)
	velocity = velocity.Sub(temp.Scale(omega)).Scale(decay)
	return current.Add(temp).Scale(decay), velocity
}
