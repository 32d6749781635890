package vmath

import "math"

// Vec3 三维向量（二维场景 Z 恒为 0）
type Vec3 struct {
	X, Y, Z float64
}

// V2 构造 Z=0 的向量
func V2(x, y float64) Vec3 {
	return Vec3{X: x, Y: y}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// ApproxEqual 各分量差值均不超过 eps
func (v Vec3) ApproxEqual(o Vec3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

// Quat 单位四元数
type Quat struct {
	X, Y, Z, W float64
}

// Identity 单位旋转
func Identity() Quat {
	return Quat{W: 1}
}

// FromYaw 绕 Z 轴旋转 angle 弧度
func FromYaw(angle float64) Quat {
	s, c := math.Sincos(angle / 2)
	return Quat{Z: s, W: c}
}

// Yaw 返回绕 Z 轴的旋转角（弧度）
func (q Quat) Yaw() float64 {
	return 2 * math.Atan2(q.Z, q.W)
}

func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Normalize 归一化，零四元数返回单位旋转
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.Dot(q))
	if l == 0 {
		return Identity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Components 以 x,y,z,w 顺序返回分量
func (q Quat) Components() [4]float64 {
	return [4]float64{q.X, q.Y, q.Z, q.W}
}

// QuatFromComponents 由 x,y,z,w 分量构造
func QuatFromComponents(c [4]float64) Quat {
	return Quat{c[0], c[1], c[2], c[3]}
}

// AngleBetween 两个旋转之间的夹角（弧度），q 与 -q 视为相同
func (q Quat) AngleBetween(o Quat) float64 {
	d := math.Abs(q.Normalize().Dot(o.Normalize()))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}
