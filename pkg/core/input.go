package core

import "math"

// Input 表示一帧内玩家的输入。
// MoveX/MoveY 为 [-1, 1] 的移动轴，Dash 是按键的持续状态，
// DashPressed 是相对上一帧输入计算出的"本帧按下"。
type Input struct {
	MoveX       float64
	MoveY       float64
	Dash        bool
	DashPressed bool
}

// InputFromKeys 由方向键状态构造输入
func InputFromKeys(up, down, left, right, dash bool) Input {
	in := Input{Dash: dash}
	if up {
		in.MoveY -= 1
	}
	if down {
		in.MoveY += 1
	}
	if left {
		in.MoveX -= 1
	}
	if right {
		in.MoveX += 1
	}
	return in
}

// WithDeltas 计算相对 previous 的增量字段
func (in Input) WithDeltas(previous Input) Input {
	in.DashPressed = in.Dash && !previous.Dash
	return in
}

// WithoutDeltas 清除增量字段
func (in Input) WithoutDeltas() Input {
	in.DashPressed = false
	return in
}

// Axes 返回截断并归一化后的移动方向，长度不超过 1
func (in Input) Axes() (float64, float64) {
	x := clampAxis(in.MoveX)
	y := clampAxis(in.MoveY)
	// 斜向移动时进行归一化，避免速度变快
	if x != 0 && y != 0 {
		if math.Abs(x) == 1 && math.Abs(y) == 1 {
			return x * DiagonalFactor, y * DiagonalFactor
		}
		if l := math.Hypot(x, y); l > 1 {
			return x / l, y / l
		}
	}
	return x, y
}

// IsIdle 没有任何操作
func (in Input) IsIdle() bool {
	return in.MoveX == 0 && in.MoveY == 0 && !in.Dash
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
