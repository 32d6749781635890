package core

import (
	"image/color"
	"math"

	"netarena/pkg/ticker"
	"netarena/pkg/vmath"
)

// 状态比较误差，需大于网络压缩的量化精度
const (
	positionEpsilon = 0.01
	velocityEpsilon = 0.05
	angleEpsilon    = 0.02
	timerEpsilon    = 0.005
)

// PlayerState 玩家在某一时刻的完整可变状态
type PlayerState struct {
	X, Y         float64 // 左上角像素位置
	VX, VY       float64 // 像素/秒
	Facing       float64 // 朝向（弧度）
	DashTime     float64 // 剩余冲刺时间
	DashCooldown float64 // 剩余冷却时间
}

// Position 返回左上角位置
func (s PlayerState) Position() vmath.Vec3 {
	return vmath.V2(s.X, s.Y)
}

// Center 返回碰撞盒中心
func (s PlayerState) Center() vmath.Vec3 {
	return vmath.V2(s.X+PlayerWidth/2, s.Y+PlayerHeight/2)
}

// ApproxEqual 在网络量化误差范围内相等
func (s PlayerState) ApproxEqual(o PlayerState) bool {
	return math.Abs(s.X-o.X) <= positionEpsilon &&
		math.Abs(s.Y-o.Y) <= positionEpsilon &&
		math.Abs(s.VX-o.VX) <= velocityEpsilon &&
		math.Abs(s.VY-o.VY) <= velocityEpsilon &&
		angleDiff(s.Facing, o.Facing) <= angleEpsilon &&
		math.Abs(s.DashTime-o.DashTime) <= timerEpsilon &&
		math.Abs(s.DashCooldown-o.DashCooldown) <= timerEpsilon
}

// DebugDraw 绘制位置与速度方向
func (s PlayerState) DebugDraw(c ticker.DebugCanvas) {
	center := s.Center()
	c.DrawPoint(center.X, center.Y, color.RGBA{255, 255, 0, 255})
	c.DrawLine(center.X, center.Y, center.X+s.VX*0.1, center.Y+s.VY*0.1, color.RGBA{0, 255, 0, 255})
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// Player 玩家实体（纯逻辑，不包含渲染），由 ticker.Ticker 驱动
type Player struct {
	ID        int
	Character CharacterType
	Map       *GameMap

	state PlayerState
}

// NewPlayer 在地图出生点创建玩家
func NewPlayer(id int, m *GameMap) *Player {
	x, y := m.SpawnFor(id)
	return &Player{
		ID:        id,
		Character: CharacterForID(id),
		Map:       m,
		state:     PlayerState{X: x, Y: y, Facing: math.Pi / 2},
	}
}

// MakeState 捕获当前状态
func (p *Player) MakeState() PlayerState {
	return p.state
}

// ApplyState 恢复状态
func (p *Player) ApplyState(state PlayerState) {
	p.state = state
}

// Tick 推进一个 tick。只依赖状态、输入和步长，不读取时钟。
func (p *Player) Tick(deltaTime float64, input Input, info ticker.TickInfo) {
	st := &p.state
	st.DashTime = math.Max(0, st.DashTime-deltaTime)
	st.DashCooldown = math.Max(0, st.DashCooldown-deltaTime)
	if input.DashPressed && st.DashCooldown == 0 {
		st.DashTime = DashDuration
		st.DashCooldown = DashCooldown
	}

	mx, my := input.Axes()
	speed := PlayerSpeed
	if st.DashTime > 0 {
		speed *= DashSpeedMultiplier
	}
	st.VX = mx * speed
	st.VY = my * speed
	if mx != 0 || my != 0 {
		st.Facing = math.Atan2(my, mx)
	}

	// 保持单轴移动以兼容拐角修正逻辑
	if dy := st.VY * deltaTime; dy != 0 {
		p.Move(0, dy)
	}
	if dx := st.VX * deltaTime; dx != 0 {
		p.Move(dx, 0)
	}
}

// Move 移动玩家（返回是否成功移动）
func (p *Player) Move(dx, dy float64) bool {
	st := &p.state
	newX := st.X + dx
	newY := st.Y + dy

	if !p.Map.CanMoveTo(int(newX), int(newY)) {
		correctedX, correctedY, ok := p.tryCornerCorrection(dx, dy)
		if !ok {
			return false
		}
		newX = correctedX
		newY = correctedY
	}

	st.X = newX
	st.Y = newY
	p.applySoftAlign(dx, dy)
	return true
}

// SetPosition 直接放置玩家，例如 World 分离重叠时
func (p *Player) SetPosition(x, y float64) bool {
	if !p.Map.CanMoveTo(int(x), int(y)) {
		return false
	}
	p.state.X = x
	p.state.Y = y
	return true
}

// GetGridPosition 获取玩家所在格子
func (p *Player) GetGridPosition() (int, int) {
	gridPos := PlayerXYToGrid(int(p.state.X), int(p.state.Y))
	return gridPos.GridX, gridPos.GridY
}

func (p *Player) tryCornerCorrection(dx, dy float64) (float64, float64, bool) {
	if (dx == 0) == (dy == 0) {
		return 0, 0, false
	}
	st := &p.state

	if dx != 0 {
		offset := p.nearestAlignedY() - st.Y
		if math.Abs(offset) > CornerCorrectionTolerance {
			return 0, 0, false
		}
		step := math.Copysign(math.Min(math.Abs(offset), math.Abs(dx)), offset)
		if step == 0 {
			return 0, 0, false
		}
		newX, newY := st.X+dx, st.Y+step
		if p.Map.CanMoveTo(int(newX), int(newY)) {
			return newX, newY, true
		}
		return 0, 0, false
	}

	offset := p.nearestAlignedX() - st.X
	if math.Abs(offset) > CornerCorrectionTolerance {
		return 0, 0, false
	}
	step := math.Copysign(math.Min(math.Abs(offset), math.Abs(dy)), offset)
	if step == 0 {
		return 0, 0, false
	}
	newX, newY := st.X+step, st.Y+dy
	if p.Map.CanMoveTo(int(newX), int(newY)) {
		return newX, newY, true
	}
	return 0, 0, false
}

func (p *Player) applySoftAlign(dx, dy float64) {
	if (dx == 0) == (dy == 0) {
		return
	}
	st := &p.state

	if dx != 0 {
		offset := p.nearestAlignedY() - st.Y
		if math.Abs(offset) > CornerCorrectionTolerance {
			return
		}
		step := math.Copysign(math.Min(math.Abs(offset), math.Abs(dx)*SoftAlignFactor), offset)
		if step != 0 && p.Map.CanMoveTo(int(st.X), int(st.Y+step)) {
			st.Y += step
		}
		return
	}

	offset := p.nearestAlignedX() - st.X
	if math.Abs(offset) > CornerCorrectionTolerance {
		return
	}
	step := math.Copysign(math.Min(math.Abs(offset), math.Abs(dy)*SoftAlignFactor), offset)
	if step != 0 && p.Map.CanMoveTo(int(st.X+step), int(st.Y)) {
		st.X += step
	}
}

func (p *Player) nearestAlignedX() float64 {
	centerX := p.state.X + PlayerWidth/2.0
	gridX := int(math.Floor(centerX / TileSize))
	gridX = max(0, min(gridX, MapWidth-1))
	return float64(gridX*TileSize) + float64(TileSize-PlayerWidth)/2
}

func (p *Player) nearestAlignedY() float64 {
	centerY := p.state.Y + PlayerHeight/2.0
	gridY := int(math.Floor(centerY / TileSize))
	gridY = max(0, min(gridY, MapHeight-1))
	return float64(gridY*TileSize) + float64(TileSize-PlayerHeight)/2
}
