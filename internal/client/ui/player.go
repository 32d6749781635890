package ui

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"netarena/internal/client"
	"netarena/pkg/core"
)

// PlayerRenderer 玩家渲染器，按插值后的位置绘制实体
type PlayerRenderer struct {
	entity    *client.Entity
	CharInfo  CharacterInfo
	AnimFrame int
	AnimTime  float64
}

// NewPlayerRenderer 创建玩家渲染器
func NewPlayerRenderer(e *client.Entity) *PlayerRenderer {
	return &PlayerRenderer{
		entity:   e,
		CharInfo: GetCharacterInfo(e.Character),
	}
}

// Update 更新动画
func (r *PlayerRenderer) Update(deltaTime float64) {
	st := r.entity.State()
	if st.VX == 0 && st.VY == 0 {
		r.AnimTime = 0
		r.AnimFrame = 0
		return
	}

	// 动画速度：每0.15秒切换一帧，冲刺时加倍
	step := 0.15
	if st.DashTime > 0 {
		step /= 2
	}
	r.AnimTime += deltaTime
	if r.AnimTime >= step {
		r.AnimTime = 0
		r.AnimFrame = (r.AnimFrame + 1) % 2
	}
}

// Draw 绘制玩家
func (r *PlayerRenderer) Draw(screen *ebiten.Image) {
	if !r.entity.Synced() {
		return
	}

	pos := r.entity.DisplayPosition()
	st := r.entity.State()

	size := float32(core.PlayerWidth)
	px := float32(pos.X)
	py := float32(pos.Y)

	// 身体尺寸（略小于碰撞盒）
	bodyWidth := size * 0.7
	bodyHeight := size * 0.7
	drawX := px + (size-bodyWidth)/2
	drawY := py + (size-bodyHeight)/2

	// 本地玩家脚下的标记
	if r.entity.Local {
		vector.StrokeCircle(screen, px+size/2, py+size/2, size*0.6, 1.5, color.RGBA{255, 255, 0, 180}, false)
	}

	vector.DrawFilledRect(screen, drawX, drawY, bodyWidth, bodyHeight, r.CharInfo.BodyColor, false)
	vector.StrokeRect(screen, drawX, drawY, bodyWidth, bodyHeight, 2, r.CharInfo.OutlineColor, false)

	// 手和脚随动画帧摆动
	offset := float32(0.0)
	if r.AnimFrame == 1 {
		offset = 2.0
	}
	handSize := bodyWidth * 0.25
	vector.DrawFilledCircle(screen, drawX-offset-2, drawY+bodyHeight*0.6, handSize, r.CharInfo.HandColor, false)
	vector.DrawFilledCircle(screen, drawX+bodyWidth+offset+2, drawY+bodyHeight*0.6, handSize, r.CharInfo.HandColor, false)

	footSize := bodyWidth * 0.3
	vector.DrawFilledRect(screen, drawX+bodyWidth*0.2-offset, drawY+bodyHeight, footSize, footSize*0.6, r.CharInfo.ShoeColor, false)
	vector.DrawFilledRect(screen, drawX+bodyWidth*0.6+offset, drawY+bodyHeight, footSize, footSize*0.6, r.CharInfo.ShoeColor, false)

	// 眼睛看向朝向
	eyeSize := bodyWidth * 0.15
	lookX := float32(math.Cos(st.Facing)) * bodyWidth * 0.12
	lookY := float32(math.Sin(st.Facing)) * bodyHeight * 0.12
	eyeY := drawY + bodyHeight*0.35 + lookY
	eyeLeftX := drawX + bodyWidth*0.3 + lookX
	eyeRightX := drawX + bodyWidth*0.7 + lookX

	vector.DrawFilledCircle(screen, eyeLeftX, eyeY, eyeSize, color.RGBA{255, 255, 255, 255}, false)
	vector.DrawFilledCircle(screen, eyeRightX, eyeY, eyeSize, color.RGBA{255, 255, 255, 255}, false)

	pupilSize := eyeSize * 0.5
	vector.DrawFilledCircle(screen, eyeLeftX+lookX/3, eyeY+lookY/3, pupilSize, color.RGBA{0, 0, 0, 255}, false)
	vector.DrawFilledCircle(screen, eyeRightX+lookX/3, eyeY+lookY/3, pupilSize, color.RGBA{0, 0, 0, 255}, false)
}
