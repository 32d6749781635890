package ui

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"netarena/internal/client"
)

var hudFont = text.NewGoXFace(basicfont.Face7x13)

func drawText(screen *ebiten.Image, x, y int, msg string, clr color.Color) {
	options := &text.DrawOptions{}
	options.GeoM.Translate(float64(x), float64(y))
	options.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, msg, hudFont, options)
}

// debugCanvas 把 ticker.DebugCanvas 画到 ebiten 图像上
type debugCanvas struct {
	screen *ebiten.Image
}

func (c debugCanvas) DrawPoint(x, y float64, clr color.Color) {
	vector.DrawFilledCircle(c.screen, float32(x), float32(y), 1.5, clr, false)
}

func (c debugCanvas) DrawLine(x0, y0, x1, y1 float64, clr color.Color) {
	vector.StrokeLine(c.screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, clr, false)
}

// drawHUD 左上角显示网络状态（basicfont 只有 ASCII 字形），调试模式下显示每个实体的时间线统计
func drawHUD(screen *ebiten.Image, g *client.NetworkGameClient, rtt float64, debug bool) {
	vector.DrawFilledRect(screen, 0, 0, 250, 18, color.RGBA{0, 0, 0, 140}, false)
	drawText(screen, 4, 4, fmt.Sprintf("ID %d  RTT %3.0fms  FPS %2.0f  F3 debug", g.PlayerID(), rtt*1000, ebiten.ActualFPS()), color.White)
	if !debug {
		return
	}

	st := g.Stats()
	lines := []string{
		fmt.Sprintf("t=%.3f lead=%.3f flow=%.3f", g.LocalTime(), g.LeadBoost(), g.FlowDelay()),
		fmt.Sprintf("batches=%d unknown=%d sent=%d err=%d extrap=%d",
			st.Batches, st.UnknownStates, st.PacksSent, st.SendErrors, st.Extrapolated),
	}
	for _, e := range g.Entities() {
		ts := e.Timeline.Stats()
		total, snapped := e.Interp.Corrections()
		lines = append(lines, fmt.Sprintf("#%d %-8s %s ticks=%d replay=%d rec=%d skip=%d corr=%d/%d",
			e.ID, e.Name, e.Timeline.Status(), ts.Ticks, ts.ReplayTicks, ts.Reconciles, ts.SkippedReconciles, total, snapped))
	}

	vector.DrawFilledRect(screen, 0, 20, ScreenWidth, float32(len(lines)*14+6), color.RGBA{0, 0, 0, 140}, false)
	for i, line := range lines {
		drawText(screen, 4, 24+i*14, line, color.RGBA{180, 230, 180, 255})
	}
}
