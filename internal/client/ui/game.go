package ui

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"netarena/internal/client"
	"netarena/pkg/core"
)

// 常量重新导出
const (
	ScreenWidth  = core.ScreenWidth
	ScreenHeight = core.ScreenHeight
	FPS          = core.FPS
)

// Game 游戏主结构（Ebiten 游戏循环）
type Game struct {
	network     *client.NetworkClient
	game        *client.NetworkGameClient
	mapRenderer *MapRenderer
	renderers   map[int32]*PlayerRenderer

	debug          bool
	keys           keyTracker
	lastUpdateTime time.Time
}

// NewGame 创建新游戏
func NewGame(network *client.NetworkClient, game *client.NetworkGameClient, debug bool) *Game {
	return &Game{
		network:        network,
		game:           game,
		mapRenderer:    NewMapRenderer(game.Map()),
		renderers:      make(map[int32]*PlayerRenderer),
		debug:          debug,
		lastUpdateTime: time.Now(),
	}
}

// Update 更新游戏状态
func (g *Game) Update() error {
	select {
	case <-g.network.Done():
		return ebiten.Termination
	default:
	}

	if g.keys.JustPressed(ebiten.KeyF3) {
		g.debug = !g.debug
	}

	// 计算delta time
	now := time.Now()
	deltaTime := now.Sub(g.lastUpdateTime).Seconds()
	g.lastUpdateTime = now

	g.game.Update(deltaTime)
	g.syncRenderers()
	for _, r := range g.renderers {
		r.Update(deltaTime)
	}
	return nil
}

// syncRenderers 为新实体创建渲染器，移除已离开的实体
func (g *Game) syncRenderers() {
	alive := make(map[int32]struct{}, len(g.renderers))
	for _, e := range g.game.Entities() {
		alive[e.ID] = struct{}{}
		if _, ok := g.renderers[e.ID]; !ok {
			g.renderers[e.ID] = NewPlayerRenderer(e)
		}
	}
	for id := range g.renderers {
		if _, ok := alive[id]; !ok {
			delete(g.renderers, id)
		}
	}
}

// Draw 绘制游戏画面
func (g *Game) Draw(screen *ebiten.Image) {
	g.mapRenderer.Draw(screen)

	for _, e := range g.game.Entities() {
		if r, ok := g.renderers[e.ID]; ok {
			r.Draw(screen)
		}
		if g.debug {
			e.Timeline.DebugDraw(debugCanvas{screen: screen})
		}
	}

	drawHUD(screen, g.game, g.network.RTT(), g.debug)
}

// Layout 设置屏幕布局
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}
