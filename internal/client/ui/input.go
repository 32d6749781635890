package ui

import (
	"github.com/hajimehoshi/ebiten/v2"

	"netarena/pkg/core"
)

// ControlScheme 按键方案
type ControlScheme int

const (
	ControlWASD  ControlScheme = iota // WASD + 空格键
	ControlArrow                      // 方向键+回车键
)

func (c ControlScheme) String() string {
	switch c {
	case ControlWASD:
		return "WASD+空格"
	case ControlArrow:
		return "方向键+回车"
	}
	return "未知"
}

// ParseControlScheme 解析命令行中的按键方案名
func ParseControlScheme(name string) ControlScheme {
	if name == "arrow" || name == "arrows" {
		return ControlArrow
	}
	return ControlWASD
}

// KeyboardInput 读取键盘，实现 ticker.InputSource
type KeyboardInput struct {
	Scheme ControlScheme
}

// GenerateLocal 采样当前按键状态
func (k *KeyboardInput) GenerateLocal() core.Input {
	if k.Scheme == ControlArrow {
		return core.InputFromKeys(
			ebiten.IsKeyPressed(ebiten.KeyArrowUp),
			ebiten.IsKeyPressed(ebiten.KeyArrowDown),
			ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
			ebiten.IsKeyPressed(ebiten.KeyArrowRight),
			ebiten.IsKeyPressed(ebiten.KeyEnter),
		)
	}
	return core.InputFromKeys(
		ebiten.IsKeyPressed(ebiten.KeyW),
		ebiten.IsKeyPressed(ebiten.KeyS),
		ebiten.IsKeyPressed(ebiten.KeyA),
		ebiten.IsKeyPressed(ebiten.KeyD),
		ebiten.IsKeyPressed(ebiten.KeySpace),
	)
}

type keyTracker struct {
	prev map[ebiten.Key]bool
}

func (k *keyTracker) JustPressed(key ebiten.Key) bool {
	if k.prev == nil {
		k.prev = make(map[ebiten.Key]bool)
	}
	now := ebiten.IsKeyPressed(key)
	prev := k.prev[key]
	k.prev[key] = now
	return now && !prev
}
