package ui

import (
	"image/color"

	"netarena/pkg/core"
)

// CharacterInfo 角色配色（渲染相关），全部由 core 中的主色派生
type CharacterInfo struct {
	Type         core.CharacterType
	BodyColor    color.RGBA
	OutlineColor color.RGBA
	HandColor    color.RGBA
	ShoeColor    color.RGBA
}

// GetCharacterInfo 获取角色信息
func GetCharacterInfo(charType core.CharacterType) CharacterInfo {
	body := charType.Color()
	info := CharacterInfo{
		Type:         charType,
		BodyColor:    body,
		OutlineColor: scaleColor(body, 0.45),
		HandColor:    mixColor(body, color.RGBA{255, 200, 160, 255}, 0.5),
		ShoeColor:    scaleColor(body, 0.3),
	}
	// 深色角色用浅色描边
	if luminance(body) < 100 {
		info.OutlineColor = color.RGBA{200, 200, 200, 255}
		info.ShoeColor = color.RGBA{180, 180, 180, 255}
	}
	return info
}

func scaleColor(c color.RGBA, k float64) color.RGBA {
	return color.RGBA{uint8(float64(c.R) * k), uint8(float64(c.G) * k), uint8(float64(c.B) * k), c.A}
}

func mixColor(a, b color.RGBA, t float64) color.RGBA {
	lerp := func(x, y uint8) uint8 { return uint8(float64(x)*(1-t) + float64(y)*t) }
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}

func luminance(c color.RGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
