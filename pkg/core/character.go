package core

import "image/color"

// CharacterType 角色外观，只影响渲染
type CharacterType int

const (
	CharacterWhite CharacterType = iota // 经典白
	CharacterBlack                      // 暗夜黑
	CharacterRed                        // 烈焰红
	CharacterBlue                       // 冰霜蓝
	characterCount
)

// String 返回角色类型的字符串表示
func (c CharacterType) String() string {
	switch c {
	case CharacterWhite:
		return "经典白"
	case CharacterBlack:
		return "暗夜黑"
	case CharacterRed:
		return "烈焰红"
	case CharacterBlue:
		return "冰霜蓝"
	}
	return "未知"
}

// CharacterForID 按玩家 ID 轮流分配外观
func CharacterForID(id int) CharacterType {
	if id < 0 {
		id = -id
	}
	return CharacterType(id % int(characterCount))
}

// Color 角色主色
func (c CharacterType) Color() color.RGBA {
	switch c {
	case CharacterBlack:
		return color.RGBA{60, 60, 70, 255}
	case CharacterRed:
		return color.RGBA{220, 60, 50, 255}
	case CharacterBlue:
		return color.RGBA{60, 120, 230, 255}
	}
	return color.RGBA{235, 235, 235, 255}
}
