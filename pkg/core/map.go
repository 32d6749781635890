package core

import (
	"math/rand"
)

// TileType 地图块类型
type TileType int

const (
	TileEmpty TileType = iota
	TileWall           // 不可破坏
	TileBrick          // 可通过种子随机移除
)

// GameMap 竞技场地图（纯逻辑，不包含渲染）
type GameMap struct {
	Tiles  [][]TileType
	Width  int
	Height int
	Seed   int64
}

// GridPos 格子坐标
type GridPos struct {
	GridX, GridY int
}

// 地图模板：W=墙壁, B=砖块, .=空地, S=出生点
var mapTemplate = []string{
	"S.B.B.W.W.W.W.B.B..S",
	"..W.W.B...B...W.W...",
	".W.W.W.W.W.W.W.W.W..",
	"B..B..BBB.BBB..B..B.",
	".W.W.WBW.W.WBW.W.W..",
	"B....B...B...B....B.",
	".WBWBW.W.W.W.WBWBW..",
	"W.B..B...BS..B..B.WW",
	".WBWBW.W.W.W.WBWBW..",
	"B....B...B...B....B.",
	".W.W.WBW.W.WBW.W.W..",
	"B..B..BBB.BBB..B..B.",
	".W.W.W.W.W.W.W.W.W..",
	"..W.W.B...B...W.W...",
	"S.B.B.W.W.W.W.B.B..S",
}

// brickKeepChance 种子决定保留多少模板砖块
const brickKeepChance = 0.6

// NewGameMap 使用指定种子创建地图，同一种子在客户端和服务器上生成相同地图
func NewGameMap(seed int64) *GameMap {
	m := &GameMap{
		Tiles:  make([][]TileType, MapHeight),
		Width:  MapWidth,
		Height: MapHeight,
		Seed:   seed,
	}
	m.loadTemplate(seed)
	return m
}

func (m *GameMap) loadTemplate(seed int64) {
	r := rand.New(rand.NewSource(seed))
	for y := 0; y < MapHeight; y++ {
		m.Tiles[y] = make([]TileType, MapWidth)
		for x := 0; x < MapWidth; x++ {
			switch mapTemplate[y][x] {
			case 'W':
				m.Tiles[y][x] = TileWall
			case 'B':
				// 按模板顺序消耗随机数，保证确定性
				if r.Float64() < brickKeepChance {
					m.Tiles[y][x] = TileBrick
				}
			default:
				m.Tiles[y][x] = TileEmpty
			}
		}
	}
}

// SpawnPoints 出生点格子，按模板中的出现顺序
func (m *GameMap) SpawnPoints() []GridPos {
	var points []GridPos
	for y := 0; y < MapHeight; y++ {
		for x := 0; x < MapWidth; x++ {
			if mapTemplate[y][x] == 'S' {
				points = append(points, GridPos{GridX: x, GridY: y})
			}
		}
	}
	return points
}

// SpawnFor 玩家 id 对应的出生像素位置
func (m *GameMap) SpawnFor(id int) (float64, float64) {
	points := m.SpawnPoints()
	if id < 0 {
		id = -id
	}
	p := points[id%len(points)]
	x, y := GridToPlayerXY(p.GridX, p.GridY)
	return float64(x), float64(y)
}

// GetTile 获取指定位置的地图块，越界视为墙
func (m *GameMap) GetTile(x, y int) TileType {
	if x < 0 || x >= MapWidth || y < 0 || y >= MapHeight {
		return TileWall
	}
	return m.Tiles[y][x]
}

// IsWalkable 格子是否可通行
func (m *GameMap) IsWalkable(x, y int) bool {
	return m.GetTile(x, y) == TileEmpty
}

// CanMoveTo 检查玩家左上角移动到 (x, y) 像素位置是否不会与墙或砖块重叠
func (m *GameMap) CanMoveTo(x, y int) bool {
	// 碰撞盒稍微内缩以避免边缘穿模
	hitboxX := x + PlayerMargin
	hitboxY := y + PlayerMargin
	hitboxW := PlayerWidth - PlayerMargin*2
	hitboxH := PlayerHeight - PlayerMargin*2

	if hitboxX < 0 || hitboxY < 0 || hitboxX+hitboxW > MapWidth*TileSize || hitboxY+hitboxH > MapHeight*TileSize {
		return false
	}

	startGridX := hitboxX / TileSize
	endGridX := (hitboxX + hitboxW - 1) / TileSize
	startGridY := hitboxY / TileSize
	endGridY := (hitboxY + hitboxH - 1) / TileSize

	for gy := startGridY; gy <= endGridY; gy++ {
		for gx := startGridX; gx <= endGridX; gx++ {
			if !m.IsWalkable(gx, gy) {
				return false
			}
		}
	}
	return true
}

// GridToPlayerXY 格子位置转换为玩家所在的位置，居中放置
// 地图格子坐标x轴是横向，正方向向右，y轴纵向，正方向向下，0点在左上角
func GridToPlayerXY(gridX, gridY int) (int, int) {
	return gridX*TileSize + (TileSize-PlayerWidth)/2, gridY*TileSize + (TileSize-PlayerHeight)/2
}

// PlayerXYToGrid 玩家像素位置转换为格子坐标
func PlayerXYToGrid(x, y int) GridPos {
	return GridPos{
		GridX: (x + PlayerWidth/2) / TileSize,
		GridY: (y + PlayerHeight/2) / TileSize,
	}
}
