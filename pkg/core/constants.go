package core

// 屏幕和地图配置
const (
	ScreenWidth  = 640
	ScreenHeight = 480
	TileSize     = 32
	MapWidth     = 20
	MapHeight    = 15
)

// 游戏帧率
const (
	FPS            = 60
	FixedDeltaTime = 1.0 / FPS
)

// 玩家配置
const (
	PlayerSpeed               = 120.0        // 像素/秒
	PlayerWidth               = TileSize - 6 // 碰撞盒宽度（留3像素边距）
	PlayerHeight              = TileSize - 6 // 碰撞盒高度
	PlayerMargin              = 1            // 碰撞检测内边距
	CornerCorrectionTolerance = 4            // 拐角修正容错（像素）
	SoftAlignFactor           = 0.6          // 软对齐比例（相对本次移动距离）
	DiagonalFactor            = 0.70710678   // 斜向移动归一化
)

// 冲刺配置（秒）
const (
	DashSpeedMultiplier = 2.5
	DashDuration        = 0.15
	DashCooldown        = 1.0
)

// 玩家之间的最小间距（像素），由 World 在每个 tick 的物理步进中维持
const PlayerSeparation = PlayerWidth - 4
