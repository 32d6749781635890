// Package config 服务器与客户端的 YAML 配置
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"netarena/pkg/ai"
	"netarena/pkg/compress"
	"netarena/pkg/flow"
	"netarena/pkg/protocol"
	"netarena/pkg/ticker"
)

var ErrInvalid = errors.New("配置无效")

// MaxBots 单个房间最多的机器人数量，保证状态包不超过 transport.MaxPacketSize
const MaxBots = 16

// Config 顶层配置，缺省字段使用 Default 中的值
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ticker   ticker.Config  `yaml:"ticker"`
	Flow     flow.Config    `yaml:"flow"`
	Client   ClientConfig   `yaml:"client"`
	Compress CompressConfig `yaml:"compress"`
	Bots     BotsConfig     `yaml:"bots"`
}

// ServerConfig 服务器参数
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	Proto         string        `yaml:"proto"` // tcp / kcp / ws
	TPS           int           `yaml:"tps"`
	MaxPlayers    int           `yaml:"max_players"`
	MapSeed       int64         `yaml:"map_seed"`      // 0 表示随机
	Extrapolation float64       `yaml:"extrapolation"` // 玩家最多被模拟到最新输入之后多久（秒）
	MetricsAddr   string        `yaml:"metrics_addr"`  // 空表示不暴露 /metrics
	JWTSecret     string        `yaml:"jwt_secret"`    // 空表示读取环境变量 JWT_SECRET
	SessionTTL    time.Duration `yaml:"session_ttl"`
	InputRate     float64       `yaml:"input_rate"` // 每个连接每秒允许的输入包数
	InputBurst    int           `yaml:"input_burst"`
	Grace         time.Duration `yaml:"reconnect_grace"` // 断线后保留玩家等待重连的时长，0 表示立即移除
}

// ClientConfig 客户端参数
type ClientConfig struct {
	Server        string  `yaml:"server"`
	Proto         string  `yaml:"proto"`
	Name          string  `yaml:"name"`
	InputSendRate float64 `yaml:"input_send_rate"` // 每秒发送的输入包数
	InputPackAge  float64 `yaml:"input_pack_age"`  // 每个输入包冗余携带的历史长度（秒）
	Extrapolation float64 `yaml:"extrapolation"`   // 本地预测在半个 RTT 之外额外领先的秒数
	SmoothTime    float64 `yaml:"smooth_time"`
	MaxOffset     float64 `yaml:"max_offset"` // 纠正距离超过该值时直接跳变
	Debug         bool    `yaml:"debug"`
}

// CompressConfig 状态压缩精度
type CompressConfig struct {
	PositionRange float64 `yaml:"position_range"` // 坐标范围 [-range, range]
	PositionBits  uint    `yaml:"position_bits"`
	VelocityRange float64 `yaml:"velocity_range"`
	VelocityBits  uint    `yaml:"velocity_bits"`
	RotationBits  uint    `yaml:"rotation_bits"` // 四元数朝向，二维玩家状态只用 angle_bits，留给三维实体
	AngleBits     uint    `yaml:"angle_bits"`
	TimerMax      float64 `yaml:"timer_max"`
	TimerBits     uint    `yaml:"timer_bits"`
}

// BotsConfig 服务器托管的机器人
type BotsConfig struct {
	Count      int    `yaml:"count"`
	Difficulty string `yaml:"difficulty"` // normal / hard
	Seed       int64  `yaml:"seed"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			Proto:         "tcp",
			TPS:           30,
			MaxPlayers:    4,
			Extrapolation: 0.1,
			MetricsAddr:   ":9100",
			SessionTTL:    5 * time.Minute,
			InputRate:     120,
			InputBurst:    60,
			Grace:         10 * time.Second,
		},
		Ticker: ticker.DefaultConfig(),
		Flow:   flow.DefaultConfig(),
		Client: ClientConfig{
			Server:        "127.0.0.1:8080",
			Proto:         "tcp",
			Name:          "player",
			InputSendRate: 30,
			InputPackAge:  0.25,
			Extrapolation: 0.03,
			SmoothTime:    0.1,
			MaxOffset:     64,
		},
		Compress: CompressConfig{
			PositionRange: 1024,
			PositionBits:  20,
			VelocityRange: 512,
			VelocityBits:  16,
			RotationBits:  10,
			AngleBits:     12,
			TimerMax:      2,
			TimerBits:     12,
		},
		Bots: BotsConfig{
			Count:      0,
			Difficulty: "normal",
		},
	}
}

// Load 读取 YAML 文件并覆盖默认值；path 为空时返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse 把 YAML 内容合并到 cfg 中并校验
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg.Validate()
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Server.TPS <= 0 || c.Server.TPS > 240 {
		return fmt.Errorf("%w: server.tps = %d", ErrInvalid, c.Server.TPS)
	}
	if c.Server.MaxPlayers <= 0 {
		return fmt.Errorf("%w: server.max_players = %d", ErrInvalid, c.Server.MaxPlayers)
	}
	if c.Server.Extrapolation < 0 {
		return fmt.Errorf("%w: server.extrapolation < 0", ErrInvalid)
	}
	if c.Client.Extrapolation < 0 {
		return fmt.Errorf("%w: client.extrapolation < 0", ErrInvalid)
	}
	if c.Client.InputSendRate <= 0 {
		return fmt.Errorf("%w: client.input_send_rate = %g", ErrInvalid, c.Client.InputSendRate)
	}
	if c.Bots.Count < 0 || c.Bots.Count > MaxBots {
		return fmt.Errorf("%w: bots.count = %d", ErrInvalid, c.Bots.Count)
	}
	if c.Bots.Difficulty != "normal" && c.Bots.Difficulty != "hard" {
		return fmt.Errorf("%w: bots.difficulty = %q", ErrInvalid, c.Bots.Difficulty)
	}
	if _, err := c.Codec(); err != nil {
		return fmt.Errorf("%w: compress: %v", ErrInvalid, err)
	}
	return nil
}

// Codec 按压缩精度构造状态编码器
func (c *Config) Codec() (protocol.Codec, error) {
	cc := c.Compress
	codec := protocol.Codec{
		Compressor: compress.Compressor{
			Position: compress.VectorCodec{
				FloatCodec: compress.FloatCodec{Min: -cc.PositionRange, Max: cc.PositionRange, Bits: cc.PositionBits},
				Dims:       2,
			},
			Velocity: compress.VectorCodec{
				FloatCodec: compress.FloatCodec{Min: -cc.VelocityRange, Max: cc.VelocityRange, Bits: cc.VelocityBits},
				Dims:       2,
			},
			Rotation: compress.RotationCodec{Bits: cc.RotationBits},
			Angle:    compress.NewAngleCodec(cc.AngleBits),
		},
		Timer: compress.FloatCodec{Min: 0, Max: cc.TimerMax, Bits: cc.TimerBits},
	}
	if err := codec.Validate(); err != nil {
		return protocol.Codec{}, err
	}
	return codec, nil
}

// AI 机器人难度对应的参数
func (b BotsConfig) AI() ai.Config {
	if b.Difficulty == "hard" {
		return ai.ConfigHard
	}
	return ai.ConfigNormal
}

// TickInterval 服务器 tick 间隔
func (s ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TPS)
}
