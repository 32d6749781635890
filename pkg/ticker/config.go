package ticker

// Config Ticker 参数（时间单位：秒）
type Config struct {
	HistoryLength   float64 `yaml:"history_length"`     // 保留的输入/状态历史长度
	MaxTickDelta    float64 `yaml:"max_tick_delta"`     // 单个 tick 的最大步长
	MaxTicksPerSeek int     `yaml:"max_ticks_per_seek"` // 单次 Seek 最多执行的 tick 数
	Tolerance       float64 `yaml:"tolerance"`          // 时间戳比较容差
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		HistoryLength:   2,
		MaxTickDelta:    1.0 / 60,
		MaxTicksPerSeek: 240,
		Tolerance:       0.0005,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.HistoryLength <= 0 {
		c.HistoryLength = d.HistoryLength
	}
	if c.MaxTickDelta <= 0 {
		c.MaxTickDelta = d.MaxTickDelta
	}
	if c.MaxTicksPerSeek <= 0 {
		c.MaxTicksPerSeek = d.MaxTicksPerSeek
	}
	if c.Tolerance < 0 {
		c.Tolerance = d.Tolerance
	}
	return c
}
