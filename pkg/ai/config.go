package ai

// Config 定义机器人的行为参数
type Config struct {
	// ThinkInterval 思考间隔（秒），两次思考之间沿用上次的输入
	ThinkInterval float64 `yaml:"think_interval"`

	// MistakeRate 随机失误率 (0.0-1.0)
	MistakeRate float64 `yaml:"mistake_rate"`

	// ChaseRange 追击范围（格子，曼哈顿距离）
	ChaseRange int `yaml:"chase_range"`

	// DashRange 目标在该像素距离内且同一行/列时冲刺
	DashRange float64 `yaml:"dash_range"`
}

// 预设配置：普通难度
var ConfigNormal = Config{
	ThinkInterval: 0.25,
	MistakeRate:   0.05,
	ChaseRange:    8,
	DashRange:     0,
}

// 预设配置：困难难度
var ConfigHard = Config{
	ThinkInterval: 0.1,
	MistakeRate:   0,
	ChaseRange:    20,
	DashRange:     96,
}
