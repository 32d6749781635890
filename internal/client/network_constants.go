package client

import "time"

// ===== 网络时钟与预测配置（客户端专用）=====
const (
	// 心跳间隔：同时用于估计 RTT 与服务器时钟偏移
	PingInterval = time.Second

	// 时钟同步保留的最近样本数，取 RTT 最小的样本作为偏移估计
	ClockSyncWindow = 16

	// 等待加入响应的超时
	JoinTimeout = 10 * time.Second

	// 本地预测的额外领先量上限（秒）
	// 服务器报告本地玩家被外推时说明输入到得太晚，逐步加大领先量
	MaxLeadBoost = 0.1

	// 每收到一次被外推的本地状态增加的领先量
	LeadBoostStep = 0.005

	// 未被外推时领先量每帧衰减的比例
	LeadBoostDecay = 0.98

	// 接收队列容量
	stateQueueSize = 256
	eventQueueSize = 32
	sendQueueSize  = 256
)
