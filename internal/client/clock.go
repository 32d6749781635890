package client

import (
	"math"
	"sync"
)

type clockSample struct {
	rtt    float64
	offset float64
}

// ClockSync 通过 Ping/Pong 估计服务器时钟。
// 偏移取窗口内 RTT 最小的样本，排队延迟越小的样本越接近真实单程时间。
type ClockSync struct {
	mu      sync.Mutex
	samples []clockSample
	window  int
	offset  float64
	rtt     float64
	ready   bool
}

// NewClockSync 创建时钟同步器，window <= 0 时使用 ClockSyncWindow
func NewClockSync(window int) *ClockSync {
	if window <= 0 {
		window = ClockSyncWindow
	}
	return &ClockSync{window: window}
}

// AddSample 记录一次往返：sent/received 为本地时间，serverTime 为服务器回包时刻。
// 返回本次样本的 RTT，received 早于 sent 的样本被丢弃并返回 false。
func (c *ClockSync) AddSample(sent, serverTime, received float64) (float64, bool) {
	rtt := received - sent
	if rtt < 0 || math.IsNaN(rtt) || math.IsInf(rtt, 0) {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, clockSample{
		rtt:    rtt,
		offset: serverTime + rtt/2 - received,
	})
	if len(c.samples) > c.window {
		c.samples = c.samples[len(c.samples)-c.window:]
	}

	best := c.samples[0]
	for _, s := range c.samples[1:] {
		if s.rtt < best.rtt {
			best = s
		}
	}
	c.offset = best.offset
	c.rtt = best.rtt
	c.ready = true
	return rtt, true
}

// ServerTime 把本地时间换算为估计的服务器时间
func (c *ClockSync) ServerTime(local float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return local + c.offset
}

// RTT 最优样本的往返时间（秒）
func (c *ClockSync) RTT() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// Offset 服务器时间减本地时间
func (c *ClockSync) Offset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Ready 至少有一个样本
func (c *ClockSync) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}
