package flow

import (
	"math"
	"slices"
	"sort"
	"time"
)

// Clock 本地时钟（秒）
type Clock interface {
	Now() float64
}

// ClockFunc 函数形式的时钟
type ClockFunc func() float64

func (f ClockFunc) Now() float64 { return f() }

// WallClock 以创建时刻为零点的真实时钟
func WallClock() Clock {
	start := time.Now()
	return ClockFunc(func() float64 {
		return time.Since(start).Seconds()
	})
}

// Config 流控参数（秒）
type Config struct {
	MinDelay        float64 `yaml:"min_delay"`
	MaxDelay        float64 `yaml:"max_delay"`
	AddToDelay      float64 `yaml:"add_to_delay"`
	UpperPercentile float64 `yaml:"upper_percentile"` // 0~1
	RecalcInterval  float64 `yaml:"recalc_interval"`
	RecalcSamples   int     `yaml:"recalc_samples"`
	SampleWindow    int     `yaml:"sample_window"`
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		MinDelay:        0,
		MaxDelay:        0.3,
		AddToDelay:      0.01,
		UpperPercentile: 0.9,
		RecalcInterval:  1,
		RecalcSamples:   32,
		SampleWindow:    128,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.UpperPercentile <= 0 || c.UpperPercentile > 1 {
		c.UpperPercentile = d.UpperPercentile
	}
	if c.RecalcInterval <= 0 {
		c.RecalcInterval = d.RecalcInterval
	}
	if c.RecalcSamples <= 0 {
		c.RecalcSamples = d.RecalcSamples
	}
	if c.SampleWindow <= 0 {
		c.SampleWindow = d.SampleWindow
	}
	return c
}

type message[T any] struct {
	msg  T
	sent float64
}

// Stats 流控统计
type Stats struct {
	Pushed   int
	Released int
	Skipped  int // skipOutdated 丢弃的旧消息
	Recalcs  int
}

// Controller 抖动缓冲：按统计得出的延迟释放消息，用延迟换平滑
type Controller[T any] struct {
	cfg   Config
	clock Clock

	queue []message[T]

	gaps    []float64
	gapPos  int
	hasGap  bool
	minGap  float64
	delay   float64
	pending int

	lastRecalc float64
	stats      Stats
}

// New 创建流控器，clock 为 nil 时使用真实时钟
func New[T any](cfg Config, clock Clock) *Controller[T] {
	cfg = cfg.normalized()
	if clock == nil {
		clock = WallClock()
	}
	return &Controller[T]{
		cfg:        cfg,
		clock:      clock,
		gaps:       make([]float64, 0, cfg.SampleWindow),
		delay:      cfg.MinDelay,
		lastRecalc: clock.Now(),
	}
}

// PushMessage 缓存一条消息，sentTime 为对端发送时间
func (c *Controller[T]) PushMessage(msg T, sentTime float64) {
	now := c.clock.Now()
	c.addSample(now - sentTime)

	// 同一发送时间的消息保持到达顺序
	i := sort.Search(len(c.queue), func(i int) bool { return c.queue[i].sent > sentTime })
	c.queue = slices.Insert(c.queue, i, message[T]{msg: msg, sent: sentTime})
	c.stats.Pushed++

	c.maybeRecalculate(now)
}

// TryPopMessage 取出下一条已到释放时间的消息。
// skipOutdated 为 true 时只返回最新的可释放消息，丢弃更旧的。
func (c *Controller[T]) TryPopMessage(skipOutdated bool) (T, bool) {
	var zero T
	now := c.clock.Now()
	c.maybeRecalculate(now)

	if len(c.queue) == 0 {
		return zero, false
	}

	if !skipOutdated {
		if c.releaseTime(c.queue[0].sent) > now {
			return zero, false
		}
		m := c.queue[0]
		c.queue[0] = message[T]{}
		c.queue = c.queue[1:]
		c.stats.Released++
		return m.msg, true
	}

	last := -1
	for i, m := range c.queue {
		if c.releaseTime(m.sent) > now {
			break
		}
		last = i
	}
	if last < 0 {
		return zero, false
	}
	m := c.queue[last]
	c.stats.Skipped += last
	c.stats.Released++
	c.queue = slices.Delete(c.queue, 0, last+1)
	return m.msg, true
}

// CurrentDelay 当前附加延迟（秒）
func (c *Controller[T]) CurrentDelay() float64 {
	return c.delay
}

// MinGap 观测到的最小本地-远端时间差
func (c *Controller[T]) MinGap() float64 {
	return c.minGap
}

// Len 缓冲中的消息数
func (c *Controller[T]) Len() int {
	return len(c.queue)
}

// Stats 返回统计
func (c *Controller[T]) Stats() Stats {
	return c.stats
}

// Reset 清空缓冲和采样
func (c *Controller[T]) Reset() {
	clear(c.queue)
	c.queue = c.queue[:0]
	c.gaps = c.gaps[:0]
	c.gapPos = 0
	c.hasGap = false
	c.minGap = 0
	c.delay = c.cfg.MinDelay
	c.pending = 0
	c.lastRecalc = c.clock.Now()
}

func (c *Controller[T]) releaseTime(sent float64) float64 {
	return sent + c.minGap + c.delay
}

func (c *Controller[T]) addSample(gap float64) {
	if len(c.gaps) < c.cfg.SampleWindow {
		c.gaps = append(c.gaps, gap)
	} else {
		c.gaps[c.gapPos] = gap
		c.gapPos = (c.gapPos + 1) % c.cfg.SampleWindow
	}
	// 首个样本直接作为最小时间差，避免首批消息被无限期扣留
	if !c.hasGap {
		c.minGap = gap
		c.hasGap = true
	}
	c.pending++
}

func (c *Controller[T]) maybeRecalculate(now float64) {
	if len(c.gaps) == 0 {
		return
	}
	if c.stats.Recalcs > 0 && c.pending < c.cfg.RecalcSamples && now-c.lastRecalc < c.cfg.RecalcInterval {
		return
	}
	c.recalculate(now)
}

func (c *Controller[T]) recalculate(now float64) {
	sorted := slices.Clone(c.gaps)
	slices.Sort(sorted)

	minGap := sorted[0]
	idx := int(math.Ceil(c.cfg.UpperPercentile*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	upper := sorted[idx]

	c.minGap = minGap
	c.delay = clamp(upper-minGap+c.cfg.AddToDelay, c.cfg.MinDelay, c.cfg.MaxDelay)
	c.pending = 0
	c.lastRecalc = now
	c.stats.Recalcs++
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
