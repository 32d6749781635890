package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockSyncUsesLowestRTTSample(t *testing.T) {
	c := NewClockSync(4)
	assert.False(t, c.Ready())

	// 本地 10.0 发出，服务器 105.05 回复，本地 10.1 收到：偏移 95
	rtt, ok := c.AddSample(10.0, 105.05, 10.1)
	require.True(t, ok)
	assert.InDelta(t, 0.1, rtt, 1e-9)
	assert.True(t, c.Ready())
	assert.InDelta(t, 95.0, c.Offset(), 1e-9)

	// 排队更久的样本偏移估计偏差更大，不应覆盖
	_, ok = c.AddSample(11.0, 106.3, 11.4)
	require.True(t, ok)
	assert.InDelta(t, 95.0, c.Offset(), 1e-9)
	assert.InDelta(t, 0.1, c.RTT(), 1e-9)

	_, ok = c.AddSample(12.0, 107.01, 12.02)
	require.True(t, ok)
	assert.InDelta(t, 95.0, c.Offset(), 1e-9)
	assert.InDelta(t, 0.02, c.RTT(), 1e-9)
	assert.InDelta(t, 108.0, c.ServerTime(13.0), 1e-9)
}

func TestClockSyncRejectsNegativeRTT(t *testing.T) {
	c := NewClockSync(0)
	_, ok := c.AddSample(5, 100, 4)
	assert.False(t, ok)
	assert.False(t, c.Ready())
	assert.Equal(t, 3.0, c.ServerTime(3))
}

func TestClockSyncWindowForgetsOldSamples(t *testing.T) {
	c := NewClockSync(2)
	c.AddSample(0, 50.005, 0.01) // rtt 0.01, offset 50
	c.AddSample(1, 61.1, 1.2)    // rtt 0.2, offset 60
	assert.InDelta(t, 50.0, c.Offset(), 1e-9)

	// 最优样本滑出窗口后换用剩余样本中 RTT 最小的
	c.AddSample(2, 72.15, 2.3) // rtt 0.3, offset 70
	assert.InDelta(t, 60.0, c.Offset(), 1e-9)
	assert.InDelta(t, 0.2, c.RTT(), 1e-9)
}
