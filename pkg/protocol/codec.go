package protocol

import (
	"fmt"
	"math"

	"netarena/pkg/compress"
	"netarena/pkg/core"
	"netarena/pkg/ticker"
	"netarena/pkg/vmath"
)

// axisScale 输入轴量化为 [-127, 127]
const axisScale = 127

// Codec 状态快照的定宽压缩参数
type Codec struct {
	compress.Compressor
	Timer compress.FloatCodec // 冲刺剩余时间 / 冷却
}

// DefaultCodec 默认精度，量化误差小于 core.PlayerState.ApproxEqual 的容差
func DefaultCodec() Codec {
	return Codec{
		Compressor: compress.DefaultCompressor(),
		Timer:      compress.FloatCodec{Min: 0, Max: 2, Bits: 12},
	}
}

// Validate 检查参数
func (c Codec) Validate() error {
	if err := c.Compressor.Validate(); err != nil {
		return err
	}
	if err := c.Timer.Validate(); err != nil {
		return fmt.Errorf("timer: %w", err)
	}
	return nil
}

// StateBits 单个状态占用的位数
func (c Codec) StateBits() int {
	return c.Position.BitSize() + c.Velocity.BitSize() + int(c.Angle.Bits) + 2*int(c.Timer.Bits)
}

// EncodeState 压缩玩家状态
func (c Codec) EncodeState(s core.PlayerState) []byte {
	w := compress.NewBitWriter((c.StateBits() + 7) / 8)
	c.Position.Write(w, vmath.V2(s.X, s.Y))
	c.Velocity.Write(w, vmath.V2(s.VX, s.VY))
	c.Angle.Write(w, compress.WrapAngle(s.Facing))
	c.Timer.Write(w, s.DashTime)
	c.Timer.Write(w, s.DashCooldown)
	return w.Bytes()
}

// DecodeState 解压玩家状态
func (c Codec) DecodeState(b []byte) (core.PlayerState, error) {
	var s core.PlayerState
	r := compress.NewBitReader(b)
	pos, err := c.Position.Read(r)
	if err != nil {
		return s, fmt.Errorf("%w: 位置: %v", ErrMalformedPack, err)
	}
	vel, err := c.Velocity.Read(r)
	if err != nil {
		return s, fmt.Errorf("%w: 速度: %v", ErrMalformedPack, err)
	}
	facing, err := c.Angle.Read(r)
	if err != nil {
		return s, fmt.Errorf("%w: 朝向: %v", ErrMalformedPack, err)
	}
	dash, err := c.Timer.Read(r)
	if err != nil {
		return s, fmt.Errorf("%w: 冲刺: %v", ErrMalformedPack, err)
	}
	cooldown, err := c.Timer.Read(r)
	if err != nil {
		return s, fmt.Errorf("%w: 冷却: %v", ErrMalformedPack, err)
	}
	s.X, s.Y = pos.X, pos.Y
	s.VX, s.VY = vel.X, vel.Y
	s.Facing = facing
	s.DashTime = dash
	s.DashCooldown = cooldown
	return s, nil
}

// QuantizeState 返回经过一次压缩往返后的状态
func (c Codec) QuantizeState(s core.PlayerState) core.PlayerState {
	q, err := c.DecodeState(c.EncodeState(s))
	if err != nil {
		return s
	}
	return q
}

func quantizeAxis(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	return int64(math.Round(math.Max(-1, math.Min(1, v)) * axisScale))
}

// QuantizeInput 返回线格式能精确表示的输入。
// 客户端在写入本地输入轨道之前调用，保证本地预测与服务器使用同样的输入。
func QuantizeInput(in core.Input) core.Input {
	return core.Input{
		MoveX: float64(quantizeAxis(in.MoveX)) / axisScale,
		MoveY: float64(quantizeAxis(in.MoveY)) / axisScale,
		Dash:  in.Dash,
	}
}

func encodeInput(in core.Input) []byte {
	e := &encoder{}
	e.sint(1, quantizeAxis(in.MoveX))
	e.sint(2, quantizeAxis(in.MoveY))
	e.bool(3, in.Dash)
	return e.b
}

func decodeInput(b []byte) (core.Input, error) {
	var in core.Input
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			in.MoveX = float64(d.sint()) / axisScale
		case 2:
			in.MoveY = float64(d.sint()) / axisScale
		case 3:
			in.Dash = d.bool()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return in, d.err
	}
	if math.Abs(in.MoveX) > 1 || math.Abs(in.MoveY) > 1 {
		return in, fmt.Errorf("%w: 输入轴越界", ErrMalformedPack)
	}
	return in, nil
}

// ToTickerPack 转换为 Ticker 使用的输入包
func (p InputPack) ToTickerPack() ticker.InputPack[core.Input] {
	return ticker.InputPack[core.Input]{Inputs: p.Inputs, Times: p.Times}
}

// FromTickerPack 由 Ticker 的输入包构造网络消息
func FromTickerPack(entity int32, pack ticker.InputPack[core.Input]) InputPack {
	return InputPack{Entity: entity, Inputs: pack.Inputs, Times: pack.Times}
}
