package compress

import (
	"fmt"
	"math"

	"netarena/pkg/vmath"
)

// FloatCodec 把 [Min, Max] 内的浮点数量化为 Bits 位无符号整数，超出范围的值会被截断
type FloatCodec struct {
	Min  float64
	Max  float64
	Bits uint
}

// Validate 检查参数
func (c FloatCodec) Validate() error {
	if c.Bits == 0 || c.Bits > MaxBitsPerWrite {
		return fmt.Errorf("%w: %d", ErrBitWidth, c.Bits)
	}
	if !(c.Max > c.Min) {
		return fmt.Errorf("量化范围无效: [%g, %g]", c.Min, c.Max)
	}
	return nil
}

func (c FloatCodec) steps() float64 {
	return float64((uint64(1) << c.Bits) - 1)
}

// Precision 量化步长，编解码误差不超过其一半
func (c FloatCodec) Precision() float64 {
	return (c.Max - c.Min) / c.steps()
}

// Quantize 浮点数 -> 整数
func (c FloatCodec) Quantize(v float64) uint64 {
	if math.IsNaN(v) || v <= c.Min {
		return 0
	}
	if v >= c.Max {
		return uint64(c.steps())
	}
	return uint64(math.Round((v - c.Min) / (c.Max - c.Min) * c.steps()))
}

// Dequantize 整数 -> 浮点数
func (c FloatCodec) Dequantize(q uint64) float64 {
	steps := c.steps()
	f := float64(q)
	if f > steps {
		f = steps
	}
	return c.Min + f/steps*(c.Max-c.Min)
}

// Write 量化后写入
func (c FloatCodec) Write(w *BitWriter, v float64) {
	w.WriteBits(c.Quantize(v), c.Bits)
}

// Read 读取并反量化
func (c FloatCodec) Read(r *BitReader) (float64, error) {
	q, err := r.ReadBits(c.Bits)
	if err != nil {
		return 0, err
	}
	return c.Dequantize(q), nil
}

// NewAngleCodec 角度编码器，范围 [-π, π]
func NewAngleCodec(bits uint) FloatCodec {
	return FloatCodec{Min: -math.Pi, Max: math.Pi, Bits: bits}
}

// WrapAngle 把角度折回 [-π, π]
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// VectorCodec 定宽向量编码，每个分量使用相同的范围和位宽
type VectorCodec struct {
	FloatCodec
	Dims int // 2 或 3，0 视为 3
}

func (c VectorCodec) dims() int {
	if c.Dims == 2 {
		return 2
	}
	return 3
}

// BitSize 单个向量占用的位数
func (c VectorCodec) BitSize() int {
	return c.dims() * int(c.Bits)
}

// Write 写入向量
func (c VectorCodec) Write(w *BitWriter, v vmath.Vec3) {
	c.FloatCodec.Write(w, v.X)
	c.FloatCodec.Write(w, v.Y)
	if c.dims() == 3 {
		c.FloatCodec.Write(w, v.Z)
	}
}

// Read 读取向量
func (c VectorCodec) Read(r *BitReader) (vmath.Vec3, error) {
	var v vmath.Vec3
	var err error
	if v.X, err = c.FloatCodec.Read(r); err != nil {
		return v, err
	}
	if v.Y, err = c.FloatCodec.Read(r); err != nil {
		return v, err
	}
	if c.dims() == 3 {
		if v.Z, err = c.FloatCodec.Read(r); err != nil {
			return v, err
		}
	}
	return v, nil
}

// RotationCodec 四元数"最小三分量"编码：
// 2 位记录绝对值最大的分量下标，其余三个分量各 Bits 位，范围 [-1/√2, 1/√2]
type RotationCodec struct {
	Bits uint
}

func (c RotationCodec) component() FloatCodec {
	return FloatCodec{Min: -math.Sqrt2 / 2, Max: math.Sqrt2 / 2, Bits: c.Bits}
}

// BitSize 单个旋转占用的位数
func (c RotationCodec) BitSize() int {
	return 2 + 3*int(c.Bits)
}

// Write 写入旋转
func (c RotationCodec) Write(w *BitWriter, q vmath.Quat) {
	comps := q.Normalize().Components()
	largest := 0
	for i := 1; i < 4; i++ {
		if math.Abs(comps[i]) > math.Abs(comps[largest]) {
			largest = i
		}
	}
	// q 与 -q 表示同一旋转，保证被省略的分量为正
	sign := 1.0
	if comps[largest] < 0 {
		sign = -1
	}

	w.WriteBits(uint64(largest), 2)
	fc := c.component()
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		fc.Write(w, comps[i]*sign)
	}
}

// Read 读取旋转
func (c RotationCodec) Read(r *BitReader) (vmath.Quat, error) {
	idx, err := r.ReadBits(2)
	if err != nil {
		return vmath.Identity(), err
	}
	largest := int(idx)

	var comps [4]float64
	sum := 0.0
	fc := c.component()
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		v, err := fc.Read(r)
		if err != nil {
			return vmath.Identity(), err
		}
		comps[i] = v
		sum += v * v
	}
	comps[largest] = math.Sqrt(math.Max(0, 1-sum))
	return vmath.QuatFromComponents(comps).Normalize(), nil
}

// Compressor 状态快照使用的一组编码器（精度可配置）
type Compressor struct {
	Position VectorCodec
	Velocity VectorCodec
	Rotation RotationCodec
	Angle    FloatCodec
}

// DefaultCompressor 默认精度：位置 [-1024, 1024] 20 位，速度 [-512, 512] 16 位
func DefaultCompressor() Compressor {
	return Compressor{
		Position: VectorCodec{FloatCodec: FloatCodec{Min: -1024, Max: 1024, Bits: 20}, Dims: 2},
		Velocity: VectorCodec{FloatCodec: FloatCodec{Min: -512, Max: 512, Bits: 16}, Dims: 2},
		Rotation: RotationCodec{Bits: 10},
		Angle:    NewAngleCodec(12),
	}
}

// Validate 检查所有编码器参数
func (c Compressor) Validate() error {
	if err := c.Position.Validate(); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	if err := c.Velocity.Validate(); err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	if err := c.Rotation.component().Validate(); err != nil {
		return fmt.Errorf("rotation: %w", err)
	}
	if err := c.Angle.Validate(); err != nil {
		return fmt.Errorf("angle: %w", err)
	}
	return nil
}
