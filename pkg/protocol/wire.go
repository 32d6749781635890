package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// encoder 按 protobuf 线格式写字段，零值字段省略
type encoder struct {
	b []byte
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) sint(num protowire.Number, v int64) {
	e.varint(num, protowire.EncodeZigZag(v))
}

func (e *encoder) bool(num protowire.Number, v bool) {
	e.varint(num, protowire.EncodeBool(v))
}

func (e *encoder) double(num protowire.Number, v float64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.Fixed64Type)
	e.b = protowire.AppendFixed64(e.b, math.Float64bits(v))
}

func (e *encoder) float(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.Fixed32Type)
	e.b = protowire.AppendFixed32(e.b, math.Float32bits(v))
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

// message 写入嵌套消息，空消息也会写入以保留重复字段的个数
func (e *encoder) message(num protowire.Number, v []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

// packedDoubles 写入 packed repeated double
func (e *encoder) packedDoubles(num protowire.Number, vs []float64) {
	if len(vs) == 0 {
		return
	}
	buf := make([]byte, 0, len(vs)*8)
	for _, v := range vs {
		buf = protowire.AppendFixed64(buf, math.Float64bits(v))
	}
	e.bytes(num, buf)
}

// decoder 逐字段读取；出错后所有读取返回零值，错误保存在 err
type decoder struct {
	b   []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{b: b}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s", ErrMalformedPack, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) parseErr(n int) {
	d.fail("字段 %d: %v", d.num, protowire.ParseError(n))
}

// next 读取下一个字段头
func (d *decoder) next() bool {
	if d.err != nil || len(d.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(d.b)
	if n < 0 {
		d.parseErr(n)
		return false
	}
	d.num, d.typ = num, typ
	d.b = d.b[n:]
	return true
}

func (d *decoder) expect(typ protowire.Type) bool {
	if d.err != nil {
		return false
	}
	if d.typ != typ {
		d.fail("字段 %d 类型错误", d.num)
		return false
	}
	return true
}

func (d *decoder) varint() uint64 {
	if !d.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.b)
	if n < 0 {
		d.parseErr(n)
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) sint() int64 {
	return protowire.DecodeZigZag(d.varint())
}

func (d *decoder) bool() bool {
	return protowire.DecodeBool(d.varint())
}

func (d *decoder) double() float64 {
	if !d.expect(protowire.Fixed64Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed64(d.b)
	if n < 0 {
		d.parseErr(n)
		return 0
	}
	d.b = d.b[n:]
	return math.Float64frombits(v)
}

func (d *decoder) float() float32 {
	if !d.expect(protowire.Fixed32Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed32(d.b)
	if n < 0 {
		d.parseErr(n)
		return 0
	}
	d.b = d.b[n:]
	return math.Float32frombits(v)
}

func (d *decoder) bytes() []byte {
	if !d.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.b)
	if n < 0 {
		d.parseErr(n)
		return nil
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) packedDoubles() []float64 {
	buf := d.bytes()
	if d.err != nil {
		return nil
	}
	if len(buf)%8 != 0 {
		d.fail("字段 %d packed double 长度 %d", d.num, len(buf))
		return nil
	}
	out := make([]float64, 0, len(buf)/8)
	for len(buf) > 0 {
		v, n := protowire.ConsumeFixed64(buf)
		if n < 0 {
			d.parseErr(n)
			return nil
		}
		out = append(out, math.Float64frombits(v))
		buf = buf[n:]
	}
	return out
}

// skip 跳过未知字段，便于协议向前兼容
func (d *decoder) skip() {
	if d.err != nil {
		return
	}
	n := protowire.ConsumeFieldValue(d.num, d.typ, d.b)
	if n < 0 {
		d.parseErr(n)
		return
	}
	d.b = d.b[n:]
}
