package compress

import (
	"errors"
	"slices"
)

// MaxBitsPerWrite 单次读写允许的最大位宽
const MaxBitsPerWrite = 32

var (
	ErrShortBuffer = errors.New("位缓冲区数据不足")
	ErrBitWidth    = errors.New("位宽超出范围")
)

// BitWriter 按位写入，低位在前
type BitWriter struct {
	buf     []byte
	scratch uint64
	bits    uint
}

// NewBitWriter 创建位写入器，capacity 为预估字节数
func NewBitWriter(capacity int) *BitWriter {
	return &BitWriter{buf: make([]byte, 0, capacity)}
}

// WriteBits 写入 v 的低 n 位（n <= 32）
func (w *BitWriter) WriteBits(v uint64, n uint) {
	if n == 0 {
		return
	}
	if n > MaxBitsPerWrite {
		n = MaxBitsPerWrite
	}
	v &= (uint64(1) << n) - 1
	w.scratch |= v << w.bits
	w.bits += n
	for w.bits >= 8 {
		w.buf = append(w.buf, byte(w.scratch))
		w.scratch >>= 8
		w.bits -= 8
	}
}

// WriteBool 写入 1 位
func (w *BitWriter) WriteBool(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// BitLen 已写入的位数
func (w *BitWriter) BitLen() int {
	return len(w.buf)*8 + int(w.bits)
}

// Bytes 返回已写入的数据（末尾不足一字节的部分补零）
func (w *BitWriter) Bytes() []byte {
	out := slices.Clone(w.buf)
	if w.bits > 0 {
		out = append(out, byte(w.scratch))
	}
	return out
}

// BitReader 按位读取，与 BitWriter 对应
type BitReader struct {
	buf []byte
	pos uint
}

// NewBitReader 创建位读取器
func NewBitReader(buf []byte) *BitReader {
	return &BitReader{buf: buf}
}

// ReadBits 读取 n 位（n <= 32）
func (r *BitReader) ReadBits(n uint) (uint64, error) {
	if n > MaxBitsPerWrite {
		return 0, ErrBitWidth
	}
	if r.pos+n > uint(len(r.buf))*8 {
		return 0, ErrShortBuffer
	}

	var v uint64
	for i := uint(0); i < n; {
		off := r.pos % 8
		take := min(8-off, n-i)
		chunk := (uint64(r.buf[r.pos/8]) >> off) & ((uint64(1) << take) - 1)
		v |= chunk << i
		i += take
		r.pos += take
	}
	return v, nil
}

// ReadBool 读取 1 位
func (r *BitReader) ReadBool() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// Remaining 剩余可读位数
func (r *BitReader) Remaining() int {
	return len(r.buf)*8 - int(r.pos)
}
