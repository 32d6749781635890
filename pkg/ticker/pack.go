package ticker

import (
	"errors"
	"fmt"
)

var ErrMalformedPack = errors.New("输入包格式错误")

// InputPack 可传输的输入历史片段，用于在不可靠信道上冗余重发
type InputPack[TInput any] struct {
	Inputs []TInput
	Times  []float64
}

// Len 输入数量
func (p InputPack[TInput]) Len() int {
	return len(p.Times)
}

// LatestTime 最新输入时间，空包返回 false
func (p InputPack[TInput]) LatestTime() (float64, bool) {
	if len(p.Times) == 0 {
		return 0, false
	}
	return p.Times[len(p.Times)-1], true
}

// Validate 由网络层在交给 Ticker 之前调用
func (p InputPack[TInput]) Validate() error {
	if len(p.Inputs) != len(p.Times) {
		return fmt.Errorf("%w: %d 个输入, %d 个时间戳", ErrMalformedPack, len(p.Inputs), len(p.Times))
	}
	for i := 1; i < len(p.Times); i++ {
		if p.Times[i] < p.Times[i-1] {
			return fmt.Errorf("%w: 时间戳非递增 (下标 %d)", ErrMalformedPack, i)
		}
	}
	return nil
}
