package track

import (
	"iter"
	"math"
	"slices"
	"sort"
)

// NotFound 查询失败时返回的索引
const NotFound = -1

type entry[T any] struct {
	time  float64
	value T
}

// Track 按时间升序排列的时间序列（输入或状态历史）
// 同一容差窗口内最多只有一个条目，重复写入会覆盖而不是追加
type Track[T any] struct {
	entries   []entry[T]
	tolerance float64
}

// New 创建时间序列，tolerance 为写入时判定"同一时刻"的容差（秒）
func New[T any](tolerance float64) *Track[T] {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Track[T]{
		entries:   make([]entry[T], 0, 64),
		tolerance: tolerance,
	}
}

// Tolerance 返回写入容差
func (t *Track[T]) Tolerance() float64 {
	return t.tolerance
}

// Len 返回条目数量
func (t *Track[T]) Len() int {
	return len(t.entries)
}

// Insert 按时间顺序插入；容差内已有条目时覆盖其值（保留原时间戳）
func (t *Track[T]) Insert(time float64, value T) {
	if i := t.IndexAt(time, t.tolerance); i != NotFound {
		t.entries[i].value = value
		return
	}

	n := len(t.entries)
	if n == 0 || time > t.entries[n-1].time {
		t.entries = append(t.entries, entry[T]{time: time, value: value})
		return
	}

	// 乱序写入：二分查找插入点
	i := sort.Search(n, func(i int) bool { return t.entries[i].time > time })
	t.entries = slices.Insert(t.entries, i, entry[T]{time: time, value: value})
}

// Set 幂等写入，语义与 Insert 相同
func (t *Track[T]) Set(time float64, value T) {
	t.Insert(time, value)
}

// IndexAt 返回与 time 相差不超过 tolerance 的最早条目索引，不存在时返回 NotFound
func (t *Track[T]) IndexAt(time, tolerance float64) int {
	n := len(t.entries)
	if n == 0 {
		return NotFound
	}
	i := sort.Search(n, func(i int) bool { return t.entries[i].time >= time-tolerance })
	if i < n && t.entries[i].time <= time+tolerance {
		return i
	}
	return NotFound
}

// ValueAt 查询指定时刻的值，不存在时返回零值和 false
func (t *Track[T]) ValueAt(time, tolerance float64) (T, bool) {
	i := t.IndexAt(time, tolerance)
	if i == NotFound {
		var zero T
		return zero, false
	}
	return t.entries[i].value, true
}

// ClosestIndexBefore 返回 time 时刻生效的条目：时间戳 < time+tolerance 的最后一个条目。
// 容差窗口内有多个候选时取最早的一个。
func (t *Track[T]) ClosestIndexBefore(time, tolerance float64) int {
	if i := t.IndexAt(time, tolerance); i != NotFound {
		return i
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].time >= time+tolerance })
	return i - 1
}

// ClosestIndexBeforeOrEarliest 同 ClosestIndexBefore，找不到时退回最早的条目。
// 仅在轨道为空时返回 NotFound。
func (t *Track[T]) ClosestIndexBeforeOrEarliest(time, tolerance float64) int {
	if len(t.entries) == 0 {
		return NotFound
	}
	if i := t.ClosestIndexBefore(time, tolerance); i != NotFound {
		return i
	}
	return 0
}

// At 返回索引处的时间和值
func (t *Track[T]) At(i int) (float64, T) {
	e := t.entries[i]
	return e.time, e.value
}

// TimeAt 返回索引处的时间
func (t *Track[T]) TimeAt(i int) float64 {
	return t.entries[i].time
}

// ValueAtIndex 返回索引处的值
func (t *Track[T]) ValueAtIndex(i int) T {
	return t.entries[i].value
}

// Latest 返回最新条目的值
func (t *Track[T]) Latest() (T, bool) {
	n := len(t.entries)
	if n == 0 {
		var zero T
		return zero, false
	}
	return t.entries[n-1].value, true
}

// LatestTime 返回最新条目的时间，空轨道返回负无穷
func (t *Track[T]) LatestTime() float64 {
	n := len(t.entries)
	if n == 0 {
		return math.Inf(-1)
	}
	return t.entries[n-1].time
}

// EarliestTime 返回最早条目的时间，空轨道返回正无穷
func (t *Track[T]) EarliestTime() float64 {
	if len(t.entries) == 0 {
		return math.Inf(1)
	}
	return t.entries[0].time
}

// Prune 丢弃 [minTime, maxTime] 之外的条目，保留条目的相对顺序
func (t *Track[T]) Prune(minTime, maxTime float64) {
	n := len(t.entries)
	lo := sort.Search(n, func(i int) bool { return t.entries[i].time >= minTime })
	hi := sort.Search(n, func(i int) bool { return t.entries[i].time > maxTime })
	if lo == 0 && hi == n {
		return
	}
	if lo >= hi {
		t.Clear()
		return
	}
	kept := copy(t.entries, t.entries[lo:hi])
	clear(t.entries[kept:])
	t.entries = t.entries[:kept]
}

// RemoveAfter 删除时间戳严格大于 time 的条目
func (t *Track[T]) RemoveAfter(time float64) {
	n := len(t.entries)
	i := sort.Search(n, func(i int) bool { return t.entries[i].time > time })
	clear(t.entries[i:])
	t.entries = t.entries[:i]
}

// Clear 清空轨道
func (t *Track[T]) Clear() {
	clear(t.entries)
	t.entries = t.entries[:0]
}

// All 按时间顺序遍历所有条目
func (t *Track[T]) All() iter.Seq2[float64, T] {
	return func(yield func(float64, T) bool) {
		for _, e := range t.entries {
			if !yield(e.time, e.value) {
				return
			}
		}
	}
}

// Since 遍历时间戳 >= minTime 的条目
func (t *Track[T]) Since(minTime float64) iter.Seq2[float64, T] {
	return func(yield func(float64, T) bool) {
		i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].time >= minTime })
		for ; i < len(t.entries); i++ {
			if !yield(t.entries[i].time, t.entries[i].value) {
				return
			}
		}
	}
}
