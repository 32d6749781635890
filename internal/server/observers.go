package server

import "sync"

type observer[T any] struct {
	id int
	fn func(T)
}

// Observers 按注册顺序通知的订阅列表
type Observers[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []observer[T]
}

// Add 注册订阅，返回的函数用于注销（可重复调用）
func (o *Observers[T]) Add(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.entries = append(o.entries, observer[T]{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, e := range o.entries {
			if e.id == id {
				o.entries = append(o.entries[:i], o.entries[i+1:]...)
				return
			}
		}
	}
}

// Notify 依次调用订阅者。回调在锁外执行，可以在回调中注册或注销。
func (o *Observers[T]) Notify(ev T) {
	o.mu.Lock()
	entries := make([]observer[T], len(o.entries))
	copy(entries, o.entries)
	o.mu.Unlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
