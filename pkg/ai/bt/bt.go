// Package bt 最小行为树，节点在每次思考时从根节点重新求值
package bt

type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusRunning:
		return "running"
	}
	return "unknown"
}

// Node 行为树节点，B 为黑板类型
type Node[B any] interface {
	Tick(bb B) Status
}

// Selector 依次尝试子节点，直到某个子节点不失败
type Selector[B any] struct {
	Children []Node[B]
}

func (s *Selector[B]) Tick(bb B) Status {
	for _, child := range s.Children {
		if st := child.Tick(bb); st != StatusFailure {
			return st
		}
	}
	return StatusFailure
}

// Sequence 依次执行子节点，直到某个子节点不成功
type Sequence[B any] struct {
	Children []Node[B]
}

func (s *Sequence[B]) Tick(bb B) Status {
	for _, child := range s.Children {
		if st := child.Tick(bb); st != StatusSuccess {
			return st
		}
	}
	return StatusSuccess
}

// Condition 条件节点
type Condition[B any] func(bb B) bool

func (c Condition[B]) Tick(bb B) Status {
	if c == nil || !c(bb) {
		return StatusFailure
	}
	return StatusSuccess
}

// Action 动作节点
type Action[B any] func(bb B) Status

func (a Action[B]) Tick(bb B) Status {
	if a == nil {
		return StatusFailure
	}
	return a(bb)
}
