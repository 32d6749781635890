package ai

import (
	"math/rand"

	"netarena/pkg/ai/bt"
	"netarena/pkg/core"
)

// Bot 服务器端机器人大脑，作为 ticker.InputSource 为机器人生成输入。
// 只根据 Observe 传入的快照思考，同一种子和同样的观察序列产生同样的输入。
type Bot struct {
	ID     int
	rnd    *rand.Rand
	config Config

	board      Blackboard
	tree       bt.Node[*Blackboard]
	sinceThink float64
	thought    bool
	cached     core.Input

	Thinks int
}

// NewBot 创建机器人
func NewBot(id int, seed int64, config Config) *Bot {
	rnd := rand.New(rand.NewSource(seed + int64(id)))
	b := &Bot{
		ID:     id,
		rnd:    rnd,
		config: config,
	}
	b.board = Blackboard{RNG: rnd, Config: &b.config}
	b.tree = &bt.Selector[*Blackboard]{Children: []bt.Node[*Blackboard]{
		&bt.Sequence[*Blackboard]{Children: []bt.Node[*Blackboard]{
			bt.Condition[*Blackboard](condFindTarget),
			bt.Action[*Blackboard](actChase),
		}},
		bt.Action[*Blackboard](actWander),
	}}
	return b
}

// Config 当前配置
func (b *Bot) Config() Config {
	return b.config
}

// Observe 提供最新世界快照，elapsed 为距离上次观察的时间（秒）
func (b *Bot) Observe(m *core.GameMap, self core.PlayerState, others []core.PlayerState, elapsed float64) {
	b.board.resetThink(m, self, others)
	b.sinceThink += elapsed
	b.board.WanderTime -= elapsed
}

// GenerateLocal 返回本帧输入，未到思考间隔时沿用上次结果
func (b *Bot) GenerateLocal() core.Input {
	if b.board.Map == nil {
		return core.Input{}
	}
	if b.thought && b.sinceThink < b.config.ThinkInterval {
		return b.cached
	}
	b.thought = true
	b.sinceThink = 0
	b.Thinks++

	b.board.NextInput = core.Input{}
	_ = b.tree.Tick(&b.board)

	// 随机失误：停下或随机方向
	if b.config.MistakeRate > 0 && b.rnd.Float64() < b.config.MistakeRate {
		switch b.rnd.Intn(2) {
		case 0:
			b.board.NextInput = core.Input{}
		case 1:
			b.board.NextInput = directionToInput(DirUp + b.rnd.Intn(4))
		}
	}

	b.cached = b.board.NextInput
	return b.cached
}
