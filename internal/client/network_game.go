package client

import (
	"log"
	"math"
	"time"

	"golang.org/x/time/rate"

	"netarena/internal/config"
	"netarena/pkg/core"
	"netarena/pkg/flow"
	"netarena/pkg/interp"
	"netarena/pkg/protocol"
	"netarena/pkg/ticker"
	"netarena/pkg/vmath"
)

type (
	timeline     = ticker.Ticker[core.Input, core.PlayerState]
	interpolator = interp.Interpolator[core.PlayerState]
)

// ServerLink 游戏客户端需要的网络能力，NetworkClient 实现了它
type ServerLink interface {
	ServerTime() float64
	RTT() float64
	SendInputPack(pack protocol.InputPack) error
	ReceiveStateBatch() *protocol.StateBatch
	ReceivePlayerJoin() *protocol.PlayerJoin
	ReceivePlayerLeave() *protocol.PlayerLeave
}

// Entity 客户端上的一个玩家（本地或远端）
type Entity struct {
	ID        int32
	Name      string
	Character core.CharacterType
	Bot       bool
	Local     bool

	Player   *core.Player
	Timeline *timeline
	Interp   *interpolator

	// 远端实体收到第一份权威状态之前不推进也不绘制
	synced    bool
	unobserve func()
}

// Synced 是否已有可用状态
func (e *Entity) Synced() bool {
	return e.synced
}

// State 当前模拟状态
func (e *Entity) State() core.PlayerState {
	return e.Player.MakeState()
}

// DisplayPosition 叠加纠错偏移后的绘制位置
func (e *Entity) DisplayPosition() vmath.Vec3 {
	return e.Interp.Apply(e.State().Position())
}

// NetStats 客户端网络统计
type NetStats struct {
	Batches       int // 处理的状态批次
	States        int // 处理的实体状态
	UnknownStates int // 没有对应实体的状态
	PacksSent     int
	SendErrors    int
	Extrapolated  int // 本地玩家被服务器外推的状态数
}

// NetworkGameClient 联机游戏客户端：
// 本地玩家按输入预测，远端玩家按最近的权威状态和输入外推，收到状态后回滚重放
type NetworkGameClient struct {
	link   ServerLink
	source ticker.InputSource[core.Input]
	cfg    config.ClientConfig
	tcfg   ticker.Config

	playerID int32
	gameMap  *core.GameMap

	local    *Entity
	entities map[int32]*Entity
	order    []int32

	batches     *flow.Controller[*protocol.StateBatch]
	sendLimiter *rate.Limiter

	localTime float64
	leadBoost float64
	stats     NetStats
}

// NewNetworkGameClient 创建联机游戏客户端，resp 为成功的加入响应
func NewNetworkGameClient(link ServerLink, resp *protocol.JoinResponse, source ticker.InputSource[core.Input], cfg *config.Config) *NetworkGameClient {
	g := &NetworkGameClient{
		link:        link,
		source:      source,
		cfg:         cfg.Client,
		tcfg:        cfg.Ticker,
		playerID:    resp.PlayerID,
		gameMap:     core.NewGameMap(resp.MapSeed),
		entities:    make(map[int32]*Entity),
		batches:     flow.New[*protocol.StateBatch](cfg.Flow, flow.ClockFunc(link.ServerTime)),
		sendLimiter: rate.NewLimiter(rate.Limit(cfg.Client.InputSendRate), 1),
	}

	g.local = g.addEntity(&protocol.PlayerJoin{
		PlayerID:  resp.PlayerID,
		Name:      cfg.Client.Name,
		Character: int32(core.CharacterForID(int(resp.PlayerID))),
	})
	g.local.Local = true
	g.local.synced = true
	return g
}

// Map 地图
func (g *NetworkGameClient) Map() *core.GameMap {
	return g.gameMap
}

// PlayerID 本地玩家 ID
func (g *NetworkGameClient) PlayerID() int32 {
	return g.playerID
}

// Local 本地玩家
func (g *NetworkGameClient) Local() *Entity {
	return g.local
}

// Entity 按 ID 查找实体
func (g *NetworkGameClient) Entity(id int32) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Entities 按加入顺序返回所有实体
func (g *NetworkGameClient) Entities() []*Entity {
	out := make([]*Entity, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entities[id])
	}
	return out
}

// LocalTime 本地预测时间（服务器时间轴）
func (g *NetworkGameClient) LocalTime() float64 {
	return g.localTime
}

// LeadBoost 当前额外领先量
func (g *NetworkGameClient) LeadBoost() float64 {
	return g.leadBoost
}

// Stats 网络统计
func (g *NetworkGameClient) Stats() NetStats {
	return g.stats
}

// FlowDelay 状态抖动缓冲的当前延迟
func (g *NetworkGameClient) FlowDelay() float64 {
	return g.batches.CurrentDelay()
}

// Update 每个渲染帧调用一次
func (g *NetworkGameClient) Update(deltaTime float64) {
	// 1. 玩家加入/离开
	g.handleRosterEvents()

	// 2. 推进本地时间
	target := g.link.ServerTime() + g.link.RTT()/2 + g.cfg.Extrapolation + g.leadBoost
	g.localTime = math.Max(g.localTime, target)

	// 3. 采集本地输入并预测
	in := protocol.QuantizeInput(g.source.GenerateLocal())
	g.local.Timeline.InsertInput(in, g.localTime)
	g.local.Timeline.Seek(g.localTime, 0)
	g.sendInputs()

	// 4. 应用经过抖动缓冲的权威状态
	for {
		batch := g.link.ReceiveStateBatch()
		if batch == nil {
			break
		}
		g.batches.PushMessage(batch, batch.ServerTime)
	}
	if batch, ok := g.batches.TryPopMessage(true); ok {
		g.applyStateBatch(batch)
	}

	// 5. 远端实体外推到本地时间
	for _, id := range g.order {
		e := g.entities[id]
		if e.Local || !e.synced {
			continue
		}
		e.Timeline.Seek(g.localTime, ticker.FlagIgnoreDeltas)
	}

	// 6. 衰减纠错偏移
	for _, id := range g.order {
		g.entities[id].Interp.Update(deltaTime)
	}
}

// sendInputs 按发送速率发送最近一段输入历史，丢包由后续包冗余覆盖
func (g *NetworkGameClient) sendInputs() {
	at := time.Unix(0, 0).Add(time.Duration(g.localTime * float64(time.Second)))
	if !g.sendLimiter.AllowN(at, 1) {
		return
	}

	pack := g.local.Timeline.MakeInputPack(g.cfg.InputPackAge)
	if n := pack.Len(); n > protocol.MaxPackInputs {
		pack.Inputs = pack.Inputs[n-protocol.MaxPackInputs:]
		pack.Times = pack.Times[n-protocol.MaxPackInputs:]
	}
	if pack.Len() == 0 {
		return
	}
	if err := g.link.SendInputPack(protocol.FromTickerPack(g.playerID, pack)); err != nil {
		g.stats.SendErrors++
		return
	}
	g.stats.PacksSent++
}

func (g *NetworkGameClient) applyStateBatch(batch *protocol.StateBatch) {
	g.stats.Batches++
	for i := range batch.States {
		st := &batch.States[i]
		e, ok := g.entities[st.Entity]
		if !ok {
			g.stats.UnknownStates++
			continue
		}
		g.stats.States++

		flags := ticker.Flags(0)
		if st.ServerExtrapolation > 0 {
			flags |= ticker.FlagDontConfirm
		}

		if e.Local {
			if st.ServerExtrapolation > 0 {
				g.stats.Extrapolated++
				g.leadBoost = math.Min(MaxLeadBoost, g.leadBoost+LeadBoostStep)
			} else {
				g.leadBoost *= LeadBoostDecay
			}
			e.Timeline.Reconcile(st.State, st.Time, flags)
			continue
		}

		// 远端实体只知道服务器转发的输入，没有完整的增量历史
		flags |= ticker.FlagIgnoreDeltas
		e.Timeline.InsertInput(st.Input, st.Time)
		e.Timeline.Reconcile(st.State, st.Time, flags)
		e.synced = true
	}
}

func (g *NetworkGameClient) handleRosterEvents() {
	for {
		ev := g.link.ReceivePlayerJoin()
		if ev == nil {
			break
		}
		if e, ok := g.entities[ev.PlayerID]; ok {
			e.Name = ev.Name
			e.Bot = ev.Bot
			continue
		}
		g.addEntity(ev)
		log.Printf("玩家 %d (%s) 加入", ev.PlayerID, ev.Name)
	}

	for {
		ev := g.link.ReceivePlayerLeave()
		if ev == nil {
			break
		}
		if ev.PlayerID == g.playerID {
			continue
		}
		if g.removeEntity(ev.PlayerID) {
			log.Printf("玩家 %d 离开", ev.PlayerID)
		}
	}
}

func (g *NetworkGameClient) addEntity(ev *protocol.PlayerJoin) *Entity {
	player := core.NewPlayer(int(ev.PlayerID), g.gameMap)
	player.Character = core.CharacterType(ev.Character)

	e := &Entity{
		ID:        ev.PlayerID,
		Name:      ev.Name,
		Character: player.Character,
		Bot:       ev.Bot,
		Player:    player,
		Timeline:  ticker.New[core.Input, core.PlayerState](player, g.tcfg),
		Interp:    interp.New(core.PlayerState.Position, g.cfg.SmoothTime),
	}
	e.Interp.MaxOffset = g.cfg.MaxOffset
	e.unobserve = e.Timeline.AddObserver(e.Interp)

	g.entities[e.ID] = e
	g.order = append(g.order, e.ID)
	return e
}

func (g *NetworkGameClient) removeEntity(id int32) bool {
	e, ok := g.entities[id]
	if !ok {
		return false
	}
	e.unobserve()
	delete(g.entities, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}
