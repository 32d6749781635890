package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"netarena/pkg/ai"
	"netarena/pkg/core"
	"netarena/pkg/protocol"
	"netarena/pkg/ticker"
)

var (
	ErrRoomFull    = errors.New("服务器已满")
	ErrRoomClosed  = errors.New("房间已关闭")
	ErrJoinEncode  = errors.New("构造加入响应失败")
	errStaleSender = errors.New("连接已被顶替")
)

// botIDBase 机器人 ID 起点，与玩家 ID 不重叠
const botIDBase = 100

// maxInputLead 输入时间戳最多领先服务器时间多少秒
const maxInputLead = 1.0

type (
	botInput = ticker.GroupInput[core.Input]
	botState = ticker.GroupState[core.PlayerState]
)

// RoomOptions 房间参数
type RoomOptions struct {
	TPS            int
	MaxPlayers     int
	MapSeed        int64
	Extrapolation  float64 // 玩家最多被模拟到最新输入之后多久
	ReconnectGrace float64 // 秒
	Ticker         ticker.Config
	Codec          protocol.Codec
	Bots           int
	BotAI          ai.Config
	BotSeed        int64
}

// Room 单个竞技场。所有模拟都在 Run 所在的 goroutine 中进行，
// 网络 goroutine 通过通道把加入、输入、离开交给它。
type Room struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts    RoomOptions
	gameMap *core.GameMap
	clock   func() float64
	now     float64

	players      map[int32]*roomPlayer
	order        []int32
	nextPlayerID int32

	world     *core.World
	bots      []*roomBot
	botTicker *ticker.Ticker[botInput, botState]

	registry  *SessionRegistry
	tokens    *TokenIssuer
	observers *Observers[PlayerEvent]

	joinCh  chan joinRequest
	inputCh chan inputEvent
	leaveCh chan leaveEvent
}

// roomPlayer 一个人类玩家：实体由自己的时间线驱动
type roomPlayer struct {
	id        int32
	name      string
	sessionID string
	session   Session // nil 表示断线，等待重连

	entity         *core.Player
	timeline       *ticker.Ticker[core.Input, core.PlayerState]
	disconnectedAt float64
	lastStats      ticker.Stats
}

type roomBot struct {
	id     int32
	brain  *ai.Bot
	entity *core.Player
}

type joinRequest struct {
	session Session
	req     *protocol.JoinRequest
	respCh  chan error
}

type inputEvent struct {
	playerID int32
	session  Session
	pack     *protocol.InputPack
}

type leaveEvent struct {
	playerID int32
	session  Session
}

// NewRoom 创建房间，机器人在创建时加入
func NewRoom(parent context.Context, opts RoomOptions, registry *SessionRegistry, tokens *TokenIssuer, observers *Observers[PlayerEvent]) *Room {
	ctx, cancel := context.WithCancel(parent)
	start := time.Now()

	r := &Room{
		ctx:          ctx,
		cancel:       cancel,
		opts:         opts,
		gameMap:      core.NewGameMap(opts.MapSeed),
		clock:        func() float64 { return time.Since(start).Seconds() },
		players:      make(map[int32]*roomPlayer),
		nextPlayerID: 1,
		registry:     registry,
		tokens:       tokens,
		observers:    observers,
		joinCh:       make(chan joinRequest),
		inputCh:      make(chan inputEvent, 256),
		leaveCh:      make(chan leaveEvent, 256),
	}
	r.world = core.NewWorld(r.gameMap)
	r.world.SetObstacles(r.humanStates)
	r.addBots()
	return r
}

func (r *Room) addBots() {
	if r.opts.Bots <= 0 {
		return
	}
	group := ticker.NewGroup[core.Input, core.PlayerState](r.world)
	for i := 0; i < r.opts.Bots; i++ {
		id := int32(botIDBase + i)
		entity := core.NewPlayer(int(id), r.gameMap)
		r.world.Add(entity)
		group.Add(entity)
		r.bots = append(r.bots, &roomBot{
			id:     id,
			brain:  ai.NewBot(int(id), r.opts.BotSeed+int64(i), r.opts.BotAI),
			entity: entity,
		})
	}
	r.botTicker = ticker.New[botInput, botState](group, r.opts.Ticker)
	r.botTicker.Reset(r.now)
	botsActive.Set(float64(len(r.bots)))
	log.Printf("房间: 加入 %d 个机器人", len(r.bots))
}

// Map 房间地图
func (r *Room) Map() *core.GameMap {
	return r.gameMap
}

// Now 服务器时间（秒），可在任意 goroutine 调用
func (r *Room) Now() float64 {
	return r.clock()
}

func (r *Room) Run(wg *sync.WaitGroup) {
	defer wg.Done()

	tps := r.opts.TPS
	if tps <= 0 {
		tps = 30
	}
	tick := time.NewTicker(time.Second / time.Duration(tps))
	defer tick.Stop()

	log.Printf("房间循环启动: %d TPS", tps)

	for {
		select {
		case <-r.ctx.Done():
			r.closeAllSessions()
			log.Println("房间循环停止")
			return

		case req := <-r.joinCh:
			req.respCh <- r.handleJoin(req.session, req.req)

		case ev := <-r.inputCh:
			r.handleInput(ev)

		case ev := <-r.leaveCh:
			r.handleLeave(ev)

		case <-tick.C:
			r.tick()
		}
	}
}

func (r *Room) Shutdown() {
	r.cancel()
}

// Join 在房间 goroutine 中处理加入请求并等待结果
func (r *Room) Join(session Session, req *protocol.JoinRequest) error {
	respCh := make(chan error, 1)

	select {
	case <-r.ctx.Done():
		return ErrRoomClosed
	case r.joinCh <- joinRequest{session: session, req: req, respCh: respCh}:
	}

	select {
	case <-r.ctx.Done():
		return ErrRoomClosed
	case err := <-respCh:
		return err
	}
}

func (r *Room) EnqueueInput(playerID int32, session Session, pack *protocol.InputPack) {
	select {
	case <-r.ctx.Done():
	case r.inputCh <- inputEvent{playerID: playerID, session: session, pack: pack}:
	}
}

func (r *Room) Leave(playerID int32, session Session) {
	select {
	case <-r.ctx.Done():
	case r.leaveCh <- leaveEvent{playerID: playerID, session: session}:
	}
}

// tick 推进所有时间线到服务器时间并广播状态
func (r *Room) tick() {
	now := r.clock()
	elapsed := math.Max(0, now-r.now)
	r.now = now
	serverTicks.Inc()

	r.expireDisconnected(now)
	for _, id := range r.order {
		r.advancePlayer(r.players[id], now)
	}
	r.advanceBots(now, elapsed)
	r.broadcastState(now)
}

// advancePlayer 在线玩家最多模拟到最新输入之后 Extrapolation 秒。
// 外推期间到达的输入早于播放时间，先回退到它之前的状态重放，再向前推进。
func (r *Room) advancePlayer(p *roomPlayer, now float64) {
	if p.timeline.ReplayLateInputs(0) {
		lateReplays.Inc()
	}

	target := now
	if _, latest, ok := p.timeline.LatestInput(); ok && p.session != nil {
		target = math.Min(now, latest+r.opts.Extrapolation)
	}
	p.timeline.Seek(target, 0)

	st := p.timeline.Stats()
	if n := st.LateInputs - p.lastStats.LateInputs; n > 0 {
		lateInputs.Add(float64(n))
	}
	if d := st.SkippedTime - p.lastStats.SkippedTime; d > 0 {
		skippedSeconds.Add(d)
	}
	p.lastStats = st
}

func (r *Room) advanceBots(now, elapsed float64) {
	if r.botTicker == nil {
		return
	}
	all := r.allStates()
	inputs := make(botInput, len(r.bots))
	for i, b := range r.bots {
		others := make([]core.PlayerState, 0, len(all))
		for _, e := range all {
			if e.id != b.id {
				others = append(others, e.state)
			}
		}
		b.brain.Observe(r.gameMap, b.entity.MakeState(), others, elapsed)
		inputs[i] = b.brain.GenerateLocal()
	}
	r.botTicker.InsertInput(inputs, now)
	r.botTicker.Seek(now, 0)
}

type entityState struct {
	id    int32
	state core.PlayerState
}

// allStates 玩家在前、机器人在后，顺序固定
func (r *Room) allStates() []entityState {
	out := make([]entityState, 0, len(r.order)+len(r.bots))
	for _, id := range r.order {
		out = append(out, entityState{id: id, state: r.players[id].entity.MakeState()})
	}
	for _, b := range r.bots {
		out = append(out, entityState{id: b.id, state: b.entity.MakeState()})
	}
	return out
}

// humanStates 机器人物理世界中的只读障碍
func (r *Room) humanStates() []core.PlayerState {
	out := make([]core.PlayerState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].entity.MakeState())
	}
	return out
}

func (r *Room) playerState(p *roomPlayer) protocol.State {
	tl := p.timeline
	playback := tl.PlaybackTime()
	st := protocol.State{
		Entity: p.id,
		State:  p.entity.MakeState(),
		Time:   playback,
	}
	inputs := tl.Inputs()
	if idx := inputs.ClosestIndexBeforeOrEarliest(playback, tl.Config().Tolerance); idx >= 0 {
		st.Input = inputs.ValueAtIndex(idx).WithoutDeltas()
	}
	if _, latest, ok := tl.LatestInput(); ok && playback > latest {
		st.ServerExtrapolation = float32(playback - latest)
	}
	if p.session != nil {
		extrapolationSeconds.Observe(float64(st.ServerExtrapolation))
	}
	return st
}

func (r *Room) broadcastState(now float64) {
	if r.connectedCount() == 0 {
		return
	}
	batch := protocol.StateBatch{ServerTime: now}
	for _, id := range r.order {
		batch.States = append(batch.States, r.playerState(r.players[id]))
	}
	if r.botTicker != nil {
		var current botInput
		if in, _, ok := r.botTicker.LatestInput(); ok {
			current = in
		}
		for i, b := range r.bots {
			st := protocol.State{Entity: b.id, State: b.entity.MakeState(), Time: r.botTicker.PlaybackTime()}
			if i < len(current) {
				st.Input = current[i]
			}
			batch.States = append(batch.States, st)
		}
	}

	data := protocol.MarshalPacket(r.opts.Codec.NewStateBatchPacket(batch))
	stateBatchBytes.Observe(float64(len(data)))
	r.broadcast(data)
}

func (r *Room) broadcast(data []byte) {
	for _, id := range r.order {
		p := r.players[id]
		if p.session == nil {
			continue
		}
		if err := p.session.Send(data); err != nil {
			log.Printf("发送到玩家 %d 失败: %v", id, err)
		}
	}
}

func (r *Room) handleJoin(session Session, req *protocol.JoinRequest) error {
	if req.SessionToken != "" {
		if p := r.reconnectTarget(req.SessionToken); p != nil {
			return r.rebind(p, session)
		}
	}

	if len(r.players) >= r.opts.MaxPlayers {
		err := fmt.Errorf("%w (%d/%d)", ErrRoomFull, len(r.players), r.opts.MaxPlayers)
		r.sendJoinFailure(session, err)
		return err
	}

	id := r.nextPlayerID
	r.nextPlayerID++

	entity := core.NewPlayer(int(id), r.gameMap)
	timeline := ticker.New[core.Input, core.PlayerState](entity, r.opts.Ticker)
	now := r.clock()
	timeline.Reset(now)

	name := req.PlayerName
	if name == "" {
		name = fmt.Sprintf("player-%d", id)
	}
	info := r.registry.Create(id, name)
	p := &roomPlayer{
		id:        id,
		name:      name,
		sessionID: info.ID,
		session:   session,
		entity:    entity,
		timeline:  timeline,
	}

	if err := r.sendJoinResponse(p, now); err != nil {
		r.registry.Remove(info.ID)
		return err
	}
	session.SetPlayerID(id)
	r.players[id] = p
	r.order = append(r.order, id)

	r.introduce(p, now)
	log.Printf("玩家 %d 加入，名称: %s, 角色: %s", id, name, entity.Character)
	r.observers.Notify(PlayerEvent{Kind: PlayerJoined, PlayerID: id, Name: name, Time: now})
	playersConnected.Set(float64(r.connectedCount()))
	return nil
}

// reconnectTarget Token 有效且对应的玩家仍在房间中时返回该玩家
func (r *Room) reconnectTarget(token string) *roomPlayer {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		log.Printf("重连 Token 无效: %v", err)
		return nil
	}
	if _, err := r.registry.Get(claims.SessionID); err != nil {
		return nil
	}
	p, ok := r.players[claims.PlayerID]
	if !ok || p.sessionID != claims.SessionID {
		return nil
	}
	return p
}

func (r *Room) rebind(p *roomPlayer, session Session) error {
	now := r.clock()
	old := p.session
	p.session = session
	if err := r.sendJoinResponse(p, now); err != nil {
		p.session = old
		return err
	}
	if old != nil && old != session {
		old.CloseWithoutNotify()
	}
	p.disconnectedAt = 0
	session.SetPlayerID(p.id)
	_ = r.registry.SetConnected(p.sessionID, true)

	r.introduce(p, now)
	log.Printf("玩家 %d 重连", p.id)
	r.observers.Notify(PlayerEvent{Kind: PlayerReconnected, PlayerID: p.id, Name: p.name, Time: now})
	playersConnected.Set(float64(r.connectedCount()))
	return nil
}

func (r *Room) sendJoinResponse(p *roomPlayer, now float64) error {
	token, err := r.tokens.Generate(p.id, p.sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJoinEncode, err)
	}
	resp := protocol.JoinResponse{
		Success:       true,
		PlayerID:      p.id,
		SessionToken:  token,
		ServerTime:    now,
		MapSeed:       r.gameMap.Seed,
		TPS:           int32(r.opts.TPS),
		Extrapolation: float32(r.opts.Extrapolation),
	}
	if err := p.session.Send(protocol.MarshalPacket(protocol.NewJoinResponsePacket(resp))); err != nil {
		return fmt.Errorf("发送加入响应失败: %w", err)
	}
	return nil
}

func (r *Room) sendJoinFailure(session Session, cause error) {
	resp := protocol.JoinResponse{Success: false, ErrorMessage: cause.Error()}
	_ = session.Send(protocol.MarshalPacket(protocol.NewJoinResponsePacket(resp)))
}

// introduce 把已有实体告诉 p，并把 p 广播给其他人
func (r *Room) introduce(p *roomPlayer, now float64) {
	for _, id := range r.order {
		other := r.players[id]
		if other == p {
			continue
		}
		_ = p.session.Send(protocol.MarshalPacket(protocol.NewPlayerJoinPacket(protocol.PlayerJoin{
			PlayerID:  id,
			Name:      other.name,
			Character: int32(other.entity.Character),
			Time:      now,
		})))
	}
	for _, b := range r.bots {
		_ = p.session.Send(protocol.MarshalPacket(protocol.NewPlayerJoinPacket(protocol.PlayerJoin{
			PlayerID:  b.id,
			Name:      fmt.Sprintf("bot-%d", b.id-botIDBase+1),
			Character: int32(b.entity.Character),
			Bot:       true,
			Time:      now,
		})))
	}

	data := protocol.MarshalPacket(protocol.NewPlayerJoinPacket(protocol.PlayerJoin{
		PlayerID:  p.id,
		Name:      p.name,
		Character: int32(p.entity.Character),
		Time:      now,
	}))
	for _, id := range r.order {
		other := r.players[id]
		if other != p && other.session != nil {
			_ = other.session.Send(data)
		}
	}
}

func (r *Room) handleInput(ev inputEvent) error {
	p, ok := r.players[ev.playerID]
	if !ok {
		inputPacksDropped.WithLabelValues("unknown_player").Inc()
		return ErrSessionNotFound
	}
	if p.session != ev.session {
		inputPacksDropped.WithLabelValues("stale_session").Inc()
		return errStaleSender
	}
	if ev.pack.Entity != 0 && ev.pack.Entity != p.id {
		inputPacksDropped.WithLabelValues("entity").Inc()
		return fmt.Errorf("输入包实体 %d 与玩家 %d 不符", ev.pack.Entity, p.id)
	}
	pack := ev.pack.ToTickerPack()
	if latest, ok := pack.LatestTime(); ok && latest > r.clock()+maxInputLead {
		inputPacksDropped.WithLabelValues("future").Inc()
		return fmt.Errorf("输入时间 %.3f 超前服务器过多", latest)
	}

	p.timeline.InsertInputPack(pack)
	inputPacksReceived.Inc()
	return nil
}

func (r *Room) handleLeave(ev leaveEvent) {
	p, ok := r.players[ev.playerID]
	if !ok || p.session == nil || p.session != ev.session {
		return
	}

	now := r.clock()
	p.session = nil
	p.disconnectedAt = now
	_ = r.registry.SetConnected(p.sessionID, false)

	// 断线后原地停下
	stopAt := p.timeline.PlaybackTime()
	if _, latest, ok := p.timeline.LatestInput(); ok && latest > stopAt {
		stopAt = latest
	}
	p.timeline.InsertInput(core.Input{}, stopAt)

	log.Printf("玩家 %d 断线", p.id)
	r.observers.Notify(PlayerEvent{Kind: PlayerDisconnected, PlayerID: p.id, Name: p.name, Time: now})
	playersConnected.Set(float64(r.connectedCount()))

	if r.opts.ReconnectGrace <= 0 {
		r.removePlayer(p, now)
	}
}

func (r *Room) expireDisconnected(now float64) {
	for _, id := range append([]int32(nil), r.order...) {
		p := r.players[id]
		if p.session == nil && now-p.disconnectedAt >= r.opts.ReconnectGrace {
			r.removePlayer(p, now)
		}
	}
}

func (r *Room) removePlayer(p *roomPlayer, now float64) {
	delete(r.players, p.id)
	for i, id := range r.order {
		if id == p.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.registry.Remove(p.sessionID)

	log.Printf("玩家 %d 离开，当前玩家数: %d", p.id, len(r.players))
	r.broadcast(protocol.MarshalPacket(protocol.NewPlayerLeavePacket(protocol.PlayerLeave{PlayerID: p.id, Time: now})))
	r.observers.Notify(PlayerEvent{Kind: PlayerLeft, PlayerID: p.id, Name: p.name, Time: now})
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.session != nil {
			n++
		}
	}
	return n
}

func (r *Room) closeAllSessions() {
	for _, p := range r.players {
		if p.session != nil {
			p.session.CloseWithoutNotify()
		}
	}
}
