package server

import "netarena/pkg/protocol"

// EventKind 客户端消息种类
type EventKind int

const (
	EventUnknown EventKind = iota
	EventJoin
	EventInput
	EventPing
	EventPong
)

// ClientEvent 解码后的客户端消息，只有与 Kind 对应的字段非空
type ClientEvent struct {
	Kind  EventKind
	Join  *protocol.JoinRequest
	Input *protocol.InputPack
	Ping  *protocol.Ping
	Pong  *protocol.Pong
}

// PlayerEventKind 玩家生命周期事件
type PlayerEventKind int

const (
	PlayerJoined PlayerEventKind = iota
	PlayerDisconnected
	PlayerReconnected
	PlayerLeft
)

func (k PlayerEventKind) String() string {
	switch k {
	case PlayerJoined:
		return "joined"
	case PlayerDisconnected:
		return "disconnected"
	case PlayerReconnected:
		return "reconnected"
	case PlayerLeft:
		return "left"
	}
	return "unknown"
}

// PlayerEvent 通过 Observers 分发给订阅者
type PlayerEvent struct {
	Kind     PlayerEventKind
	PlayerID int32
	Name     string
	Time     float64 // 服务器时间
}
