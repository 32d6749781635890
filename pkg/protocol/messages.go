package protocol

import (
	"errors"

	"netarena/pkg/core"
	"netarena/pkg/ticker"
)

var (
	// ErrMalformedPack 负载无法解析或不满足约束，与 ticker.ErrMalformedPack 相同
	ErrMalformedPack = ticker.ErrMalformedPack
	// ErrUnexpectedType 消息类型与解析函数不匹配
	ErrUnexpectedType = errors.New("消息类型不匹配")
)

// MaxPackInputs 单个输入包允许的最多输入数
const MaxPackInputs = 256

// MessageType 消息类型
type MessageType int32

const (
	MsgUnknown MessageType = iota
	MsgJoinRequest
	MsgJoinResponse
	MsgInputPack
	MsgStateBatch
	MsgPlayerJoin
	MsgPlayerLeave
	MsgPing
	MsgPong
)

func (t MessageType) String() string {
	switch t {
	case MsgJoinRequest:
		return "join_request"
	case MsgJoinResponse:
		return "join_response"
	case MsgInputPack:
		return "input_pack"
	case MsgStateBatch:
		return "state_batch"
	case MsgPlayerJoin:
		return "player_join"
	case MsgPlayerLeave:
		return "player_leave"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	}
	return "unknown"
}

// Packet 传输层上的消息信封
type Packet struct {
	Type    MessageType
	Payload []byte
}

// JoinRequest 客户端加入请求，SessionToken 非空时表示断线重连
type JoinRequest struct {
	PlayerName   string
	SessionToken string
}

// JoinResponse 加入结果
type JoinResponse struct {
	Success       bool
	PlayerID      int32
	ErrorMessage  string
	SessionToken  string
	ServerTime    float64 // 服务器模拟时间（秒）
	MapSeed       int64
	TPS           int32
	Extrapolation float32 // 服务器对远端实体的外推时长（秒）
}

// InputPack 客户端发送的输入历史，冗余覆盖最近一段时间
type InputPack struct {
	Entity int32
	Inputs []core.Input
	Times  []float64
}

// State 一个实体的权威状态
type State struct {
	Entity              int32
	State               core.PlayerState
	Input               core.Input // 该时刻实体正在使用的输入，用于远端外推
	Time                float64
	ServerExtrapolation float32 // 服务器在 Time 之后已经外推的时长
}

// StateBatch 同一服务器 tick 的全部实体状态
type StateBatch struct {
	ServerTime float64
	States     []State
}

// PlayerJoin 玩家（或机器人）进入房间
type PlayerJoin struct {
	PlayerID  int32
	Name      string
	Character int32
	Bot       bool
	Time      float64
}

// PlayerLeave 玩家离开房间
type PlayerLeave struct {
	PlayerID int32
	Time     float64
}

// Ping 心跳
type Ping struct {
	ClientTime float64
}

// Pong 心跳响应
type Pong struct {
	ClientTime float64
	ServerTime float64
}
