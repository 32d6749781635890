package protocol

import (
	"fmt"
	"math"
)

// ========== 序列化与反序列化 ==========

// MarshalPacket 将 Packet 编码为字节切片
func MarshalPacket(pkt *Packet) []byte {
	e := &encoder{}
	e.varint(1, uint64(pkt.Type))
	e.bytes(2, pkt.Payload)
	return e.b
}

// UnmarshalPacket 将字节切片解析为 Packet
func UnmarshalPacket(data []byte) (*Packet, error) {
	pkt := &Packet{}
	d := newDecoder(data)
	for d.next() {
		switch d.num {
		case 1:
			pkt.Type = MessageType(d.varint())
		case 2:
			pkt.Payload = d.bytes()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if pkt.Type == MsgUnknown || pkt.Type > MsgPong {
		return nil, fmt.Errorf("%w: 未知消息类型 %d", ErrMalformedPack, pkt.Type)
	}
	return pkt, nil
}

func checkType(pkt *Packet, want MessageType) error {
	if pkt.Type != want {
		return fmt.Errorf("%w: 期望 %s, 实际 %s", ErrUnexpectedType, want, pkt.Type)
	}
	return nil
}

// ========== 客户端消息 ==========

// NewJoinRequestPacket 构造加入请求消息包
func NewJoinRequestPacket(req JoinRequest) *Packet {
	e := &encoder{}
	e.string(1, req.PlayerName)
	e.string(2, req.SessionToken)
	return &Packet{Type: MsgJoinRequest, Payload: e.b}
}

// ParseJoinRequest 从 Packet 中解析 JoinRequest
func ParseJoinRequest(pkt *Packet) (*JoinRequest, error) {
	if err := checkType(pkt, MsgJoinRequest); err != nil {
		return nil, err
	}
	req := &JoinRequest{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			req.PlayerName = d.string()
		case 2:
			req.SessionToken = d.string()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return req, nil
}

// NewInputPackPacket 构造输入包消息
func NewInputPackPacket(pack InputPack) *Packet {
	e := &encoder{}
	e.sint(1, int64(pack.Entity))
	for _, in := range pack.Inputs {
		e.message(2, encodeInput(in))
	}
	e.packedDoubles(3, pack.Times)
	return &Packet{Type: MsgInputPack, Payload: e.b}
}

// ParseInputPack 从 Packet 中解析 InputPack。
// 输入与时间戳数量不一致、时间戳非递增或数量超限时返回 ErrMalformedPack。
func ParseInputPack(pkt *Packet) (*InputPack, error) {
	if err := checkType(pkt, MsgInputPack); err != nil {
		return nil, err
	}
	pack := &InputPack{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			pack.Entity = int32(d.sint())
		case 2:
			b := d.bytes()
			if d.err != nil {
				break
			}
			in, err := decodeInput(b)
			if err != nil {
				return nil, err
			}
			pack.Inputs = append(pack.Inputs, in)
		case 3:
			pack.Times = append(pack.Times, d.packedDoubles()...)
		default:
			d.skip()
		}
		if len(pack.Inputs) > MaxPackInputs || len(pack.Times) > MaxPackInputs {
			return nil, fmt.Errorf("%w: 输入数量超过 %d", ErrMalformedPack, MaxPackInputs)
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	for _, tm := range pack.Times {
		if math.IsNaN(tm) || math.IsInf(tm, 0) {
			return nil, fmt.Errorf("%w: 非法时间戳", ErrMalformedPack)
		}
	}
	if err := pack.ToTickerPack().Validate(); err != nil {
		return nil, err
	}
	return pack, nil
}

// NewPingPacket 构造心跳消息包
func NewPingPacket(clientTime float64) *Packet {
	e := &encoder{}
	e.double(1, clientTime)
	return &Packet{Type: MsgPing, Payload: e.b}
}

// ParsePing 从 Packet 中解析 Ping
func ParsePing(pkt *Packet) (*Ping, error) {
	if err := checkType(pkt, MsgPing); err != nil {
		return nil, err
	}
	ping := &Ping{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			ping.ClientTime = d.double()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return ping, nil
}

// ========== 服务器消息 ==========

// NewJoinResponsePacket 构造加入响应消息包
func NewJoinResponsePacket(resp JoinResponse) *Packet {
	e := &encoder{}
	e.bool(1, resp.Success)
	e.sint(2, int64(resp.PlayerID))
	e.string(3, resp.ErrorMessage)
	e.string(4, resp.SessionToken)
	e.double(5, resp.ServerTime)
	e.sint(6, resp.MapSeed)
	e.sint(7, int64(resp.TPS))
	e.float(8, resp.Extrapolation)
	return &Packet{Type: MsgJoinResponse, Payload: e.b}
}

// ParseJoinResponse 从 Packet 中解析 JoinResponse
func ParseJoinResponse(pkt *Packet) (*JoinResponse, error) {
	if err := checkType(pkt, MsgJoinResponse); err != nil {
		return nil, err
	}
	resp := &JoinResponse{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			resp.Success = d.bool()
		case 2:
			resp.PlayerID = int32(d.sint())
		case 3:
			resp.ErrorMessage = d.string()
		case 4:
			resp.SessionToken = d.string()
		case 5:
			resp.ServerTime = d.double()
		case 6:
			resp.MapSeed = d.sint()
		case 7:
			resp.TPS = int32(d.sint())
		case 8:
			resp.Extrapolation = d.float()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return resp, nil
}

func (c Codec) encodeState(s State) []byte {
	e := &encoder{}
	e.sint(1, int64(s.Entity))
	e.bytes(2, c.EncodeState(s.State))
	e.message(3, encodeInput(s.Input))
	e.double(4, s.Time)
	e.float(5, s.ServerExtrapolation)
	return e.b
}

func (c Codec) decodeState(b []byte) (State, error) {
	var s State
	d := newDecoder(b)
	for d.next() {
		switch d.num {
		case 1:
			s.Entity = int32(d.sint())
		case 2:
			raw := d.bytes()
			if d.err != nil {
				break
			}
			st, err := c.DecodeState(raw)
			if err != nil {
				return s, err
			}
			s.State = st
		case 3:
			raw := d.bytes()
			if d.err != nil {
				break
			}
			in, err := decodeInput(raw)
			if err != nil {
				return s, err
			}
			s.Input = in
		case 4:
			s.Time = d.double()
		case 5:
			s.ServerExtrapolation = d.float()
		default:
			d.skip()
		}
	}
	return s, d.err
}

// NewStateBatchPacket 构造状态批量消息包
func (c Codec) NewStateBatchPacket(batch StateBatch) *Packet {
	e := &encoder{}
	e.double(1, batch.ServerTime)
	for _, s := range batch.States {
		e.message(2, c.encodeState(s))
	}
	return &Packet{Type: MsgStateBatch, Payload: e.b}
}

// ParseStateBatch 从 Packet 中解析 StateBatch
func (c Codec) ParseStateBatch(pkt *Packet) (*StateBatch, error) {
	if err := checkType(pkt, MsgStateBatch); err != nil {
		return nil, err
	}
	batch := &StateBatch{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			batch.ServerTime = d.double()
		case 2:
			raw := d.bytes()
			if d.err != nil {
				break
			}
			s, err := c.decodeState(raw)
			if err != nil {
				return nil, err
			}
			batch.States = append(batch.States, s)
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return batch, nil
}

// NewPlayerJoinPacket 构造玩家加入事件
func NewPlayerJoinPacket(ev PlayerJoin) *Packet {
	e := &encoder{}
	e.sint(1, int64(ev.PlayerID))
	e.string(2, ev.Name)
	e.sint(3, int64(ev.Character))
	e.bool(4, ev.Bot)
	e.double(5, ev.Time)
	return &Packet{Type: MsgPlayerJoin, Payload: e.b}
}

// ParsePlayerJoin 从 Packet 中解析 PlayerJoin
func ParsePlayerJoin(pkt *Packet) (*PlayerJoin, error) {
	if err := checkType(pkt, MsgPlayerJoin); err != nil {
		return nil, err
	}
	ev := &PlayerJoin{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			ev.PlayerID = int32(d.sint())
		case 2:
			ev.Name = d.string()
		case 3:
			ev.Character = int32(d.sint())
		case 4:
			ev.Bot = d.bool()
		case 5:
			ev.Time = d.double()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return ev, nil
}

// NewPlayerLeavePacket 构造玩家离开事件
func NewPlayerLeavePacket(ev PlayerLeave) *Packet {
	e := &encoder{}
	e.sint(1, int64(ev.PlayerID))
	e.double(2, ev.Time)
	return &Packet{Type: MsgPlayerLeave, Payload: e.b}
}

// ParsePlayerLeave 从 Packet 中解析 PlayerLeave
func ParsePlayerLeave(pkt *Packet) (*PlayerLeave, error) {
	if err := checkType(pkt, MsgPlayerLeave); err != nil {
		return nil, err
	}
	ev := &PlayerLeave{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			ev.PlayerID = int32(d.sint())
		case 2:
			ev.Time = d.double()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return ev, nil
}

// NewPongPacket 构造心跳响应消息包
func NewPongPacket(clientTime, serverTime float64) *Packet {
	e := &encoder{}
	e.double(1, clientTime)
	e.double(2, serverTime)
	return &Packet{Type: MsgPong, Payload: e.b}
}

// ParsePong 从 Packet 中解析 Pong
func ParsePong(pkt *Packet) (*Pong, error) {
	if err := checkType(pkt, MsgPong); err != nil {
		return nil, err
	}
	pong := &Pong{}
	d := newDecoder(pkt.Payload)
	for d.next() {
		switch d.num {
		case 1:
			pong.ClientTime = d.double()
		case 2:
			pong.ServerTime = d.double()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return pong, nil
}
