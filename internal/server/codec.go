package server

import (
	"errors"
	"fmt"

	"netarena/pkg/protocol"
)

var ErrUnknownMessage = errors.New("未知的客户端消息")

// DecodePacket 解析客户端发来的数据包。
// 格式错误的输入包在这里被拒绝，不会进入房间。
func DecodePacket(data []byte) (*ClientEvent, error) {
	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		return nil, err
	}

	switch pkt.Type {
	case protocol.MsgJoinRequest:
		req, err := protocol.ParseJoinRequest(pkt)
		if err != nil {
			return nil, err
		}
		return &ClientEvent{Kind: EventJoin, Join: req}, nil

	case protocol.MsgInputPack:
		pack, err := protocol.ParseInputPack(pkt)
		if err != nil {
			return nil, err
		}
		return &ClientEvent{Kind: EventInput, Input: pack}, nil

	case protocol.MsgPing:
		ping, err := protocol.ParsePing(pkt)
		if err != nil {
			return nil, err
		}
		return &ClientEvent{Kind: EventPing, Ping: ping}, nil

	case protocol.MsgPong:
		pong, err := protocol.ParsePong(pkt)
		if err != nil {
			return nil, err
		}
		return &ClientEvent{Kind: EventPong, Pong: pong}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, pkt.Type)
}
