package server

// Session 房间看到的一个客户端连接
type Session interface {
	ID() int32
	Send(data []byte) error
	Close()
	// CloseWithoutNotify 关闭连接但不触发玩家离开（例如被重连顶替）
	CloseWithoutNotify()
	SetPlayerID(id int32)
}
