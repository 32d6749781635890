package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"netarena/pkg/protocol"
	"netarena/pkg/transport"
)

var (
	ErrJoinRejected  = errors.New("服务器拒绝加入")
	ErrJoinTimeout   = errors.New("等待加入响应超时")
	ErrNotConnected  = errors.New("未连接")
	ErrSendQueueFull = errors.New("发送队列满")
)

// NetworkClient 网络客户端
type NetworkClient struct {
	conn       transport.Conn
	serverAddr string
	proto      string
	name       string
	codec      protocol.Codec

	clock *ClockSync
	epoch time.Time

	// 玩家信息
	playerID     atomic.Int32
	joinResp     *protocol.JoinResponse
	sessionToken string

	// 网络
	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// 消息队列
	stateChan       chan *protocol.StateBatch
	joinRespChan    chan *protocol.JoinResponse
	playerJoinChan  chan *protocol.PlayerJoin
	playerLeaveChan chan *protocol.PlayerLeave

	// 发送队列
	sendChan chan []byte

	// 错误
	errChan chan error
}

// NewNetworkClient 创建网络客户端
func NewNetworkClient(serverAddr, proto, name string, codec protocol.Codec) *NetworkClient {
	ctx, cancel := context.WithCancel(context.Background())

	nc := &NetworkClient{
		serverAddr:      serverAddr,
		proto:           proto,
		name:            name,
		codec:           codec,
		clock:           NewClockSync(ClockSyncWindow),
		epoch:           time.Now(),
		ctx:             ctx,
		cancel:          cancel,
		stateChan:       make(chan *protocol.StateBatch, stateQueueSize),
		joinRespChan:    make(chan *protocol.JoinResponse, 1),
		playerJoinChan:  make(chan *protocol.PlayerJoin, eventQueueSize),
		playerLeaveChan: make(chan *protocol.PlayerLeave, eventQueueSize),
		sendChan:        make(chan []byte, sendQueueSize),
		errChan:         make(chan error, 1),
	}
	nc.playerID.Store(-1)
	return nc
}

// SetSessionToken 设置重连使用的会话令牌，须在 Connect 之前调用
func (nc *NetworkClient) SetSessionToken(token string) {
	nc.sessionToken = token
}

// SessionToken 服务器最近一次签发的会话令牌
func (nc *NetworkClient) SessionToken() string {
	return nc.sessionToken
}

// Connect 连接到服务器并完成加入
func (nc *NetworkClient) Connect(ctx context.Context) error {
	log.Printf("连接到服务器: %s (%s)", nc.serverAddr, nc.proto)

	host, port, err := transport.SplitAddr(nc.serverAddr)
	if err != nil {
		return fmt.Errorf("服务器地址无效: %w", err)
	}
	tr, err := transport.New(nc.proto, port)
	if err != nil {
		return err
	}
	conn, err := tr.Dial(ctx, host)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	nc.conn = conn
	nc.connected.Store(true)

	log.Printf("已连接到服务器: %s", conn.RemoteAddr())

	// 启动接收循环
	nc.wg.Add(1)
	go nc.receiveLoop()

	// 启动发送循环
	nc.wg.Add(1)
	go nc.sendLoop()

	// 发送加入请求
	sent := nc.LocalTime()
	req := protocol.JoinRequest{PlayerName: nc.name, SessionToken: nc.sessionToken}
	if err := nc.send(protocol.NewJoinRequestPacket(req)); err != nil {
		nc.Close()
		return fmt.Errorf("发送加入请求失败: %w", err)
	}

	resp, err := nc.waitJoinResponse(ctx)
	if err != nil {
		nc.Close()
		return err
	}
	if !resp.Success {
		nc.Close()
		return fmt.Errorf("%w: %s", ErrJoinRejected, resp.ErrorMessage)
	}
	nc.clock.AddSample(sent, resp.ServerTime, nc.LocalTime())
	nc.joinResp = resp
	nc.sessionToken = resp.SessionToken
	nc.playerID.Store(resp.PlayerID)
	log.Printf("玩家 ID: %d, 地图种子: %d, 服务器 TPS: %d", resp.PlayerID, resp.MapSeed, resp.TPS)

	nc.wg.Add(1)
	go nc.pingLoop()
	return nil
}

// waitJoinResponse 等待加入响应；服务器拒绝后会立即断开，已收到的响应优先于断线错误
func (nc *NetworkClient) waitJoinResponse(ctx context.Context) (*protocol.JoinResponse, error) {
	timer := time.NewTimer(JoinTimeout)
	defer timer.Stop()

	select {
	case resp := <-nc.joinRespChan:
		return resp, nil
	case err := <-nc.errChan:
		select {
		case resp := <-nc.joinRespChan:
			return resp, nil
		default:
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrJoinTimeout
	}
}

// Close 关闭连接
func (nc *NetworkClient) Close() {
	nc.closeOnce.Do(func() {
		nc.connected.Store(false)
		nc.cancel()

		// 关闭网络连接
		if nc.conn != nil {
			nc.conn.Close()
		}

		// 等待所有 goroutine 结束
		nc.wg.Wait()

		log.Printf("网络客户端已关闭")
	})
}

// Done 连接关闭后返回的通道
func (nc *NetworkClient) Done() <-chan struct{} {
	return nc.ctx.Done()
}

// JoinResponse 加入成功时服务器的响应
func (nc *NetworkClient) JoinResponse() *protocol.JoinResponse {
	return nc.joinResp
}

// PlayerID 获取玩家 ID，未加入时为 -1
func (nc *NetworkClient) PlayerID() int32 {
	return nc.playerID.Load()
}

// IsConnected 检查是否已连接
func (nc *NetworkClient) IsConnected() bool {
	return nc.connected.Load()
}

// Codec 状态压缩参数
func (nc *NetworkClient) Codec() protocol.Codec {
	return nc.codec
}

// LocalTime 客户端单调时间（秒）
func (nc *NetworkClient) LocalTime() float64 {
	return time.Since(nc.epoch).Seconds()
}

// ServerTime 估计的当前服务器时间
func (nc *NetworkClient) ServerTime() float64 {
	return nc.clock.ServerTime(nc.LocalTime())
}

// RTT 往返时间估计（秒）
func (nc *NetworkClient) RTT() float64 {
	return nc.clock.RTT()
}

// ========== 消息接收 ==========

// receiveLoop 接收循环
func (nc *NetworkClient) receiveLoop() {
	defer nc.wg.Done()

	for {
		data, err := nc.conn.ReadPacket()
		if err != nil {
			if nc.ctx.Err() == nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					log.Printf("读取数据失败: %v", err)
				}
				nc.reportError(fmt.Errorf("连接断开: %w", err))
				go nc.Close()
			}
			return
		}

		// 处理消息
		if err := nc.handleMessage(data); err != nil {
			log.Printf("处理消息失败: %v", err)
		}
	}
}

func (nc *NetworkClient) reportError(err error) {
	select {
	case nc.errChan <- err:
	default:
	}
}

// handleMessage 处理接收到的消息
func (nc *NetworkClient) handleMessage(data []byte) error {
	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}

	switch pkt.Type {
	case protocol.MsgStateBatch:
		batch, err := nc.codec.ParseStateBatch(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.stateChan <- batch:
		default:
			// 队列满，丢弃
		}

	case protocol.MsgJoinResponse:
		resp, err := protocol.ParseJoinResponse(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.joinRespChan <- resp:
		default:
		}

	case protocol.MsgPlayerJoin:
		ev, err := protocol.ParsePlayerJoin(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.playerJoinChan <- ev:
		default:
			log.Printf("玩家加入事件队列满，丢弃玩家 %d", ev.PlayerID)
		}

	case protocol.MsgPlayerLeave:
		ev, err := protocol.ParsePlayerLeave(pkt)
		if err != nil {
			return err
		}
		select {
		case nc.playerLeaveChan <- ev:
		default:
			log.Printf("玩家离开事件队列满，丢弃玩家 %d", ev.PlayerID)
		}

	case protocol.MsgPing:
		ping, err := protocol.ParsePing(pkt)
		if err != nil {
			return err
		}
		// 服务器用自己的时间测 RTT，原样返回
		return nc.send(protocol.NewPongPacket(ping.ClientTime, nc.LocalTime()))

	case protocol.MsgPong:
		pong, err := protocol.ParsePong(pkt)
		if err != nil {
			return err
		}
		nc.clock.AddSample(pong.ClientTime, pong.ServerTime, nc.LocalTime())

	default:
		return fmt.Errorf("未知消息类型: %s", pkt.Type)
	}

	return nil
}

// ========== 消息发送 ==========

// sendLoop 发送循环
func (nc *NetworkClient) sendLoop() {
	defer nc.wg.Done()

	for {
		select {
		case <-nc.ctx.Done():
			return

		case data := <-nc.sendChan:
			if err := nc.conn.WritePacket(data); err != nil {
				if nc.ctx.Err() == nil {
					log.Printf("发送数据失败: %v", err)
					go nc.Close()
				}
				return
			}
		}
	}
}

func (nc *NetworkClient) pingLoop() {
	defer nc.wg.Done()

	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-nc.ctx.Done():
			return
		case <-ticker.C:
			if err := nc.send(protocol.NewPingPacket(nc.LocalTime())); err != nil {
				log.Printf("发送心跳失败: %v", err)
			}
		}
	}
}

// send 序列化并放入发送队列
func (nc *NetworkClient) send(pkt *protocol.Packet) error {
	if !nc.connected.Load() {
		return ErrNotConnected
	}
	select {
	case nc.sendChan <- protocol.MarshalPacket(pkt):
		return nil
	default:
		return ErrSendQueueFull
	}
}

// ========== 输入 ==========

// SendInputPack 发送输入历史
func (nc *NetworkClient) SendInputPack(pack protocol.InputPack) error {
	return nc.send(protocol.NewInputPackPacket(pack))
}

// ========== 状态接收 ==========

// ReceiveStateBatch 接收状态批次（非阻塞）
func (nc *NetworkClient) ReceiveStateBatch() *protocol.StateBatch {
	select {
	case batch := <-nc.stateChan:
		return batch
	default:
		return nil
	}
}

// ReceivePlayerJoin 接收玩家加入（非阻塞）
func (nc *NetworkClient) ReceivePlayerJoin() *protocol.PlayerJoin {
	select {
	case ev := <-nc.playerJoinChan:
		return ev
	default:
		return nil
	}
}

// ReceivePlayerLeave 接收玩家离开（非阻塞）
func (nc *NetworkClient) ReceivePlayerLeave() *protocol.PlayerLeave {
	select {
	case ev := <-nc.playerLeaveChan:
		return ev
	default:
		return nil
	}
}
