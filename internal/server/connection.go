package server

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

	"golang.org/x/time/rate"

	"netarena/pkg/protocol"
	"netarena/pkg/transport"
)

const (
	readTimeout  = 5 * time.Second // 读取超时
	writeTimeout = 1 * time.Second // 写入超时
)

var (
	ErrSendQueueFull = errors.New("发送队列满")
	ErrConnClosed    = errors.New("连接已关闭")
	ErrAlreadyJoined = errors.New("玩家已加入")
)

// Connection 表示一个客户端连接
type Connection struct {
	conn     transport.Conn
	server   *GameServer
	playerID int32
	limiter  *rate.Limiter

	// 发送队列
	sendChan chan []byte
	closeCh  chan struct{}
	closed   bool
	closeMu  sync.Mutex

	lastRecvTime atomic.Value
	rtt          atomic.Int64 // 微秒
}

// NewConnection 创建新连接，连接到服务器上
func NewConnection(conn transport.Conn, server *GameServer) *Connection {
	c := &Connection{
		conn:     conn,
		server:   server,
		playerID: -1,                     // -1 表示未分配
		limiter:  server.newInputLimiter(), // 输入包洪泛保护
		sendChan: make(chan []byte, 256), // 发送队列缓冲区
		closeCh:  make(chan struct{}),
	}
	c.lastRecvTime.Store(time.Now())
	return c
}

// Handle 处理连接
func (c *Connection) Handle(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	wg.Add(1)
	go c.startHeartbeat(ctx, wg)

	// 启动发送循环
	wg.Add(1)
	go c.sendLoop(ctx, wg)

	// 启动接收循环
	wg.Add(1)
	go c.receiveLoop(ctx, wg)

	// 等待上下文取消或连接关闭
	select {
	case <-ctx.Done():
	case <-c.closeCh:
	}

	c.Close()
}

// Close 关闭连接
func (c *Connection) Close() {
	c.closeWithNotify(true)
}

// CloseWithoutNotify 关闭连接但不触发移除玩家逻辑
func (c *Connection) CloseWithoutNotify() {
	c.closeWithNotify(false)
}

func (c *Connection) closeWithNotify(notify bool) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}

	c.closed = true
	close(c.closeCh)

	// 关闭网络连接
	if c.conn != nil {
		c.conn.Close()
	}

	// 关闭发送通道
	close(c.sendChan)
	c.closeMu.Unlock()

	// 在锁外通知房间，房间 goroutine 可能正在调用 Send
	if notify {
		if playerID := c.getPlayerID(); playerID >= 0 {
			c.server.removePlayer(playerID, c)
		}
	}

	log.Printf("玩家 %d: 连接已关闭", c.getPlayerID())
}

// Send 发送数据（异步）
func (c *Connection) Send(data []byte) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.sendChan <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// sendLoop 发送循环
func (c *Connection) sendLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-c.sendChan:
			if !ok {
				// 通道已关闭
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WritePacket(data); err != nil {
				log.Printf("玩家 %d: 发送数据失败: %v", c.getPlayerID(), err)
				c.Close()
				return
			}
		}
	}
}

// receiveLoop 接收循环
func (c *Connection) receiveLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		data, err := c.conn.ReadPacket()
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				log.Printf("玩家 %d: 读取超时", c.getPlayerID())
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				log.Printf("玩家 %d: 读取数据失败: %v", c.getPlayerID(), err)
			}
			c.Close()
			return
		}

		c.onMessageReceived()
		if err := c.handleMessage(data); err != nil {
			log.Printf("玩家 %d: 处理消息失败: %v", c.getPlayerID(), err)
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Connection) handleMessage(data []byte) error {
	event, err := DecodePacket(data)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformedPack) {
			inputPacksDropped.WithLabelValues("malformed").Inc()
		}
		return fmt.Errorf("反序列化失败: %w", err)
	}

	switch event.Kind {
	case EventJoin:
		if c.getPlayerID() >= 0 {
			return ErrAlreadyJoined
		}
		if err := c.server.handleJoinRequest(c, event.Join); err != nil {
			return fmt.Errorf("处理加入请求失败: %w", err)
		}
		log.Printf("玩家 %d: 加入成功", c.getPlayerID())

	case EventInput:
		if c.getPlayerID() < 0 {
			return nil
		}
		if !c.limiter.Allow() {
			inputPacksDropped.WithLabelValues("rate").Inc()
			return nil
		}
		c.server.handleInputPack(c.getPlayerID(), c, event.Input)

	case EventPing:
		c.server.handlePing(c, event.Ping)

	case EventPong:
		c.handlePong(event.Pong)

	default:
		return ErrUnknownMessage
	}

	return nil
}

// String 返回连接的字符串表示
func (c *Connection) String() string {
	if c.getPlayerID() >= 0 {
		return fmt.Sprintf("Connection{%d, %s}", c.getPlayerID(), c.conn.RemoteAddr())
	}
	return fmt.Sprintf("Connection{%s}", c.conn.RemoteAddr())
}

func (c *Connection) getPlayerID() int32 {
	return atomic.LoadInt32(&c.playerID)
}

func (c *Connection) ID() int32 {
	return c.getPlayerID()
}

func (c *Connection) SetPlayerID(playerID int32) {
	atomic.StoreInt32(&c.playerID, playerID)
}

// RTT 最近一次心跳测得的往返时间
func (c *Connection) RTT() time.Duration {
	return time.Duration(c.rtt.Load()) * time.Microsecond
}

const (
	heartbeatInterval = 2 * time.Second
	heartbeatTimeout  = 15 * time.Second
)

func (c *Connection) startHeartbeat(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			lastRecv, _ := c.lastRecvTime.Load().(time.Time)
			if !lastRecv.IsZero() && time.Since(lastRecv) > heartbeatTimeout {
				log.Printf("玩家 %d: 心跳超时", c.getPlayerID())
				c.Close()
				return
			}
			c.sendPing()
		}
	}
}

// sendPing 携带服务器时间，客户端原样放在 Pong.ClientTime 中返回
func (c *Connection) sendPing() {
	_ = c.Send(protocol.MarshalPacket(protocol.NewPingPacket(c.server.Now())))
}

func (c *Connection) handlePong(pong *protocol.Pong) {
	if pong == nil || pong.ClientTime <= 0 {
		return
	}
	rtt := c.server.Now() - pong.ClientTime
	if rtt < 0 {
		return
	}
	c.rtt.Store(int64(rtt * 1e6))
	rttSeconds.Observe(rtt)
}

func (c *Connection) onMessageReceived() {
	c.lastRecvTime.Store(time.Now())
}
