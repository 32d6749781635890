package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"netarena/internal/config"
	"netarena/pkg/protocol"
	"netarena/pkg/transport"
)

// GameServer 游戏服务器：接受连接并把消息交给房间
type GameServer struct {
	cfg  *config.Config
	room *Room

	registry  *SessionRegistry
	tokens    *TokenIssuer
	observers Observers[PlayerEvent]

	// 网络
	transport transport.Transport
	listener  transport.Listener
	host      string

	// 控制
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewGameServer 按配置创建服务器，不会开始监听
func NewGameServer(cfg *config.Config) (*GameServer, error) {
	host, port, err := transport.SplitAddr(cfg.Server.Addr)
	if err != nil {
		return nil, fmt.Errorf("监听地址无效: %w", err)
	}
	tr, err := transport.New(cfg.Server.Proto, port)
	if err != nil {
		return nil, err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	seed := cfg.Server.MapSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &GameServer{
		cfg:       cfg,
		registry:  NewSessionRegistry(),
		tokens:    NewTokenIssuer(cfg.Server.JWTSecret, cfg.Server.SessionTTL),
		transport: tr,
		host:      host,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.room = NewRoom(ctx, RoomOptions{
		TPS:            cfg.Server.TPS,
		MaxPlayers:     cfg.Server.MaxPlayers,
		MapSeed:        seed,
		Extrapolation:  cfg.Server.Extrapolation,
		ReconnectGrace: cfg.Server.Grace.Seconds(),
		Ticker:         cfg.Ticker,
		Codec:          codec,
		Bots:           cfg.Bots.Count,
		BotAI:          cfg.Bots.AI(),
		BotSeed:        cfg.Bots.Seed,
	}, s.registry, s.tokens, &s.observers)
	return s, nil
}

// Start 开始监听并启动房间循环，立即返回
func (s *GameServer) Start() error {
	listener, err := s.transport.Listen(s.host)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	s.listener = listener

	log.Printf("服务器监听中: %s (%s)", listener.Addr(), s.transport.Name())

	s.wg.Add(1)
	go s.room.Run(&s.wg)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr 实际监听的 host:port
func (s *GameServer) Addr() string {
	return net.JoinHostPort(s.host, fmt.Sprint(s.transport.Port()))
}

// Transport 服务器使用的传输协议
func (s *GameServer) Transport() transport.Transport {
	return s.transport
}

// Observers 玩家生命周期事件订阅
func (s *GameServer) Observers() *Observers[PlayerEvent] {
	return &s.observers
}

func (s *GameServer) Registry() *SessionRegistry {
	return s.registry
}

func (s *GameServer) Room() *Room {
	return s.room
}

// Now 服务器时间（秒）
func (s *GameServer) Now() float64 {
	return s.room.Now()
}

// Shutdown 优雅关闭服务器
func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		log.Println("正在关闭服务器...")

		s.cancel()
		s.room.Shutdown()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()

		log.Println("服务器已关闭")
	})
}

// acceptLoop 接受客户端连接
func (s *GameServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				log.Println("停止接受新连接")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("接受连接失败: %v", err)
			continue
		}

		log.Printf("新连接来自: %s", conn.RemoteAddr())

		connection := NewConnection(conn, s)
		s.wg.Add(1)
		go connection.Handle(s.ctx, &s.wg)
	}
}

func (s *GameServer) newInputLimiter() *rate.Limiter {
	limit := rate.Inf
	if s.cfg.Server.InputRate > 0 {
		limit = rate.Limit(s.cfg.Server.InputRate)
	}
	return rate.NewLimiter(limit, max(1, s.cfg.Server.InputBurst))
}

func (s *GameServer) handleJoinRequest(conn *Connection, req *protocol.JoinRequest) error {
	return s.room.Join(conn, req)
}

func (s *GameServer) handleInputPack(playerID int32, conn *Connection, pack *protocol.InputPack) {
	s.room.EnqueueInput(playerID, conn, pack)
}

func (s *GameServer) handlePing(conn *Connection, ping *protocol.Ping) {
	_ = conn.Send(protocol.MarshalPacket(protocol.NewPongPacket(ping.ClientTime, s.Now())))
}

func (s *GameServer) removePlayer(playerID int32, conn *Connection) {
	s.room.Leave(playerID, conn)
}
