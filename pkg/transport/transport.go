// Package transport 面向消息的网络传输：每种协议一个实现，按名称选择
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// MaxPacketSize 单条消息的最大字节数
const MaxPacketSize = 4096

var (
	ErrPacketTooLarge = errors.New("消息过大")
	ErrUnsupported    = errors.New("不支持的协议")
)

// Conn 面向消息的连接，WritePacket 可被多个 goroutine 并发调用
type Conn interface {
	ReadPacket() ([]byte, error)
	WritePacket(data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Listener 接受连接
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// Transport 一种传输协议。端口由 Port/SetPort 管理，
// 以 0 端口监听时 Listen 会把实际分配的端口写回。
type Transport interface {
	Name() string
	Port() int
	SetPort(port int)
	Listen(host string) (Listener, error)
	Dial(ctx context.Context, host string) (Conn, error)
}

// New 按协议名创建传输：tcp、kcp 或 ws
func New(proto string, port int) (Transport, error) {
	switch proto {
	case "", "tcp":
		return &TCP{port: port}, nil
	case "kcp":
		return &KCP{port: port}, nil
	case "ws":
		return &WebSocket{port: port, Path: DefaultWebSocketPath}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, proto)
	}
}

// SplitAddr 把 host:port 拆开
func SplitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("端口无效: %w", err)
	}
	return host, port, nil
}

func joinAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func portOf(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.Port
	case *net.UDPAddr:
		return a.Port
	}
	return 0
}
