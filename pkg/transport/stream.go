package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
)

// streamConn 在字节流上用 4 字节大端长度前缀划分消息
type streamConn struct {
	net.Conn
	writeMu sync.Mutex
}

// NewStreamConn 包装字节流连接
func NewStreamConn(conn net.Conn) Conn {
	return &streamConn{Conn: conn}
}

func (c *streamConn) ReadPacket() ([]byte, error) {
	var header [4]byte
	for {
		if _, err := io.ReadFull(c.Conn, header[:]); err != nil {
			return nil, err
		}
		length := binary.BigEndian.Uint32(header[:])
		if length > MaxPacketSize {
			return nil, fmt.Errorf("%w (%d bytes)", ErrPacketTooLarge, length)
		}
		if length == 0 {
			continue
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(c.Conn, data); err != nil {
			return nil, err
		}
		return data, nil
	}
}

func (c *streamConn) WritePacket(data []byte) error {
	if len(data) > MaxPacketSize {
		return fmt.Errorf("%w (%d bytes)", ErrPacketTooLarge, len(data))
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.Conn.Write(buf)
	return err
}

// TCP 传输
type TCP struct {
	port int
}

func (t *TCP) Name() string     { return "tcp" }
func (t *TCP) Port() int        { return t.port }
func (t *TCP) SetPort(port int) { t.port = port }

func (t *TCP) Listen(host string) (Listener, error) {
	listener, err := net.Listen("tcp", joinAddr(host, t.port))
	if err != nil {
		return nil, err
	}
	t.port = portOf(listener.Addr())
	return &tcpListener{listener: listener}, nil
}

func (t *TCP) Dial(ctx context.Context, host string) (Conn, error) {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", joinAddr(host, t.port))
	if err != nil {
		return nil, err
	}
	setNoDelay(conn)
	return NewStreamConn(conn), nil
}

type tcpListener struct {
	listener net.Listener
}

func (l *tcpListener) Accept() (Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	setNoDelay(conn)
	return NewStreamConn(conn), nil
}

func (l *tcpListener) Close() error {
	return l.listener.Close()
}

func (l *tcpListener) Addr() net.Addr {
	return l.listener.Addr()
}

// setNoDelay 开启 TCP_NODELAY，禁用 Nagle 算法以减少延迟
func setNoDelay(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}

// KCP 基于 UDP 的可靠传输
type KCP struct {
	port int
}

func (t *KCP) Name() string     { return "kcp" }
func (t *KCP) Port() int        { return t.port }
func (t *KCP) SetPort(port int) { t.port = port }

func (t *KCP) Listen(host string) (Listener, error) {
	listener, err := kcp.ListenWithOptions(joinAddr(host, t.port), nil, 0, 0)
	if err != nil {
		return nil, err
	}
	t.port = portOf(listener.Addr())
	return &kcpListener{listener: listener}, nil
}

func (t *KCP) Dial(ctx context.Context, host string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := kcp.DialWithOptions(joinAddr(host, t.port), nil, 0, 0)
	if err != nil {
		return nil, err
	}
	tuneSession(session)
	return NewStreamConn(session), nil
}

// tuneSession 流模式 + 快速重传，长度前缀协议负责消息边界
func tuneSession(s *kcp.UDPSession) {
	s.SetStreamMode(true)
	s.SetNoDelay(1, 10, 2, 1)
	s.SetWindowSize(256, 256)
}

type kcpListener struct {
	listener *kcp.Listener
}

func (l *kcpListener) Accept() (Conn, error) {
	session, err := l.listener.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneSession(session)
	return NewStreamConn(session), nil
}

func (l *kcpListener) Close() error {
	return l.listener.Close()
}

func (l *kcpListener) Addr() net.Addr {
	return l.listener.Addr()
}
