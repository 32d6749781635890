package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWebSocketPath WebSocket 升级路径
const DefaultWebSocketPath = "/ws"

// WebSocket 传输，每条消息一个二进制帧
type WebSocket struct {
	port int
	Path string
}

func (t *WebSocket) Name() string     { return "ws" }
func (t *WebSocket) Port() int        { return t.port }
func (t *WebSocket) SetPort(port int) { t.port = port }

func (t *WebSocket) path() string {
	if t.Path == "" {
		return DefaultWebSocketPath
	}
	return t.Path
}

func (t *WebSocket) Listen(host string) (Listener, error) {
	ln, err := net.Listen("tcp", joinAddr(host, t.port))
	if err != nil {
		return nil, err
	}
	t.port = portOf(ln.Addr())

	l := &wsListener{
		ln:    ln,
		conns: make(chan Conn, 16),
		done:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle(t.path(), l)
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("ws: 服务退出: %v", err)
		}
	}()
	return l, nil
}

func (t *WebSocket) Dial(ctx context.Context, host string) (Conn, error) {
	url := fmt.Sprintf("ws://%s%s", joinAddr(host, t.port), t.path())
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsListener struct {
	ln        net.Listener
	srv       *http.Server
	conns     chan Conn
	done      chan struct{}
	closeOnce sync.Once
}

// ServeHTTP 升级连接并交给 Accept
func (l *wsListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: 升级失败 %s: %v", r.RemoteAddr, err)
		return
	}
	select {
	case l.conns <- newWSConn(conn):
	case <-l.done:
		conn.Close()
	}
}

func (l *wsListener) Accept() (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *wsListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

func (l *wsListener) Addr() net.Addr {
	return l.ln.Addr()
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(MaxPacketSize)
	return &wsConn{conn: conn}
}

// ReadPacket 读取下一个二进制帧，文本帧被忽略
func (c *wsConn) ReadPacket() ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if err == websocket.ErrReadLimit {
				return nil, fmt.Errorf("%w: %v", ErrPacketTooLarge, err)
			}
			return nil, err
		}
		if typ == websocket.BinaryMessage && len(data) > 0 {
			return data, nil
		}
	}
}

func (c *wsConn) WritePacket(data []byte) error {
	if len(data) > MaxPacketSize {
		return fmt.Errorf("%w (%d bytes)", ErrPacketTooLarge, len(data))
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
