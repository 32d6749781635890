package transport

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamConnFraming(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	client, server := NewStreamConn(a), NewStreamConn(b)

	go func() {
		_ = client.WritePacket([]byte("hello"))
		_ = client.WritePacket([]byte{1, 2, 3})
	}()

	first, err := server.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), first)

	second, err := server.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, second)
}

func TestStreamConnSkipsEmptyFrames(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	server := NewStreamConn(b)

	go func() {
		_, _ = a.Write([]byte{0, 0, 0, 0})
		_, _ = a.Write([]byte{0, 0, 0, 1, 42})
	}()

	data, err := server.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, data)
}

func TestStreamConnRejectsOversize(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	err := NewStreamConn(a).WritePacket(make([]byte, MaxPacketSize+1))
	assert.ErrorIs(t, err, ErrPacketTooLarge)

	go func() {
		var header [4]byte
		binary.BigEndian.PutUint32(header[:], MaxPacketSize+1)
		_, _ = a.Write(header[:])
	}()
	_, err = NewStreamConn(b).ReadPacket()
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestNewUnsupported(t *testing.T) {
	_, err := New("carrier-pigeon", 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	tr, err := New("", 1234)
	require.NoError(t, err)
	assert.Equal(t, "tcp", tr.Name())
	assert.Equal(t, 1234, tr.Port())
}

func TestSplitAddr(t *testing.T) {
	host, port, err := SplitAddr("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 8080, port)

	_, _, err = SplitAddr("localhost:http-ish")
	assert.Error(t, err)
}

func TestLoopback(t *testing.T) {
	for _, proto := range []string{"tcp", "ws", "kcp"} {
		t.Run(proto, func(t *testing.T) {
			tr, err := New(proto, 0)
			require.NoError(t, err)

			ln, err := tr.Listen("127.0.0.1")
			require.NoError(t, err)
			defer ln.Close()
			require.NotZero(t, tr.Port())

			accepted := make(chan Conn, 1)
			go func() {
				c, err := ln.Accept()
				if err == nil {
					accepted <- c
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client, err := tr.Dial(ctx, "127.0.0.1")
			require.NoError(t, err)
			defer client.Close()

			// kcp 在收到第一个包后才会 Accept
			require.NoError(t, client.WritePacket([]byte("ping")))

			var server Conn
			select {
			case server = <-accepted:
			case <-time.After(5 * time.Second):
				t.Fatal("accept timeout")
			}
			defer server.Close()

			require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
			data, err := server.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, []byte("ping"), data)

			require.NoError(t, server.WritePacket([]byte("pong")))
			require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
			data, err = client.ReadPacket()
			require.NoError(t, err)
			assert.Equal(t, []byte("pong"), data)
		})
	}
}

func TestWebSocketListenerClose(t *testing.T) {
	tr := &WebSocket{}
	ln, err := tr.Listen("127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, ln.Close())
	require.NoError(t, ln.Close())

	_, err = ln.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
}
