package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netarena/internal/config"
	"netarena/pkg/core"
	"netarena/pkg/protocol"
	"netarena/pkg/transport"
)

// readUntil 读取消息直到遇到指定类型
func readUntil(t *testing.T, conn transport.Conn, typ protocol.MessageType) *protocol.Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		data, err := conn.ReadPacket()
		require.NoError(t, err)
		pkt, err := protocol.UnmarshalPacket(data)
		require.NoError(t, err)
		if pkt.Type == typ {
			return pkt
		}
	}
}

func TestGameServerEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.MapSeed = 11
	cfg.Server.JWTSecret = "test"
	cfg.Bots.Count = 1

	srv, err := NewGameServer(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Shutdown()

	var joined []PlayerEvent
	events := make(chan PlayerEvent, 4)
	srv.Observers().Add(func(ev PlayerEvent) { events <- ev })

	tr, err := transport.New("tcp", srv.Transport().Port())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := tr.Dial(ctx, "127.0.0.1")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WritePacket(protocol.MarshalPacket(protocol.NewJoinRequestPacket(protocol.JoinRequest{PlayerName: "e2e"}))))
	resp, err := protocol.ParseJoinResponse(readUntil(t, conn, protocol.MsgJoinResponse))
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, int32(1), resp.PlayerID)
	assert.Equal(t, int64(11), resp.MapSeed)
	assert.Equal(t, int32(cfg.Server.TPS), resp.TPS)

	select {
	case ev := <-events:
		joined = append(joined, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no join event")
	}
	assert.Equal(t, PlayerJoined, joined[0].Kind)
	assert.Equal(t, "e2e", joined[0].Name)

	pack := protocol.InputPack{Entity: 1, Inputs: []core.Input{{MoveY: 1}}, Times: []float64{resp.ServerTime}}
	require.NoError(t, conn.WritePacket(protocol.MarshalPacket(protocol.NewInputPackPacket(pack))))

	batch, err := protocol.DefaultCodec().ParseStateBatch(readUntil(t, conn, protocol.MsgStateBatch))
	require.NoError(t, err)
	require.Len(t, batch.States, 2)
	assert.Equal(t, int32(1), batch.States[0].Entity)

	require.NoError(t, conn.WritePacket(protocol.MarshalPacket(protocol.NewPingPacket(42))))
	pong, err := protocol.ParsePong(readUntil(t, conn, protocol.MsgPong))
	require.NoError(t, err)
	assert.Equal(t, 42.0, pong.ClientTime)
	assert.GreaterOrEqual(t, pong.ServerTime, resp.ServerTime)

	session, err := srv.Registry().ByPlayer(1)
	require.NoError(t, err)
	assert.Equal(t, "e2e", session.Name)
}

func TestNewGameServerRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "no-port"
	_, err := NewGameServer(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Server.Proto = "smoke-signals"
	_, err = NewGameServer(cfg)
	assert.ErrorIs(t, err, transport.ErrUnsupported)
}
