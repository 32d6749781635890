package client

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netarena/internal/config"
	"netarena/internal/server"
	"netarena/pkg/core"
	"netarena/pkg/protocol"
)

func startServer(t *testing.T, mutate func(cfg *config.Config)) (*server.GameServer, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.MapSeed = 21
	cfg.Server.JWTSecret = "client-test"
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := server.NewGameServer(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	return srv, fmt.Sprintf("127.0.0.1:%d", srv.Transport().Port())
}

func connect(t *testing.T, addr, name, token string) (*NetworkClient, error) {
	t.Helper()
	nc := NewNetworkClient(addr, "tcp", name, protocol.DefaultCodec())
	nc.SetSessionToken(token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return nc, nc.Connect(ctx)
}

func TestNetworkClientJoinsAndReceivesState(t *testing.T) {
	srv, addr := startServer(t, func(cfg *config.Config) { cfg.Bots.Count = 1 })

	nc, err := connect(t, addr, "alice", "")
	require.NoError(t, err)
	defer nc.Close()

	resp := nc.JoinResponse()
	require.NotNil(t, resp)
	assert.True(t, nc.IsConnected())
	assert.Equal(t, resp.PlayerID, nc.PlayerID())
	assert.Equal(t, int64(21), resp.MapSeed)
	assert.NotEmpty(t, nc.SessionToken())
	assert.InDelta(t, srv.Now(), nc.ServerTime(), 0.5)

	var bot *protocol.PlayerJoin
	require.Eventually(t, func() bool {
		bot = nc.ReceivePlayerJoin()
		return bot != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, bot.Bot)

	var batch *protocol.StateBatch
	require.Eventually(t, func() bool {
		batch = nc.ReceiveStateBatch()
		return batch != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, batch.States, 2)

	require.NoError(t, nc.SendInputPack(protocol.InputPack{
		Entity: nc.PlayerID(),
		Inputs: []core.Input{{MoveX: 1}},
		Times:  []float64{nc.ServerTime()},
	}))

	nc.Close()
	assert.False(t, nc.IsConnected())
	assert.ErrorIs(t, nc.SendInputPack(protocol.InputPack{}), ErrNotConnected)
}

func TestNetworkClientReconnectsWithToken(t *testing.T) {
	_, addr := startServer(t, nil)

	first, err := connect(t, addr, "bob", "")
	require.NoError(t, err)
	id := first.PlayerID()
	token := first.SessionToken()
	first.Close()

	second, err := connect(t, addr, "bob", token)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, id, second.PlayerID())
}

func TestNetworkClientRejectedWhenRoomFull(t *testing.T) {
	_, addr := startServer(t, func(cfg *config.Config) { cfg.Server.MaxPlayers = 1 })

	first, err := connect(t, addr, "one", "")
	require.NoError(t, err)
	defer first.Close()

	second, err := connect(t, addr, "two", "")
	require.ErrorIs(t, err, ErrJoinRejected)
	assert.False(t, second.IsConnected())
}
