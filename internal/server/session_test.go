package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netarena/pkg/core"
	"netarena/pkg/protocol"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, err := issuer.Generate(7, "session-7")
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int32(7), claims.PlayerID)
	assert.Equal(t, "session-7", claims.SessionID)
	assert.Equal(t, "player-7", claims.Subject)
}

func TestTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, err := issuer.Generate(1, "s")
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret", time.Minute).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := issuer.Generate(1, "s")
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenSecretFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	token, err := NewTokenIssuer("", 0).Generate(1, "s")
	require.NoError(t, err)

	_, err = NewTokenIssuer("from-env", 0).Verify(token)
	assert.NoError(t, err)
}

func TestSessionRegistry(t *testing.T) {
	reg := NewSessionRegistry()
	a := reg.Create(1, "alice")
	b := reg.Create(2, "bob")
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Connected)

	got, err := reg.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	require.NoError(t, reg.SetConnected(a.ID, false))
	got, err = reg.ByPlayer(1)
	require.NoError(t, err)
	assert.False(t, got.Connected)
	assert.False(t, got.DisconnectedAt.IsZero())

	// 同一玩家重新创建会话替换旧会话
	a2 := reg.Create(1, "alice")
	_, err = reg.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 2, reg.Len())

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, int32(1), list[0].PlayerID)
	assert.Equal(t, a2.ID, list[0].ID)

	reg.Remove(a2.ID)
	reg.Remove(a2.ID)
	_, err = reg.ByPlayer(1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, reg.SetConnected(a2.ID, true), ErrSessionNotFound)
	assert.Equal(t, 1, reg.Len())
}

func TestObserversOrderAndUnregister(t *testing.T) {
	var obs Observers[int]
	var got []string

	obs.Add(func(v int) { got = append(got, "first") })
	remove := obs.Add(func(v int) { got = append(got, "second") })
	obs.Add(func(v int) { got = append(got, "third") })

	obs.Notify(1)
	assert.Equal(t, []string{"first", "second", "third"}, got)

	remove()
	remove()
	got = nil
	obs.Notify(2)
	assert.Equal(t, []string{"first", "third"}, got)
	assert.Equal(t, 2, obs.Len())
}

func TestObserverMayRegisterDuringNotify(t *testing.T) {
	var obs Observers[int]
	calls := 0
	obs.Add(func(int) {
		calls++
		obs.Add(func(int) { calls += 10 })
	})

	obs.Notify(0)
	assert.Equal(t, 1, calls)
	obs.Notify(0)
	assert.Equal(t, 12, calls)
}

func TestDecodePacket(t *testing.T) {
	ev, err := DecodePacket(protocol.MarshalPacket(protocol.NewJoinRequestPacket(protocol.JoinRequest{PlayerName: "a"})))
	require.NoError(t, err)
	assert.Equal(t, EventJoin, ev.Kind)
	assert.Equal(t, "a", ev.Join.PlayerName)

	pack := protocol.InputPack{Entity: 1, Inputs: []core.Input{{MoveX: 1}}, Times: []float64{0.5}}
	ev, err = DecodePacket(protocol.MarshalPacket(protocol.NewInputPackPacket(pack)))
	require.NoError(t, err)
	assert.Equal(t, EventInput, ev.Kind)
	assert.Equal(t, pack, *ev.Input)

	ev, err = DecodePacket(protocol.MarshalPacket(protocol.NewPingPacket(1.5)))
	require.NoError(t, err)
	assert.Equal(t, 1.5, ev.Ping.ClientTime)

	ev, err = DecodePacket(protocol.MarshalPacket(protocol.NewPongPacket(1.5, 2)))
	require.NoError(t, err)
	assert.Equal(t, EventPong, ev.Kind)

	_, err = DecodePacket(protocol.MarshalPacket(protocol.NewPlayerLeavePacket(protocol.PlayerLeave{PlayerID: 1})))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	bad := protocol.InputPack{Inputs: []core.Input{{}, {}}, Times: []float64{1, 0}}
	_, err = DecodePacket(protocol.MarshalPacket(protocol.NewInputPackPacket(bad)))
	assert.ErrorIs(t, err, protocol.ErrMalformedPack)

	_, err = DecodePacket([]byte{0xff})
	assert.Error(t, err)
}
