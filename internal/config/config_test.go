package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netarena/pkg/ai"
	"netarena/pkg/protocol"
	"netarena/pkg/ticker"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ticker.DefaultConfig(), cfg.Ticker)

	codec, err := cfg.Codec()
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultCodec(), codec)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
server:
  proto: kcp
  tps: 60
  session_ttl: 90s
ticker:
  max_tick_delta: 0.008
bots:
  count: 2
  difficulty: hard
`), cfg)
	require.NoError(t, err)

	assert.Equal(t, "kcp", cfg.Server.Proto)
	assert.Equal(t, 60, cfg.Server.TPS)
	assert.Equal(t, 90*time.Second, cfg.Server.SessionTTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 0.008, cfg.Ticker.MaxTickDelta)
	assert.Equal(t, ticker.DefaultConfig().HistoryLength, cfg.Ticker.HistoryLength)
	assert.Equal(t, ai.ConfigHard, cfg.Bots.AI())
	assert.Equal(t, time.Second/60, cfg.Server.TickInterval())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"tps":        "server: {tps: 0}",
		"players":    "server: {max_players: -1}",
		"difficulty": "bots: {difficulty: nightmare}",
		"bots":       "bots: {count: -3}",
		"bits":       "compress: {position_bits: 0}",
		"range":      "compress: {velocity_range: 0}",
		"send rate":  "client: {input_send_rate: 0}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Parse([]byte(doc), Default())
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  name: alice\n  smooth_time: 0.2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Client.Name)
	assert.Equal(t, 0.2, cfg.Client.SmoothTime)
	assert.Equal(t, 0.25, cfg.Client.InputPackAge)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map]"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Bots.Count)
	assert.Equal(t, 10*time.Second, cfg.Server.Grace)
	assert.Equal(t, 5*time.Minute, cfg.Server.SessionTTL)
	assert.InDelta(t, 1.0/60, cfg.Ticker.MaxTickDelta, 1e-6)

	// 朝向按角度编码，四元数精度不影响玩家状态大小
	codec, err := cfg.Codec()
	require.NoError(t, err)
	assert.Equal(t, uint(10), codec.Rotation.Bits)
	cfg.Compress.RotationBits = 16
	wide, err := cfg.Codec()
	require.NoError(t, err)
	assert.Equal(t, codec.StateBits(), wide.StateBits())
}
