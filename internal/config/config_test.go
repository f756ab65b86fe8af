package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Priority(t *testing.T) {
	t.Setenv("CARELINK_RELAY_URL", "wss://env.example/ws")
	t.Setenv("CARELINK_TOKEN", "env-token")

	cfg, err := Load(Options{RelayURL: "wss://flag.example/ws"})
	require.NoError(t, err)

	assert.Equal(t, "wss://flag.example/ws", cfg.RelayURL, "flag beats env")
	assert.Equal(t, "env-token", cfg.Token, "env beats default")
	assert.Equal(t, DefaultAPIBase, cfg.APIBaseURL, "default fills the rest")
	assert.Equal(t, DefaultListen, cfg.ListenAddr)
}

func TestConfig_ICEServers(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultSTUN}, cfg.GetSTUNServers())
	assert.Nil(t, cfg.GetTURNServers(), "no TURN unless configured")

	cfg.TURNServer = "turn:turn.carelink.health"
	cfg.TURNUser = "u"
	cfg.TURNPass = "p"

	servers := cfg.GetTURNServers()
	require.Len(t, servers, 2)
	assert.Contains(t, servers[0], "transport=udp")
	assert.Contains(t, servers[1], "transport=tcp")

	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}
