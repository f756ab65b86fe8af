package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Default configuration values (production).
const (
	DefaultRelayURL = "wss://rtc.carelink.health/ws"
	DefaultAPIBase  = "https://api.carelink.health"
	DefaultListen   = ":8080"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
)

// Config holds everything both binaries read at startup.
type Config struct {
	// RelayURL is the signaling relay websocket endpoint (client side).
	RelayURL string

	// APIBaseURL is the booking API the relay authorizes against and the
	// CLI lists appointments from.
	APIBaseURL string

	// Token is the bearer credential for the booking API: a service
	// token on the relay, the user's session token on the CLI.
	Token string

	// ListenAddr is the relay's listen address (server side).
	ListenAddr string

	// SeedFile optionally points at a JSON appointment fixture; when set
	// the relay authorizes against it instead of the booking API.
	SeedFile string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag overrides into Load.
type Options struct {
	RelayURL   string
	APIBaseURL string
	Token      string
	ListenAddr string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables (a .env file is honored if present)
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{
		RelayURL:   pick(opts.RelayURL, "CARELINK_RELAY_URL", DefaultRelayURL),
		APIBaseURL: pick(opts.APIBaseURL, "CARELINK_API_URL", DefaultAPIBase),
		Token:      pick(opts.Token, "CARELINK_TOKEN", ""),
		ListenAddr: pick(opts.ListenAddr, "LISTEN_ADDR", DefaultListen),
		SeedFile:   os.Getenv("APPOINTMENTS_SEED"),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
	}

	return cfg, nil
}

func pick(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
