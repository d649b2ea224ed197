package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	c, err := LoadServer(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":4545" || c.Transport != TransportENet || c.MaxPlayers != 8 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.PollTimeout != time.Second {
		t.Fatalf("poll timeout = %s", c.PollTimeout)
	}
}

func TestLoadServerFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := strings.Join([]string{
		"NETSYNC_ADDR=:5000",
		"NETSYNC_TRANSPORT=ws",
		"NETSYNC_MAX_PLAYERS=4",
		"NETSYNC_POLL_TIMEOUT=10ms",
		"NETSYNC_LOG_CONSOLE=false",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"ADDR", "TRANSPORT", "MAX_PLAYERS", "POLL_TIMEOUT", "LOG_CONSOLE"} {
		k := envPrefix + k
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	c, err := LoadServer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr != ":5000" || c.Transport != TransportWS || c.MaxPlayers != 4 {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.PollTimeout != 10*time.Millisecond || c.Log.Console {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("NETSYNC_MAX_PLAYERS", "16")
	c, err := LoadServer(filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MaxPlayers != 16 {
		t.Fatalf("max players = %d", c.MaxPlayers)
	}
}

func TestLoadServerInvalid(t *testing.T) {
	cases := map[string]string{
		"NETSYNC_MAX_PLAYERS":  "0",
		"NETSYNC_TRANSPORT":    "carrier-pigeon",
		"NETSYNC_POLL_TIMEOUT": "soon",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := LoadServer(filepath.Join(t.TempDir(), "none.env")); err == nil {
				t.Fatalf("expected error for %s=%s", k, v)
			}
		})
	}
}

func TestServerValidateRange(t *testing.T) {
	c := Server{Addr: ":1", Transport: TransportENet, MaxPlayers: 257, PollTimeout: time.Second}
	if err := c.Validate(); err == nil {
		t.Fatalf("257 players accepted")
	}
	c.MaxPlayers = 256
	if err := c.Validate(); err != nil {
		t.Fatalf("256 players rejected: %v", err)
	}
}

func TestLoadBot(t *testing.T) {
	t.Setenv("NETSYNC_BOT_SPEED", "120.5")
	t.Setenv("NETSYNC_BOT_DURATION", "3s")
	c, err := LoadBot(filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Speed != 120.5 || c.Duration != 3*time.Second || c.FPS != 60 {
		t.Fatalf("unexpected bot config: %+v", c)
	}
	if c.Server != "127.0.0.1:4545" {
		t.Fatalf("server = %q", c.Server)
	}

	if c.MaxPlayers != 8 {
		t.Fatalf("bot max players = %d", c.MaxPlayers)
	}

	t.Setenv("NETSYNC_BOT_FPS", "0")
	if _, err := LoadBot(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatalf("expected error for zero fps")
	}
}

func TestLoadBotMaxPlayersMatchesServerVariable(t *testing.T) {
	t.Setenv("NETSYNC_MAX_PLAYERS", "16")
	c, err := LoadBot(filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MaxPlayers != 16 {
		t.Fatalf("bot max players = %d", c.MaxPlayers)
	}

	t.Setenv("NETSYNC_MAX_PLAYERS", "300")
	if _, err := LoadBot(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatalf("expected error for 300 players")
	}
}
