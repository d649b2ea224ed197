package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"netsync/protocol"
)

const envPrefix = "NETSYNC_"

const (
	TransportENet = "enet"
	TransportWS   = "ws"
)

// Server 服务端配置
type Server struct {
	Addr        string
	Transport   string
	AdminAddr   string
	MaxPlayers  int
	PollTimeout time.Duration
	Log         Log
}

// Bot 无界面客户端配置
type Bot struct {
	Server    string
	Transport string
	// MaxPlayers 必须与服务端的槽位数一致
	MaxPlayers int
	Speed      float64
	Duration   time.Duration
	FPS        int
	Log        Log
}

type Log struct {
	File    string
	Level   string
	Console bool
}

// LoadServer 读取 .env（可选）与环境变量，填充默认值并校验
func LoadServer(files ...string) (Server, error) {
	if err := loadEnv(files...); err != nil {
		return Server{}, err
	}
	c := Server{
		Addr:        getString("ADDR", fmt.Sprintf(":%d", protocol.DefaultPort)),
		Transport:   getString("TRANSPORT", TransportENet),
		AdminAddr:   getString("ADMIN_ADDR", ":8080"),
		MaxPlayers:  protocol.MaxPlayers,
		PollTimeout: time.Second,
		Log: Log{
			File:    getString("LOG_FILE", "server.log"),
			Level:   getString("LOG_LEVEL", "debug"),
			Console: true,
		},
	}
	var err error
	if c.MaxPlayers, err = getInt("MAX_PLAYERS", c.MaxPlayers); err != nil {
		return Server{}, err
	}
	if c.PollTimeout, err = getDuration("POLL_TIMEOUT", c.PollTimeout); err != nil {
		return Server{}, err
	}
	if c.Log.Console, err = getBool("LOG_CONSOLE", c.Log.Console); err != nil {
		return Server{}, err
	}
	return c, c.Validate()
}

// Validate 校验服务端配置
func (c Server) Validate() error {
	if err := validMaxPlayers(c.MaxPlayers); err != nil {
		return err
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive, got %s", c.PollTimeout)
	}
	if err := validTransport(c.Transport); err != nil {
		return err
	}
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	return nil
}

// LoadBot 读取无界面客户端配置
func LoadBot(files ...string) (Bot, error) {
	if err := loadEnv(files...); err != nil {
		return Bot{}, err
	}
	c := Bot{
		Server:     getString("SERVER", fmt.Sprintf("127.0.0.1:%d", protocol.DefaultPort)),
		Transport:  getString("TRANSPORT", TransportENet),
		MaxPlayers: protocol.MaxPlayers,
		Speed:      200,
		FPS:        60,
		Log: Log{
			File:    getString("LOG_FILE", "syncbot.log"),
			Level:   getString("LOG_LEVEL", "info"),
			Console: true,
		},
	}
	var err error
	if c.MaxPlayers, err = getInt("MAX_PLAYERS", c.MaxPlayers); err != nil {
		return Bot{}, err
	}
	if c.Speed, err = getFloat("BOT_SPEED", c.Speed); err != nil {
		return Bot{}, err
	}
	if c.Duration, err = getDuration("BOT_DURATION", c.Duration); err != nil {
		return Bot{}, err
	}
	if c.FPS, err = getInt("BOT_FPS", c.FPS); err != nil {
		return Bot{}, err
	}
	if c.Log.Console, err = getBool("LOG_CONSOLE", c.Log.Console); err != nil {
		return Bot{}, err
	}
	return c, c.Validate()
}

func (c Bot) Validate() error {
	if err := validMaxPlayers(c.MaxPlayers); err != nil {
		return err
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", c.Duration)
	}
	if c.Server == "" {
		return errors.New("server address is empty")
	}
	return validTransport(c.Transport)
}

func validMaxPlayers(n int) error {
	if n < 1 || n > 256 {
		return fmt.Errorf("max players %d out of range [1, 256]", n)
	}
	return nil
}

func validTransport(t string) error {
	switch t {
	case TransportENet, TransportWS:
		return nil
	default:
		return fmt.Errorf("unknown transport %q", t)
	}
}

// loadEnv 加载 .env 文件；文件不存在时忽略，已存在的环境变量优先
func loadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return d, nil
}
