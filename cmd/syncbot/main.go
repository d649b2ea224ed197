// syncbot 是无界面的测试客户端：连接服务端，在场地内来回移动，并定期记录看到的其他玩家。
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"netsync/client"
	"netsync/config"
	"netsync/logging"
	"netsync/protocol"
	"netsync/transport"
)

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}
	flag.StringVar(&cfg.Server, "server", cfg.Server, "server address host:port")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: enet or ws")
	flag.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "server player slots (1-256)")
	flag.Float64Var(&cfg.Speed, "speed", cfg.Speed, "movement speed in pixels per second")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "run time, 0 runs until interrupted")
	flag.IntVar(&cfg.FPS, "fps", cfg.FPS, "frames per second")
	flag.StringVar(&cfg.Log.File, "log", cfg.Log.File, "log file")
	flag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	log, err := logging.Init(logging.Options{File: cfg.Log.File, Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err != nil {
		panic(err)
	}
	defer logging.Sync()
	defer transport.Shutdown()

	var dialer transport.Dialer = transport.ENetDialer{DefaultPort: protocol.DefaultPort}
	if cfg.Transport == config.TransportWS {
		dialer = transport.WSDialer{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	ccfg := client.DefaultConfig()
	ccfg.MaxPlayers = cfg.MaxPlayers
	c := client.New(dialer, client.WithConfig(ccfg), client.WithLogger(log))
	c.Connect(cfg.Server)
	log.Infof("syncbot connecting to %s (%s)", cfg.Server, cfg.Transport)

	b := bouncer{dir: client.Vec2{X: 1, Y: 0.6}, speed: cfg.Speed}
	start := time.Now()
	last := start
	lastReport := start
	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	done := ctx.Done()
	for c.State() != client.Disconnected {
		select {
		case <-done:
			log.Info("stopping, disconnecting from server")
			c.Disconnect()
			done = nil
		case <-ticker.C:
		}
		t := time.Now()
		dt := t.Sub(last).Seconds()
		last = t

		if c.State() == client.Playing {
			pos, _ := c.PlayerPos(c.LocalPlayerID())
			c.UpdateLocalPlayer(b.intent(pos), dt)
		}
		c.Update(t.Sub(start).Seconds(), dt)

		if t.Sub(lastReport) >= time.Second {
			lastReport = t
			report(c, cfg.MaxPlayers)
		}
	}
	log.Info("syncbot stopped")
}

// bouncer 碰到场地边缘就反向
type bouncer struct {
	dir   client.Vec2
	speed float64
}

func (b *bouncer) intent(pos client.Vec2) client.Vec2 {
	maxX := float64(protocol.FieldWidth - protocol.PlayerSize)
	maxY := float64(protocol.FieldHeight - protocol.PlayerSize)
	if (pos.X <= 0 && b.dir.X < 0) || (pos.X >= maxX && b.dir.X > 0) {
		b.dir.X = -b.dir.X
	}
	if (pos.Y <= 0 && b.dir.Y < 0) || (pos.Y >= maxY && b.dir.Y > 0) {
		b.dir.Y = -b.dir.Y
	}
	return b.dir.Scale(b.speed)
}

func report(c *client.Client, maxPlayers int) {
	if c.State() != client.Playing {
		logging.Log.Infow("waiting", "state", c.State().String())
		return
	}
	var seen []int
	for id := 0; id < maxPlayers; id++ {
		if id == c.LocalPlayerID() {
			continue
		}
		if _, ok := c.PlayerPos(id); ok {
			seen = append(seen, id)
		}
	}
	self, _ := c.PlayerPos(c.LocalPlayerID())
	logging.Log.Infow("tick", "id", c.LocalPlayerID(), "x", int(self.X), "y", int(self.Y), "visible", seen)
}
