package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"netsync/config"
	"netsync/logging"
	"netsync/server"
	"netsync/transport"
)

// 服务端入口：监听玩家连接，转发状态，并提供管理与监控接口
func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		panic(err)
	}

	// 命令行参数覆盖环境变量
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "game listen address, e.g. :4545")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: enet or ws")
	flag.StringVar(&cfg.AdminAddr, "admin", cfg.AdminAddr, "admin http address, empty to disable")
	flag.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "player slots (1-256)")
	flag.DurationVar(&cfg.PollTimeout, "poll", cfg.PollTimeout, "transport poll timeout")
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

	var host transport.Host
	switch cfg.Transport {
	case config.TransportWS:
		host, err = transport.ListenWS(cfg.Addr)
	default:
		// 多留几个连接位，满员时仍能接入再由会话层拒绝
		host, err = transport.ListenENet(cfg.Addr, cfg.MaxPlayers+4)
	}
	if err != nil {
		log.Fatalf("listen %s (%s): %v", cfg.Addr, cfg.Transport, err)
	}

	sessions := server.NewSessionManager(cfg.MaxPlayers, server.WithLogger(log))
	srv := server.New(host, sessions)
	srv.SetLogger(log)
	srv.SetPollTimeout(cfg.PollTimeout)

	var admin *http.Server
	if cfg.AdminAddr != "" {
		admin = &http.Server{Addr: cfg.AdminAddr, Handler: server.NewAdminMux(srv)}
		go func() {
			log.Infof("admin listening on %s", cfg.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("admin listen: %v", err)
			}
		}()
	}

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("server listening on %s (%s), %d slots", cfg.Addr, cfg.Transport, cfg.MaxPlayers)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("server loop: %v", err)
	}

	log.Info("Shutting down...")
	_ = host.Close()
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}
}
