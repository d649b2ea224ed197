package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"netsync/logging"
	"netsync/transport"
)

// DefaultPollTimeout 每次轮询最多等待一个事件的时长
const DefaultPollTimeout = time.Second

// Server 单线程轮询循环：取一个传输事件 → 交给 SessionManager
type Server struct {
	host        transport.Host
	sessions    *SessionManager
	pollTimeout atomic.Int64
	log         *zap.SugaredLogger
}

func New(host transport.Host, sessions *SessionManager) *Server {
	s := &Server{host: host, sessions: sessions, log: logging.Log}
	s.pollTimeout.Store(int64(DefaultPollTimeout))
	return s
}

func (s *Server) Sessions() *SessionManager { return s.sessions }

// SetLogger 替换循环使用的日志
func (s *Server) SetLogger(l *zap.SugaredLogger) { s.log = l }

func (s *Server) PollTimeout() time.Duration {
	return time.Duration(s.pollTimeout.Load())
}

// SetPollTimeout 运行中调整轮询超时；有额外逻辑时应调小，避免被阻塞
func (s *Server) SetPollTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.pollTimeout.Store(int64(d))
}

// Run 循环直到 ctx 取消（返回 nil）或传输层出错
func (s *Server) Run(ctx context.Context) error {
	s.log.Infow("server loop started", "maxPlayers", s.sessions.MaxPlayers(), "pollTimeout", s.PollTimeout())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("server loop stopped")
			return nil
		default:
		}
		if err := s.Step(); err != nil {
			if errors.Is(err, transport.ErrClosed) && ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Step 处理至多一个事件
func (s *Server) Step() error {
	ev, err := s.host.Service(s.PollTimeout())
	if err != nil {
		return err
	}
	start := time.Now()
	s.sessions.Handle(ev)
	s.sessions.Metrics().AddLoop(time.Since(start).Nanoseconds())
	return nil
}
