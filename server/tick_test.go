package server

import (
	"context"
	"testing"
	"time"

	"netsync/protocol"
	"netsync/transport"
	"netsync/transport/transporttest"
)

// recv 从客户端 Host 取下一条消息
func recv(t *testing.T, h transport.Host) protocol.Message {
	t.Helper()
	for {
		ev, err := h.Service(0)
		if err != nil {
			t.Fatalf("client service: %v", err)
		}
		switch ev.Type {
		case transport.EventNone:
			t.Fatalf("no message pending")
		case transport.EventReceive:
			m, err := protocol.Decode(ev.Data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			return m
		}
	}
}

func TestServerStepDrivesSessions(t *testing.T) {
	net := transporttest.NewNetwork()
	srv := New(net.Server(), NewSessionManager(2))
	srv.SetPollTimeout(10 * time.Millisecond)

	a, _ := net.Dial("a")
	b, _ := net.Dial("b")
	for i := 0; i < 2; i++ {
		if err := srv.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if m := recv(t, a); m.Command != protocol.AcceptPlayer || m.PlayerID != 0 {
		t.Fatalf("a got %+v", m)
	}
	if m := recv(t, b); m.Command != protocol.AcceptPlayer || m.PlayerID != 1 {
		t.Fatalf("b got %+v", m)
	}

	// 空轮询超时返回，不报错
	if err := srv.Step(); err != nil {
		t.Fatalf("idle step: %v", err)
	}
	if srv.Sessions().Metrics().LoopCount != 3 {
		t.Fatalf("loop count = %d", srv.Sessions().Metrics().LoopCount)
	}
}

func TestServerRejectsThirdClientOverTransport(t *testing.T) {
	net := transporttest.NewNetwork()
	srv := New(net.Server(), NewSessionManager(2))
	srv.SetPollTimeout(time.Millisecond)

	net.Dial("a")
	net.Dial("b")
	c, _ := net.Dial("c")
	for net.Server().Pending() > 0 {
		if err := srv.Step(); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	var sawConnect, sawDisconnect bool
	for {
		ev, _ := c.Service(0)
		if ev.Type == transport.EventNone {
			break
		}
		switch ev.Type {
		case transport.EventConnect:
			sawConnect = true
		case transport.EventDisconnect:
			sawDisconnect = true
		case transport.EventReceive:
			t.Fatalf("rejected client received a message")
		}
	}
	if !sawConnect || !sawDisconnect {
		t.Fatalf("connect=%v disconnect=%v", sawConnect, sawDisconnect)
	}
	if srv.Sessions().ActiveCount() != 2 {
		t.Fatalf("active = %d", srv.Sessions().ActiveCount())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	net := transporttest.NewNetwork()
	srv := New(net.Server(), NewSessionManager(protocol.MaxPlayers))
	srv.SetPollTimeout(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestRunReturnsHostError(t *testing.T) {
	net := transporttest.NewNetwork()
	srv := New(net.Server(), NewSessionManager(protocol.MaxPlayers))
	_ = net.Server().Close()
	if err := srv.Run(context.Background()); err != transport.ErrClosed {
		t.Fatalf("run err = %v, want ErrClosed", err)
	}
}

func TestSetPollTimeoutIgnoresNonPositive(t *testing.T) {
	srv := New(transporttest.NewNetwork().Server(), NewSessionManager(1))
	if srv.PollTimeout() != DefaultPollTimeout {
		t.Fatalf("default poll timeout = %s", srv.PollTimeout())
	}
	srv.SetPollTimeout(0)
	if srv.PollTimeout() != DefaultPollTimeout {
		t.Fatalf("zero timeout accepted")
	}
}
