// Package transporttest 提供内存中的成对传输，用于在没有套接字的情况下测试服务端与客户端。
// 事件按投递顺序到达，连接建立是同步的，便于写确定性的测试。
package transporttest

import (
	"sync"
	"time"

	"netsync/transport"
)

// Network 一个服务端 Host 以及任意数量拨入的客户端
type Network struct {
	mu     sync.Mutex
	server *Host
	refuse bool
	dials  int
}

func NewNetwork() *Network {
	return &Network{server: newHost("server")}
}

// Server 返回服务端 Host
func (n *Network) Server() *Host { return n.server }

// Refuse 为 true 时后续拨号全部失败（客户端收到 Peer 为 nil 的断开事件）
func (n *Network) Refuse(v bool) {
	n.mu.Lock()
	n.refuse = v
	n.mu.Unlock()
}

// Dials 返回累计拨号次数
func (n *Network) Dials() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials
}

// Dial 实现 transport.Dialer
func (n *Network) Dial(address string) (transport.Host, error) {
	n.mu.Lock()
	n.dials++
	refuse := n.refuse
	n.mu.Unlock()

	c := newHost(address)
	if refuse || n.server.isClosed() {
		c.push(transport.Event{Type: transport.EventDisconnect})
		return c, nil
	}
	l := &link{}
	sp := &Peer{name: address, host: n.server, link: l}
	cp := &Peer{name: "server", host: c, link: l}
	sp.other, cp.other = cp, sp
	n.server.track(sp)
	c.track(cp)
	n.server.push(transport.Event{Type: transport.EventConnect, Peer: sp})
	c.push(transport.Event{Type: transport.EventConnect, Peer: cp})
	return c, nil
}

type link struct {
	mu     sync.Mutex
	closed bool
}

// Peer 连接的一端；Send 把消息投递到对端所在的 Host
type Peer struct {
	name  string
	host  *Host
	other *Peer
	link  *link
}

func (p *Peer) Send(data []byte) error {
	p.link.mu.Lock()
	defer p.link.mu.Unlock()
	if p.link.closed {
		return transport.ErrClosed
	}
	b := append([]byte(nil), data...)
	p.other.host.push(transport.Event{Type: transport.EventReceive, Peer: p.other, Data: b})
	return nil
}

// Disconnect 断开连接，两端各收到一次 EventDisconnect
func (p *Peer) Disconnect() {
	p.link.mu.Lock()
	defer p.link.mu.Unlock()
	if p.link.closed {
		return
	}
	p.link.closed = true
	p.host.push(transport.Event{Type: transport.EventDisconnect, Peer: p})
	p.other.host.push(transport.Event{Type: transport.EventDisconnect, Peer: p.other})
}

func (p *Peer) RemoteAddr() string { return p.name }

// Host 内存事件队列
type Host struct {
	name   string
	events chan transport.Event

	mu     sync.Mutex
	peers  []*Peer
	closed bool
}

func newHost(name string) *Host {
	return &Host{name: name, events: make(chan transport.Event, 4096)}
}

func (h *Host) track(p *Peer) {
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
}

func (h *Host) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Host) push(ev transport.Event) {
	if h.isClosed() {
		return
	}
	h.events <- ev
}

// Pending 队列中尚未取出的事件数
func (h *Host) Pending() int { return len(h.events) }

func (h *Host) Service(timeout time.Duration) (transport.Event, error) {
	if h.isClosed() {
		return transport.Event{}, transport.ErrClosed
	}
	if timeout <= 0 {
		select {
		case ev := <-h.events:
			return ev, nil
		default:
			return transport.Event{}, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-h.events:
		return ev, nil
	case <-timer.C:
		return transport.Event{}, nil
	}
}

// Close 关闭 Host，其上所有连接对端收到断开事件
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	peers := h.peers
	h.peers = nil
	h.mu.Unlock()

	for _, p := range peers {
		p.Disconnect()
	}
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}
