package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/codecat/go-enet"
)

// 单通道，所有消息可靠有序
const enetChannels = 1

var (
	enetMu     sync.Mutex
	enetActive bool
)

func initENet() {
	enetMu.Lock()
	defer enetMu.Unlock()
	if !enetActive {
		enet.Initialize()
		enetActive = true
	}
}

// Shutdown 释放 ENet 库，在所有 ENet Host 关闭之后调用；未初始化时无操作
func Shutdown() {
	enetMu.Lock()
	defer enetMu.Unlock()
	if enetActive {
		enet.Deinitialize()
		enetActive = false
	}
}

func enetInitialized() bool {
	enetMu.Lock()
	defer enetMu.Unlock()
	return enetActive
}

// ENetHost 基于 ENet（可靠 UDP）的 Host。非并发安全，只能由一个轮询循环使用。
type ENetHost struct {
	host  enet.Host
	peers map[enet.Peer]*enetPeer
}

// ListenENet 监听 addr（"host:port" 或 ":port"），maxPeers 为传输层允许的并发连接数
func ListenENet(addr string, maxPeers int) (*ENetHost, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}
	initENet()
	var la enet.Address
	if host == "" {
		la = enet.NewListenAddress(port)
	} else {
		la = enet.NewAddress(host, port)
	}
	h, err := enet.NewHost(la, uint64(maxPeers), enetChannels, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("enet listen %s: %w", addr, err)
	}
	return &ENetHost{host: h, peers: make(map[enet.Peer]*enetPeer)}, nil
}

// Service 对应 enet_host_service，一次最多返回一个事件
func (h *ENetHost) Service(timeout time.Duration) (Event, error) {
	if h.host == nil {
		return Event{}, ErrClosed
	}
	ev := h.host.Service(uint32(timeout.Milliseconds()))
	switch ev.GetType() {
	case enet.EventConnect:
		return Event{Type: EventConnect, Peer: h.wrap(ev.GetPeer())}, nil
	case enet.EventReceive:
		pkt := ev.GetPacket()
		data := append([]byte(nil), pkt.GetData()...)
		pkt.Destroy()
		return Event{Type: EventReceive, Peer: h.wrap(ev.GetPeer()), Data: data}, nil
	case enet.EventDisconnect:
		p := h.wrap(ev.GetPeer())
		delete(h.peers, ev.GetPeer())
		return Event{Type: EventDisconnect, Peer: p}, nil
	default:
		return Event{}, nil
	}
}

func (h *ENetHost) wrap(raw enet.Peer) *enetPeer {
	if p, ok := h.peers[raw]; ok {
		return p
	}
	p := &enetPeer{peer: raw}
	h.peers[raw] = p
	return p
}

func (h *ENetHost) Close() error {
	if h.host != nil {
		h.host.Destroy()
		h.host = nil
	}
	return nil
}

type enetPeer struct {
	peer enet.Peer
}

func (p *enetPeer) Send(data []byte) error {
	return p.peer.SendBytes(data, 0, enet.PacketFlagReliable)
}

func (p *enetPeer) Disconnect() {
	p.peer.Disconnect(0)
}

func (p *enetPeer) RemoteAddr() string {
	return p.peer.GetAddress().String()
}

// ENetDialer 客户端拨号器，地址缺省端口时使用 DefaultPort
type ENetDialer struct {
	DefaultPort uint16
}

// Dial 创建单连接的客户端 Host 并发起连接，结果在后续 Service 中返回
func (d ENetDialer) Dial(address string) (Host, error) {
	host, port, err := splitHostPort(address)
	if err != nil {
		host, port = address, d.DefaultPort
	}
	if host == "" {
		host = "127.0.0.1"
	}
	initENet()
	client, err := enet.NewHost(nil, 1, enetChannels, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("enet client host: %w", err)
	}
	h := &ENetHost{host: client, peers: make(map[enet.Peer]*enetPeer)}
	raw, err := client.Connect(enet.NewAddress(host, port), enetChannels, 0)
	if err != nil {
		client.Destroy()
		return nil, fmt.Errorf("enet connect %s: %w", address, err)
	}
	h.wrap(raw)
	return h, nil
}

func splitHostPort(addr string) (string, uint16, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("parse address %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("parse port %q: %w", p, err)
	}
	return host, uint16(port), nil
}
