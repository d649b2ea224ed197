package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufSize    = 256
	eventBufSize   = 1024

	// WSPath 服务端 WebSocket 接入路径
	WSPath = "/ws"
)

var errSendQueueFull = errors.New("transport: send queue full")

// WSHost 基于 WebSocket 的 Host。服务端用作 http.Handler，客户端由 WSDialer 创建。
// 每条连接一个读协程、一个写协程，事件汇总到 events 队列由 Service 逐个取出。
type WSHost struct {
	events chan Event
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	peers map[*wsPeer]struct{}
	srv   *http.Server

	upgrader websocket.Upgrader
}

func newWSHost() *WSHost {
	return &WSHost{
		events: make(chan Event, eventBufSize),
		closed: make(chan struct{}),
		peers:  make(map[*wsPeer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 非浏览器客户端，不校验来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// NewWSHost 创建一个尚未监听的服务端 Host，需挂到 HTTP 路由上
func NewWSHost() *WSHost {
	return newWSHost()
}

// ListenWS 在 addr 上监听，并在 WSPath 接受 WebSocket 连接
func ListenWS(addr string) (*WSHost, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	h := newWSHost()
	mux := http.NewServeMux()
	mux.Handle(WSPath, h)
	h.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = h.srv.Serve(ln)
	}()
	return h, nil
}

// ServeHTTP 升级连接并产生 EventConnect
func (h *WSHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.closed:
		http.Error(w, "host closed", http.StatusServiceUnavailable)
		return
	default:
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	addr := r.RemoteAddr
	h.attach(ws, addr)
}

// attach 登记连接、投递 EventConnect 并启动读写协程
func (h *WSHost) attach(ws *websocket.Conn, addr string) *wsPeer {
	p := &wsPeer{
		ws:   ws,
		host: h,
		addr: addr,
		send: make(chan []byte, sendBufSize),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	select {
	case <-h.closed:
		h.mu.Unlock()
		_ = ws.Close()
		return nil
	default:
	}
	h.peers[p] = struct{}{}
	h.mu.Unlock()

	h.push(Event{Type: EventConnect, Peer: p})
	go p.writePump()
	go p.readPump()
	return p
}

func (h *WSHost) push(ev Event) {
	select {
	case h.events <- ev:
	case <-h.closed:
	}
}

func (h *WSHost) forget(p *wsPeer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

// Service 取一个事件；timeout<=0 时不阻塞
func (h *WSHost) Service(timeout time.Duration) (Event, error) {
	if timeout <= 0 {
		select {
		case ev := <-h.events:
			return ev, nil
		case <-h.closed:
			return Event{}, ErrClosed
		default:
			return Event{}, nil
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-h.events:
		return ev, nil
	case <-h.closed:
		return Event{}, ErrClosed
	case <-timer.C:
		return Event{}, nil
	}
}

// Close 关闭所有连接与监听
func (h *WSHost) Close() error {
	h.once.Do(func() {
		h.mu.Lock()
		close(h.closed)
		peers := make([]*wsPeer, 0, len(h.peers))
		for p := range h.peers {
			peers = append(peers, p)
		}
		h.mu.Unlock()
		for _, p := range peers {
			_ = p.ws.Close()
		}
		if h.srv != nil {
			_ = h.srv.Close()
		}
	})
	return nil
}

// wsPeer 单条 WebSocket 连接，发送经由队列交给写协程
type wsPeer struct {
	ws   *websocket.Conn
	host *WSHost
	addr string

	send     chan []byte
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
}

// Send 将消息压入发送队列（非阻塞，满则返回错误）
func (p *wsPeer) Send(data []byte) error {
	b := make([]byte, len(data))
	copy(b, data)
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.send <- b:
		return nil
	default:
		return errSendQueueFull
	}
}

// Disconnect 写协程发完已排队的消息后发送关闭帧
func (p *wsPeer) Disconnect() {
	p.quitOnce.Do(func() { close(p.quit) })
}

func (p *wsPeer) RemoteAddr() string { return p.addr }

// finish 连接结束时只投递一次 EventDisconnect
func (p *wsPeer) finish() {
	p.doneOnce.Do(func() {
		close(p.done)
		_ = p.ws.Close()
		p.host.forget(p)
		p.host.push(Event{Type: EventDisconnect, Peer: p})
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (p *wsPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.ws.Close()
	}()
	for {
		select {
		case msg := <-p.send:
			if err := p.write(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := p.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.quit:
			if err := p.flush(); err != nil {
				return
			}
			_ = p.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-p.done:
			return
		}
	}
}

// flush 写出队列中剩余的消息
func (p *wsPeer) flush() error {
	for {
		select {
		case msg := <-p.send:
			if err := p.write(websocket.BinaryMessage, msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (p *wsPeer) write(kind int, data []byte) error {
	_ = p.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return p.ws.WriteMessage(kind, data)
}

// readPump 读取二进制消息并投递 EventReceive；退出时投递 EventDisconnect
func (p *wsPeer) readPump() {
	defer p.finish()
	p.ws.SetReadLimit(maxMessageSize)
	_ = p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, payload, err := p.ws.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		p.host.push(Event{Type: EventReceive, Peer: p, Data: payload})
	}
}

// WSDialer 客户端拨号器。地址可为 "host:port" 或完整的 ws:// URL。
type WSDialer struct {
	HandshakeTimeout time.Duration
}

// Dial 异步建立连接：成功投递 EventConnect，失败投递 Peer 为 nil 的 EventDisconnect
func (d WSDialer) Dial(address string) (Host, error) {
	u := wsURL(address)
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	h := newWSHost()
	go func() {
		ws, _, err := dialer.Dial(u, nil)
		if err != nil {
			h.push(Event{Type: EventDisconnect})
			return
		}
		h.attach(ws, u)
	}()
	return h, nil
}

func wsURL(address string) string {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address
	}
	return "ws://" + address + WSPath
}
