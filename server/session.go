package server

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"netsync/logging"
	"netsync/protocol"
	"netsync/transport"
)

// SessionManager 持有全部玩家槽位：接受/拒绝连接、转发状态、广播加入与离开。
// 所有修改都在同一个轮询协程中完成；管理接口只读取原子发布的快照。
type SessionManager struct {
	slots  []Slot
	byPeer map[transport.Peer]int

	log      *zap.SugaredLogger
	metrics  *Metrics
	snapshot atomic.Pointer[[]SlotInfo]
}

// Option 配置 SessionManager
type Option func(*SessionManager)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *SessionManager) { m.log = l }
}

func WithMetrics(mt *Metrics) Option {
	return func(m *SessionManager) { m.metrics = mt }
}

// NewSessionManager 创建 maxPlayers 个空槽位（1..256）
func NewSessionManager(maxPlayers int, opts ...Option) *SessionManager {
	if maxPlayers < 1 {
		maxPlayers = 1
	}
	if maxPlayers > 256 {
		maxPlayers = 256
	}
	m := &SessionManager{
		slots:  make([]Slot, maxPlayers),
		byPeer: make(map[transport.Peer]int, maxPlayers),
		log:    logging.Log,
	}
	for i := range m.slots {
		m.slots[i].ID = uint8(i)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = &Metrics{}
	}
	m.publish()
	return m
}

func (m *SessionManager) MaxPlayers() int   { return len(m.slots) }
func (m *SessionManager) Metrics() *Metrics { return m.metrics }

// Handle 分发一个传输层事件
func (m *SessionManager) Handle(ev transport.Event) {
	switch ev.Type {
	case transport.EventConnect:
		m.OnConnect(ev.Peer)
	case transport.EventReceive:
		m.OnReceive(ev.Peer, ev.Data)
	case transport.EventDisconnect:
		m.OnDisconnect(ev.Peer)
	}
}

// OnConnect 分配最小的空闲槽位；满员时直接断开，不发送任何消息
func (m *SessionManager) OnConnect(p transport.Peer) {
	if p == nil {
		return
	}
	if id, ok := m.byPeer[p]; ok {
		m.log.Warnw("duplicate connect event", "id", id, "addr", p.RemoteAddr())
		return
	}
	id := m.freeSlot()
	if id < 0 {
		m.metrics.IncRejected()
		m.log.Infow("server full, rejecting connection", "addr", p.RemoteAddr())
		p.Disconnect()
		return
	}

	s := &m.slots[id]
	s.Active = true
	// 在收到有效位置之前不向其他人广播
	s.ValidPosition = false
	s.State = protocol.PlayerState{}
	s.Peer = p
	m.byPeer[p] = id
	m.metrics.IncAccepted()
	m.publish()
	m.log.Infow("player connected", "id", id, "addr", p.RemoteAddr())

	m.send(p, protocol.EncodeAccept(s.ID))

	// 让新玩家知道已经在场且位置有效的其他玩家
	for i := range m.slots {
		other := &m.slots[i]
		if i == id || !other.Active || !other.ValidPosition {
			continue
		}
		m.send(p, protocol.EncodeAdd(other.ID, other.State))
	}
}

// OnReceive 只接受 UpdateInput；发送者由连接确定，绝不信任消息里的 ID
func (m *SessionManager) OnReceive(p transport.Peer, data []byte) {
	id, ok := m.byPeer[p]
	if !ok {
		m.metrics.IncIdentityViolations()
		addr := ""
		if p != nil {
			addr = p.RemoteAddr()
			p.Disconnect()
		}
		m.log.Warnw("message from unbound connection, disconnecting", "addr", addr)
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownCommand) {
			m.metrics.IncUnknownCommands()
		} else {
			m.metrics.IncMalformed()
		}
		m.log.Warnw("dropping message", "id", id, "len", len(data), "err", err)
		return
	}
	if msg.Command != protocol.UpdateInput {
		m.metrics.IncUnknownCommands()
		m.log.Debugw("ignoring client command", "id", id, "cmd", msg.Command)
		return
	}
	m.metrics.IncInputs()

	s := &m.slots[id]
	s.State = msg.State
	out := protocol.UpdatePlayer
	if !s.ValidPosition {
		out = protocol.AddPlayer
	}
	s.ValidPosition = true
	m.publish()

	// 先取完整副本再编码，广播看到的是一致的状态
	snap := *s
	relay := protocol.Encode(protocol.Message{Command: out, PlayerID: snap.ID, State: snap.State})
	n := m.sendToAllBut(relay, id)
	m.log.Debugw("relayed input", "id", id, "cmd", out, "x", snap.State.X, "y", snap.State.Y, "to", n)
}

// OnDisconnect 释放槽位并通知所有在线玩家；未绑定的连接忽略
func (m *SessionManager) OnDisconnect(p transport.Peer) {
	id, ok := m.byPeer[p]
	if !ok {
		return
	}
	delete(m.byPeer, p)
	m.slots[id].reset()
	m.metrics.IncDisconnects()
	m.publish()
	m.log.Infow("player disconnected", "id", id)

	m.sendToAllBut(protocol.EncodeRemove(uint8(id)), -1)
}

// Snapshot 返回最近一次发布的槽位快照（并发安全）
func (m *SessionManager) Snapshot() []SlotInfo {
	return *m.snapshot.Load()
}

// ActiveCount 当前占用的槽位数
func (m *SessionManager) ActiveCount() int {
	return len(m.byPeer)
}

func (m *SessionManager) freeSlot() int {
	for i := range m.slots {
		if !m.slots[i].Active {
			return i
		}
	}
	return -1
}

// sendToAllBut 发给除 except 以外的所有在线槽位，返回发送条数
func (m *SessionManager) sendToAllBut(b []byte, except int) int {
	n := 0
	for i := range m.slots {
		s := &m.slots[i]
		if !s.Active || i == except {
			continue
		}
		m.send(s.Peer, b)
		n++
	}
	m.metrics.AddRelayed(n)
	return n
}

func (m *SessionManager) send(p transport.Peer, b []byte) {
	if err := p.Send(b); err != nil {
		m.metrics.IncSendErrors()
		m.log.Warnw("send failed", "addr", p.RemoteAddr(), "err", err)
	}
}

func (m *SessionManager) publish() {
	infos := make([]SlotInfo, len(m.slots))
	for i := range m.slots {
		infos[i] = m.slots[i].info()
	}
	m.snapshot.Store(&infos)
}
