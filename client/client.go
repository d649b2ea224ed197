package client

import (
	"math"

	"go.uber.org/zap"

	"netsync/logging"
	"netsync/protocol"
	"netsync/transport"
)

// State 客户端连接状态
type State int

const (
	Disconnected State = iota
	Connecting
	Playing
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Playing:
		return "playing"
	case Disconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// Config 本地模拟参数，时间单位为秒
type Config struct {
	MaxPlayers    int
	FieldWidth    float64
	FieldHeight   float64
	PlayerSize    float64
	InputInterval float64 // 两次上报输入的最小间隔
	RetryInterval float64 // 连接失败后重试的间隔
	Spawn         Vec2    // 被接受后本地玩家的出生点
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers:    protocol.MaxPlayers,
		FieldWidth:    protocol.FieldWidth,
		FieldHeight:   protocol.FieldHeight,
		PlayerSize:    protocol.PlayerSize,
		InputInterval: 1.0 / protocol.InputHz,
		RetryInterval: 1,
		Spawn:         Vec2{X: 100, Y: 100},
	}
}

// RemotePlayer 其他玩家在本地的视图
type RemotePlayer struct {
	Active       bool
	Position     Vec2
	Velocity     Vec2
	UpdateTime   float64 // 收到最后一次更新时的时间
	Extrapolated Vec2    // 按速度推算的当前位置，每帧重算
}

// LocalPlayer 本地玩家，由客户端自己预测，服务端从不回写
type LocalPlayer struct {
	ID            int
	Position      Vec2
	Velocity      Vec2
	LastInputSend float64
}

// Client 单个客户端的连接状态机与本地模拟。非并发安全，由表现层每帧调用。
type Client struct {
	cfg    Config
	dialer transport.Dialer
	log    *zap.SugaredLogger

	state          State
	address        string
	host           transport.Host
	server         transport.Peer
	wantDisconnect bool
	retryAt        float64
	now            float64

	local   LocalPlayer
	players []RemotePlayer
}

type Option func(*Client)

func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = l }
}

func New(dialer transport.Dialer, opts ...Option) *Client {
	c := &Client{
		cfg:    DefaultConfig(),
		dialer: dialer,
		log:    logging.Log,
		local:  LocalPlayer{ID: -1},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.MaxPlayers < 1 {
		c.cfg.MaxPlayers = protocol.MaxPlayers
	}
	c.players = make([]RemotePlayer, c.cfg.MaxPlayers)
	return c
}

// Connect 开始连接 address，取代之前的任何连接尝试
func (c *Client) Connect(address string) {
	if c.state == Disconnecting {
		return
	}
	c.address = address
	c.closeHost()
	c.resetSession()
	c.state = Connecting
	c.dial()
}

// Disconnect 开始优雅断开；尚未建立传输连接时直接结束
func (c *Client) Disconnect() {
	if c.state != Connecting && c.state != Playing {
		return
	}
	if c.server != nil {
		c.wantDisconnect = true
		c.server.Disconnect()
		c.state = Disconnecting
		c.log.Infow("disconnecting", "address", c.address)
		return
	}
	c.closeHost()
	c.resetSession()
	c.state = Disconnected
}

// Connected 传输已连接且服务端已分配 ID
func (c *Client) Connected() bool {
	return c.server != nil && c.local.ID >= 0
}

func (c *Client) State() State       { return c.state }
func (c *Client) LocalPlayerID() int { return c.local.ID }
func (c *Client) Address() string    { return c.address }

// Update 推进一帧：按频率上报输入、处理至多一个网络事件、驱动状态机、推算远端位置
func (c *Client) Update(now, dt float64) {
	c.now = now
	if c.host != nil {
		c.sendInput(now)
		c.poll()
	}

	switch c.state {
	case Connecting:
		c.updateConnecting(now)
	case Playing:
		c.updatePlaying()
	case Disconnecting:
		c.updateDisconnecting()
	case Disconnected:
	}

	c.extrapolate(now)
}

// UpdateLocalPlayer 把移动意图积分到本地位置并限制在场地内
func (c *Client) UpdateLocalPlayer(intent Vec2, dt float64) {
	if c.local.ID < 0 {
		return
	}
	p := c.local.Position.Add(intent.Scale(dt))
	p.X = clamp(p.X, 0, c.cfg.FieldWidth-c.cfg.PlayerSize)
	p.Y = clamp(p.Y, 0, c.cfg.FieldHeight-c.cfg.PlayerSize)
	c.local.Position = p
	c.local.Velocity = intent
}

// PlayerPos 本地玩家返回实际位置，远端玩家返回推算位置
func (c *Client) PlayerPos(id int) (Vec2, bool) {
	if id < 0 || id >= len(c.players) {
		return Vec2{}, false
	}
	if id == c.local.ID {
		return c.local.Position, true
	}
	if !c.players[id].Active {
		return Vec2{}, false
	}
	return c.players[id].Extrapolated, true
}

func (c *Client) updateConnecting(now float64) {
	if c.Connected() {
		c.state = Playing
		c.log.Infow("joined game", "id", c.local.ID, "address", c.address)
		return
	}
	if c.host == nil && now >= c.retryAt {
		c.log.Debugw("retrying connection", "address", c.address)
		c.dial()
	}
}

func (c *Client) updatePlaying() {
	if c.host != nil {
		return
	}
	// 被断开，从头重连；服务端不会记得之前的会话
	c.log.Warnw("connection lost, reconnecting", "address", c.address)
	c.Connect(c.address)
}

func (c *Client) updateDisconnecting() {
	if c.host == nil {
		c.state = Disconnected
		c.log.Infow("disconnected", "address", c.address)
	}
}

func (c *Client) dial() {
	h, err := c.dialer.Dial(c.address)
	if err != nil {
		c.log.Warnw("dial failed", "address", c.address, "err", err)
		c.retryAt = c.now + c.cfg.RetryInterval
		return
	}
	c.host = h
}

// sendInput 每个输入间隔最多上报一次
func (c *Client) sendInput(now float64) {
	if c.wantDisconnect || c.server == nil || c.local.ID < 0 {
		return
	}
	if now-c.local.LastInputSend <= c.cfg.InputInterval {
		return
	}
	st := protocol.PlayerState{
		X:  toInt16(c.local.Position.X),
		Y:  toInt16(c.local.Position.Y),
		DX: toInt16(c.local.Velocity.X),
		DY: toInt16(c.local.Velocity.Y),
	}
	if err := c.server.Send(protocol.EncodeInput(st)); err != nil {
		c.log.Warnw("send input failed", "err", err)
	}
	c.local.LastInputSend = now
}

// poll 非阻塞地取一个事件
func (c *Client) poll() {
	ev, err := c.host.Service(0)
	if err != nil {
		c.log.Warnw("transport error", "err", err)
		c.lost()
		return
	}
	switch ev.Type {
	case transport.EventConnect:
		if ev.Peer != nil {
			c.server = ev.Peer
			c.log.Debugw("transport connected", "address", c.address)
		}
	case transport.EventReceive:
		c.handleMessage(ev.Data)
	case transport.EventDisconnect:
		c.lost()
	}
}

// lost 传输层断开：释放连接并丢弃全部远端视图
func (c *Client) lost() {
	c.closeHost()
	c.resetSession()
	if c.state == Connecting {
		c.retryAt = c.now + c.cfg.RetryInterval
	}
}

func (c *Client) handleMessage(data []byte) {
	if c.wantDisconnect {
		return
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		c.log.Debugw("dropping message", "len", len(data), "err", err)
		return
	}

	// 尚未被接受时只处理 AcceptPlayer
	if c.local.ID < 0 {
		if msg.Command != protocol.AcceptPlayer {
			return
		}
		id := int(msg.PlayerID)
		if id >= c.cfg.MaxPlayers {
			// 服务端槽位多于本地配置；释放连接让服务端收回槽位，稍后重试
			c.log.Warnw("server assigned id beyond local slots, dropping connection",
				"id", id, "maxPlayers", c.cfg.MaxPlayers)
			c.lost()
			return
		}
		c.local = LocalPlayer{
			ID:       id,
			Position: c.cfg.Spawn,
			// 让下一帧立即上报
			LastInputSend: math.Inf(-1),
		}
		c.players[id] = RemotePlayer{}
		return
	}

	switch msg.Command {
	case protocol.AddPlayer, protocol.UpdatePlayer:
		c.upsertRemote(msg)
	case protocol.RemovePlayer:
		c.removeRemote(int(msg.PlayerID))
	}
}

func (c *Client) upsertRemote(msg protocol.Message) {
	id := int(msg.PlayerID)
	if id >= len(c.players) || id == c.local.ID {
		return
	}
	p := &c.players[id]
	p.Active = true
	p.Position = Vec2{X: float64(msg.State.X), Y: float64(msg.State.Y)}
	p.Velocity = Vec2{X: float64(msg.State.DX), Y: float64(msg.State.DY)}
	p.UpdateTime = c.now
	p.Extrapolated = p.Position
}

func (c *Client) removeRemote(id int) {
	if id >= len(c.players) || id == c.local.ID {
		return
	}
	c.players[id].Active = false
}

// extrapolate 纯航位推算：位置 + 速度 × 经过时间，不做平滑
func (c *Client) extrapolate(now float64) {
	for i := range c.players {
		p := &c.players[i]
		if i == c.local.ID || !p.Active {
			continue
		}
		p.Extrapolated = p.Position.Add(p.Velocity.Scale(now - p.UpdateTime))
	}
}

func (c *Client) closeHost() {
	if c.host != nil {
		_ = c.host.Close()
	}
	c.host = nil
	c.server = nil
}

func (c *Client) resetSession() {
	c.wantDisconnect = false
	c.local = LocalPlayer{ID: -1}
	for i := range c.players {
		c.players[i] = RemotePlayer{}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toInt16 截断为线上使用的 int16，超出范围时取边界
func toInt16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
