package server

import (
	"netsync/protocol"
	"netsync/transport"
)

// Slot 服务端权威的玩家槽位
type Slot struct {
	ID     uint8
	Active bool
	// ValidPosition 客户端是否已上报过位置；决定是否对其他玩家可见
	ValidPosition bool
	State         protocol.PlayerState

	Peer transport.Peer // 占用该槽位的连接
}

// SlotInfo 槽位的只读快照，用于管理接口输出
type SlotInfo struct {
	ID            int    `json:"id" msgpack:"id"`
	Active        bool   `json:"active" msgpack:"active"`
	ValidPosition bool   `json:"validPosition" msgpack:"validPosition"`
	X             int16  `json:"x" msgpack:"x"`
	Y             int16  `json:"y" msgpack:"y"`
	DX            int16  `json:"dx" msgpack:"dx"`
	DY            int16  `json:"dy" msgpack:"dy"`
	Addr          string `json:"addr,omitempty" msgpack:"addr,omitempty"`
}

func (s *Slot) info() SlotInfo {
	si := SlotInfo{
		ID:            int(s.ID),
		Active:        s.Active,
		ValidPosition: s.ValidPosition,
		X:             s.State.X,
		Y:             s.State.Y,
		DX:            s.State.DX,
		DY:            s.State.DY,
	}
	if s.Peer != nil {
		si.Addr = s.Peer.RemoteAddr()
	}
	return si
}

// reset 释放槽位，清除连接绑定
func (s *Slot) reset() {
	s.Active = false
	s.ValidPosition = false
	s.Peer = nil
	s.State = protocol.PlayerState{}
}
