// Package transport 抽象可靠有序的消息传输层（连接建立、重传、消息边界由底层负责）。
// 服务端与客户端都以轮询方式消费事件：每次 Service 最多返回一个事件。
package transport

import (
	"errors"
	"time"
)

// EventType 传输层事件类型
type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventDisconnect
	EventReceive
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	default:
		return "none"
	}
}

// Peer 一条连接的对端。实现必须可比较（可作为 map 键），同一连接始终返回相等的值。
type Peer interface {
	// Send 可靠有序地发送一条消息
	Send(data []byte) error
	// Disconnect 发起优雅断开，稍后产生 EventDisconnect
	Disconnect()
	RemoteAddr() string
}

// Event 一次轮询得到的事件。Data 仅在 EventReceive 时有效，归调用方所有。
type Event struct {
	Type EventType
	Peer Peer
	Data []byte
}

// Host 本地端点：服务端监听，或客户端的单连接宿主
type Host interface {
	// Service 等待至多 timeout 取一个事件；超时返回 EventNone。timeout 为 0 时不阻塞。
	Service(timeout time.Duration) (Event, error)
	Close() error
}

// Dialer 客户端用于发起连接；连接结果通过返回 Host 的 EventConnect/EventDisconnect 通知
type Dialer interface {
	Dial(address string) (Host, error)
}

// ErrClosed Host 已关闭
var ErrClosed = errors.New("transport: host closed")
