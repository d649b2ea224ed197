package protocol

import "fmt"

// 客户端与服务端共享的常量
const (
	// MaxPlayers 默认的玩家槽位数量
	MaxPlayers = 8

	// 场地尺寸（像素），所有客户端一致
	FieldWidth  = 1280
	FieldHeight = 800

	// PlayerSize 玩家方块边长
	PlayerSize = 10

	// DefaultPort 服务端监听端口
	DefaultPort = 4545

	// InputHz 客户端上报输入的频率（20 次/秒）
	InputHz = 20
)

// Command 消息首字节，标识命令类型
type Command byte

const (
	// AcceptPlayer S->C，连接被接受，携带分配给客户端的玩家 ID
	AcceptPlayer Command = 1
	// AddPlayer S->C，向本地模拟添加一个玩家（ID + 位置 + 速度）
	AddPlayer Command = 2
	// RemovePlayer S->C，从本地模拟移除一个玩家
	RemovePlayer Command = 3
	// UpdatePlayer S->C，更新某个玩家的位置与速度
	UpdatePlayer Command = 4
	// UpdateInput C->S，客户端上报自己的位置与速度
	UpdateInput Command = 5
)

// 各命令的固定长度（字节），包含首字节
const (
	acceptSize = 2
	stateSize  = 10
	removeSize = 2
	inputSize  = 9
)

// Size 返回命令的固定消息长度；未知命令返回 false
func Size(c Command) (int, bool) {
	switch c {
	case AcceptPlayer:
		return acceptSize, true
	case AddPlayer, UpdatePlayer:
		return stateSize, true
	case RemovePlayer:
		return removeSize, true
	case UpdateInput:
		return inputSize, true
	default:
		return 0, false
	}
}

func (c Command) String() string {
	switch c {
	case AcceptPlayer:
		return "AcceptPlayer"
	case AddPlayer:
		return "AddPlayer"
	case RemovePlayer:
		return "RemovePlayer"
	case UpdatePlayer:
		return "UpdatePlayer"
	case UpdateInput:
		return "UpdateInput"
	default:
		return fmt.Sprintf("Command(%d)", byte(c))
	}
}
