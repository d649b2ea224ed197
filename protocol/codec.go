package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrEmpty          = errors.New("protocol: empty message")
	ErrShortMessage   = errors.New("protocol: message too short")
	ErrUnknownCommand = errors.New("protocol: unknown command")
)

// 所有整数字段固定为小端序，与主机字节序无关
var order = binary.LittleEndian

// PlayerState 线上传输的位置与速度（有符号 16 位）
type PlayerState struct {
	X, Y   int16
	DX, DY int16
}

// Message 解码后的一条消息。PlayerID 对 UpdateInput 无意义，State 对
// AcceptPlayer/RemovePlayer 无意义。
type Message struct {
	Command  Command
	PlayerID uint8
	State    PlayerState
}

// Reader 基于游标的读取器，每次读取推进偏移量
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// ReadByte 读取一个字节；越界时返回 ErrShortMessage 且不推进
func (r *Reader) ReadByte() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, ErrShortMessage
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// ReadInt16 读取一个小端序 int16
func (r *Reader) ReadInt16() (int16, error) {
	if r.off+2 > len(r.buf) {
		return 0, ErrShortMessage
	}
	v := int16(order.Uint16(r.buf[r.off:]))
	r.off += 2
	return v, nil
}

// ReadState 依次读取 x, y, dx, dy
func (r *Reader) ReadState() (PlayerState, error) {
	var s PlayerState
	for _, dst := range []*int16{&s.X, &s.Y, &s.DX, &s.DY} {
		v, err := r.ReadInt16()
		if err != nil {
			return PlayerState{}, err
		}
		*dst = v
	}
	return s, nil
}

func (r *Reader) Offset() int    { return r.off }
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Writer 追加写入固定布局的字段
type Writer struct {
	buf []byte
}

func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

func (w *Writer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

func (w *Writer) WriteInt16(v int16) {
	w.buf = order.AppendUint16(w.buf, uint16(v))
}

func (w *Writer) WriteState(s PlayerState) {
	w.WriteInt16(s.X)
	w.WriteInt16(s.Y)
	w.WriteInt16(s.DX)
	w.WriteInt16(s.DY)
}

func (w *Writer) Bytes() []byte { return w.buf }

// Encode 按命令的固定布局编码消息
func Encode(m Message) []byte {
	size, ok := Size(m.Command)
	if !ok {
		return nil
	}
	w := NewWriter(size)
	_ = w.WriteByte(byte(m.Command))
	switch m.Command {
	case AcceptPlayer, RemovePlayer:
		_ = w.WriteByte(m.PlayerID)
	case AddPlayer, UpdatePlayer:
		_ = w.WriteByte(m.PlayerID)
		w.WriteState(m.State)
	case UpdateInput:
		w.WriteState(m.State)
	}
	return w.Bytes()
}

func EncodeAccept(id uint8) []byte {
	return Encode(Message{Command: AcceptPlayer, PlayerID: id})
}

func EncodeAdd(id uint8, s PlayerState) []byte {
	return Encode(Message{Command: AddPlayer, PlayerID: id, State: s})
}

func EncodeRemove(id uint8) []byte {
	return Encode(Message{Command: RemovePlayer, PlayerID: id})
}

func EncodeUpdate(id uint8, s PlayerState) []byte {
	return Encode(Message{Command: UpdatePlayer, PlayerID: id, State: s})
}

func EncodeInput(s PlayerState) []byte {
	return Encode(Message{Command: UpdateInput, State: s})
}

// Decode 解码一条消息。长度不足返回 ErrShortMessage，未知命令返回
// ErrUnknownCommand；调用方应直接丢弃该消息。多余的尾部字节被忽略。
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, ErrEmpty
	}
	cmd := Command(b[0])
	size, ok := Size(cmd)
	if !ok {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownCommand, b[0])
	}
	if len(b) < size {
		return Message{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortMessage, cmd, size, len(b))
	}

	r := NewReader(b)
	_, _ = r.ReadByte()
	m := Message{Command: cmd}
	var err error
	switch cmd {
	case AcceptPlayer, RemovePlayer:
		m.PlayerID, err = r.ReadByte()
	case AddPlayer, UpdatePlayer:
		if m.PlayerID, err = r.ReadByte(); err == nil {
			m.State, err = r.ReadState()
		}
	case UpdateInput:
		m.State, err = r.ReadState()
	}
	if err != nil {
		return Message{}, err
	}
	return m, nil
}
