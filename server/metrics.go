package server

import (
	"sync/atomic"
)

// Metrics 记录会话管理的关键指标（用于监控与调试）
type Metrics struct {
	LoopCount          int64 // 轮询循环次数
	Accepted           int64 // 被接受的连接数
	Rejected           int64 // 因满员被拒绝的连接数
	Disconnects        int64 // 释放的槽位数
	InputsReceived     int64 // 有效的 UpdateInput 数
	Relayed            int64 // 转发出去的消息条数
	Malformed          int64 // 因长度不足被丢弃的消息
	UnknownCommands    int64 // 未知或不接受的命令
	IdentityViolations int64 // 来自未绑定连接的消息
	SendErrors         int64 // 传输层发送失败
	TotalLoopNs        int64 // 循环累计耗时（纳秒）
}

func (m *Metrics) IncAccepted()           { atomic.AddInt64(&m.Accepted, 1) }
func (m *Metrics) IncRejected()           { atomic.AddInt64(&m.Rejected, 1) }
func (m *Metrics) IncDisconnects()        { atomic.AddInt64(&m.Disconnects, 1) }
func (m *Metrics) IncInputs()             { atomic.AddInt64(&m.InputsReceived, 1) }
func (m *Metrics) AddRelayed(n int)       { atomic.AddInt64(&m.Relayed, int64(n)) }
func (m *Metrics) IncMalformed()          { atomic.AddInt64(&m.Malformed, 1) }
func (m *Metrics) IncUnknownCommands()    { atomic.AddInt64(&m.UnknownCommands, 1) }
func (m *Metrics) IncIdentityViolations() { atomic.AddInt64(&m.IdentityViolations, 1) }
func (m *Metrics) IncSendErrors()         { atomic.AddInt64(&m.SendErrors, 1) }
func (m *Metrics) AddLoop(ns int64) {
	atomic.AddInt64(&m.LoopCount, 1)
	atomic.AddInt64(&m.TotalLoopNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	loops := atomic.LoadInt64(&m.LoopCount)
	total := atomic.LoadInt64(&m.TotalLoopNs)
	var avgMs float64
	if loops > 0 {
		avgMs = float64(total) / float64(loops) / 1e6
	}
	return map[string]any{
		"loop_count":          loops,
		"accepted":            atomic.LoadInt64(&m.Accepted),
		"rejected":            atomic.LoadInt64(&m.Rejected),
		"disconnects":         atomic.LoadInt64(&m.Disconnects),
		"inputs_received":     atomic.LoadInt64(&m.InputsReceived),
		"relayed":             atomic.LoadInt64(&m.Relayed),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"unknown_commands":    atomic.LoadInt64(&m.UnknownCommands),
		"identity_violations": atomic.LoadInt64(&m.IdentityViolations),
		"send_errors":         atomic.LoadInt64(&m.SendErrors),
		"avg_loop_ms":         avgMs,
	}
}
