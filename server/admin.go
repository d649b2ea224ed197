package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Status /status 的输出
type Status struct {
	MaxPlayers int        `json:"maxPlayers" msgpack:"maxPlayers"`
	Active     int        `json:"active" msgpack:"active"`
	Players    []SlotInfo `json:"players" msgpack:"players"`
}

// NewAdminMux 管理与监控接口
func NewAdminMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/admin/config", s.handleConfig)
	return mux
}

// handleStatus 输出槽位快照
// GET /status              JSON
// GET /status?format=msgpack
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slots := s.sessions.Snapshot()
	st := Status{MaxPlayers: len(slots), Players: make([]SlotInfo, 0, len(slots))}
	for _, si := range slots {
		if si.Active {
			st.Active++
			st.Players = append(st.Players, si)
		}
	}

	if r.URL.Query().Get("format") == "msgpack" {
		b, err := msgpack.Marshal(st)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		_, _ = w.Write(b)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// handleMetrics GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.sessions.Metrics().Snapshot())
}

// configView GET /admin/config 的输出；maxPlayers 只读
type configView struct {
	PollTimeoutMs int64 `json:"pollTimeoutMs"`
	MaxPlayers    int   `json:"maxPlayers"`
}

// configUpdate POST /admin/config 可修改的字段，其余字段一律拒绝
type configUpdate struct {
	PollTimeoutMs *int64 `json:"pollTimeoutMs"`
}

// handleConfig 读取/热更新轮询超时
// GET  /admin/config
// POST /admin/config  {"pollTimeoutMs": 10}
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(configView{
			PollTimeoutMs: s.PollTimeout().Milliseconds(),
			MaxPlayers:    s.sessions.MaxPlayers(),
		})
	case http.MethodPost:
		var body configUpdate
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
			return
		}
		if body.PollTimeoutMs != nil {
			if *body.PollTimeoutMs <= 0 {
				http.Error(w, "pollTimeoutMs must be positive", http.StatusBadRequest)
				return
			}
			s.SetPollTimeout(time.Duration(*body.PollTimeoutMs) * time.Millisecond)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		s.log.Infof("config updated: pollTimeout=%s", s.PollTimeout())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
