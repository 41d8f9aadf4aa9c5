// Package metrics holds the server's runtime counters and the HTTP surface
// that exposes them.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics counts what the tick loop and the network edges drop or deliver.
// All counters are atomics; writers never block each other.
type Metrics struct {
	Ticks            int64
	CommandsAccepted int64
	DecodeErrors     int64
	UnknownPlayer    int64
	InboxDropped     int64
	DatagramsSent    int64
	SendsDropped     int64
	TotalTickNs      int64
}

func (m *Metrics) IncCommandAccepted() { atomic.AddInt64(&m.CommandsAccepted, 1) }
func (m *Metrics) IncDecodeError()     { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncUnknownPlayer()   { atomic.AddInt64(&m.UnknownPlayer, 1) }
func (m *Metrics) IncInboxDropped()    { atomic.AddInt64(&m.InboxDropped, 1) }
func (m *Metrics) IncDatagramSent()    { atomic.AddInt64(&m.DatagramsSent, 1) }
func (m *Metrics) IncSendDropped()     { atomic.AddInt64(&m.SendsDropped, 1) }

func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.Ticks, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for HTTP output.
func (m *Metrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.Ticks)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(total) / float64(ticks) / 1e6
	}
	return map[string]any{
		"ticks":             ticks,
		"commands_accepted": atomic.LoadInt64(&m.CommandsAccepted),
		"decode_errors":     atomic.LoadInt64(&m.DecodeErrors),
		"unknown_player":    atomic.LoadInt64(&m.UnknownPlayer),
		"inbox_dropped":     atomic.LoadInt64(&m.InboxDropped),
		"datagrams_sent":    atomic.LoadInt64(&m.DatagramsSent),
		"sends_dropped":     atomic.LoadInt64(&m.SendsDropped),
		"avg_tick_ms":       avgMs,
	}
}

// Handler serves the counters as JSON on GET.
func Handler(m *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	}
}
