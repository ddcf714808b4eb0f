package control

import (
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/NodePath81/slotprobe/internal/probe"
)

// StatusMessage is one frame on the /status feed.
type StatusMessage struct {
	Type           string  `json:"type"`
	RunID          string  `json:"run_id"`
	Timestamp      int64   `json:"timestamp"`
	Iteration      int     `json:"iteration,omitempty"`
	Outcome        string  `json:"outcome,omitempty"`
	StatusCode     int     `json:"status_code,omitempty"`
	WinAmount      string  `json:"win_amount,omitempty"`
	CurrentBalance string  `json:"current_balance,omitempty"`
	DurationMs     float64 `json:"duration_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
	StopReason     string  `json:"stop_reason,omitempty"`
	Observations   int     `json:"observations,omitempty"`
}

type StatusHub struct {
	mu        sync.Mutex
	clients   map[*statusClient]struct{}
	broadcast chan StatusMessage
	ctxDone   <-chan struct{}
}

type statusClient struct {
	send      chan []byte
	closeOnce sync.Once
}

func NewStatusHub(ctxDone <-chan struct{}) *StatusHub {
	h := &StatusHub{
		clients:   make(map[*statusClient]struct{}),
		broadcast: make(chan StatusMessage, 128),
		ctxDone:   ctxDone,
	}
	go h.run()
	return h
}

func (h *StatusHub) run() {
	for {
		select {
		case <-h.ctxDone:
			h.flush()
			h.mu.Lock()
			for client := range h.clients {
				client.close()
			}
			h.clients = make(map[*statusClient]struct{})
			h.mu.Unlock()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// flush delivers frames still queued at shutdown so clients see them before
// the close.
func (h *StatusHub) flush() {
	for {
		select {
		case msg := <-h.broadcast:
			h.deliver(msg)
		default:
			return
		}
	}
}

func (h *StatusHub) deliver(msg StatusMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *StatusHub) Register(client *statusClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
}

func (h *StatusHub) Unregister(client *statusClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
}

func (h *StatusHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast never blocks; frames are dropped when the hub is backed up.
func (h *StatusHub) Broadcast(msg StatusMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

func (c *statusClient) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// StatusFeed turns runner callbacks into hub frames.
type StatusFeed struct {
	hub   *StatusHub
	runID string
}

func NewStatusFeed(hub *StatusHub, runID string) *StatusFeed {
	return &StatusFeed{hub: hub, runID: runID}
}

// OnSpin implements probe.Observer.
func (f *StatusFeed) OnSpin(iteration int, res probe.SpinResult) {
	msg := StatusMessage{
		Type:       "spin",
		RunID:      f.runID,
		Timestamp:  time.Now().UnixMilli(),
		Iteration:  iteration,
		Outcome:    res.Outcome.String(),
		StatusCode: res.StatusCode,
		DurationMs: float64(res.Duration.Microseconds()) / 1000.0,
	}
	if res.Outcome == probe.OutcomeRecorded {
		msg.WinAmount = res.Observation.WinAmount.String()
		msg.CurrentBalance = res.Observation.CurrentBalance.String()
	}
	if res.Err != nil {
		msg.Error = res.Err.Error()
	}
	f.hub.Broadcast(msg)
}

// Done announces the end of the run.
func (f *StatusFeed) Done(res probe.Result) {
	msg := StatusMessage{
		Type:         "done",
		RunID:        f.runID,
		Timestamp:    time.Now().UnixMilli(),
		StopReason:   string(res.StopReason),
		Observations: len(res.Observations),
	}
	if res.Err != nil {
		msg.Error = res.Err.Error()
	}
	f.hub.Broadcast(msg)
}
