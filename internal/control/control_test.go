package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/longbridgeapp/assert"
	"github.com/shopspring/decimal"

	"github.com/NodePath81/slotprobe/internal/config"
	"github.com/NodePath81/slotprobe/internal/metrics"
	"github.com/NodePath81/slotprobe/internal/probe"
	"github.com/NodePath81/slotprobe/internal/util"
)

func newTestServer(t *testing.T, cfg config.ControlConfig) (*ControlServer, *StatusHub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewStatusHub(ctx.Done())
	ctrl := NewControlServer(cfg, Identity{RunID: "run-42", Target: "https://slot.test/spin", BetAmount: "10", Iterations: 3},
		metrics.NewMetrics(), hub, util.DiscardLogger())
	srv := httptest.NewServer(ctrl.Handler())
	t.Cleanup(srv.Close)
	return ctrl, hub, srv
}

func readMessage(t *testing.T, conn *websocket.Conn) StatusMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	assert.NoError(t, err)
	var msg StatusMessage
	assert.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestStatusFeedStreamsSpins(t *testing.T) {
	_, hub, srv := newTestServer(t, config.ControlConfig{})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, "hello", hello.Type)
	assert.Equal(t, "run-42", hello.RunID)
	assert.Equal(t, 1, hub.Clients())

	feed := NewStatusFeed(hub, "run-42")
	feed.OnSpin(1, probe.SpinResult{
		Outcome:    probe.OutcomeRecorded,
		StatusCode: http.StatusOK,
		Observation: probe.Observation{
			WinAmount:      decimal.NewFromInt(20),
			CurrentBalance: decimal.NewFromInt(110),
		},
	})
	msg := readMessage(t, conn)
	assert.Equal(t, "spin", msg.Type)
	assert.Equal(t, 1, msg.Iteration)
	assert.Equal(t, "recorded", msg.Outcome)
	assert.Equal(t, "20", msg.WinAmount)
	assert.Equal(t, "110", msg.CurrentBalance)

	feed.Done(probe.Result{
		StopReason:   probe.StopTransportError,
		Err:          errors.New("refused"),
		Observations: probe.ObservationSet{{}},
	})
	done := readMessage(t, conn)
	assert.Equal(t, "done", done.Type)
	assert.Equal(t, "transport_error", done.StopReason)
	assert.Equal(t, "refused", done.Error)
	assert.Equal(t, 1, done.Observations)
}

func TestIdentityAuth(t *testing.T) {
	_, _, srv := newTestServer(t, config.ControlConfig{AuthToken: "s3cret"})

	resp, err := http.Get(srv.URL + "/identity")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/identity", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ok     bool     `json:"ok"`
		Result Identity `json:"result"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Ok)
	assert.Equal(t, "run-42", body.Result.RunID)
	assert.Equal(t, 3, body.Result.Iterations)
	assert.True(t, body.Result.Version != "")
}

func TestStatusRejectsForeignOrigin(t *testing.T) {
	_, _, srv := newTestServer(t, config.ControlConfig{})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/status"
	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	assert.True(t, err != nil)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, srv := newTestServer(t, config.ControlConfig{})
	resp, err := http.Get(srv.URL + "/metrics")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartBindsAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewStatusHub(ctx.Done())
	ctrl := NewControlServer(config.ControlConfig{BindAddr: "127.0.0.1", BindPort: 0}, Identity{RunID: "x"}, nil, hub, util.DiscardLogger())
	assert.NoError(t, ctrl.Start(ctx))
	addr := ctrl.Addr()
	assert.True(t, addr != "")

	resp, err := http.Get("http://" + addr + "/metrics")
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	assert.NoError(t, ctrl.Shutdown(shutdownCtx))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(r)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}
