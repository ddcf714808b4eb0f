// Package mock serves a local stand-in for the slot API spin endpoint.
package mock

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/NodePath81/slotprobe/internal/config"
	"github.com/NodePath81/slotprobe/internal/slot"
	"github.com/NodePath81/slotprobe/internal/util"
)

const (
	SpinRoute = "/api/Player/spin/{playerID}"

	// DefaultPlayerID is the player the default target URL spins for.
	DefaultPlayerID = "67a5338b175f6d97b8e47a78"
)

// DefaultBalance is the balance new players start with.
var DefaultBalance = decimal.NewFromInt(100)

// Amounts go out as bare JSON numbers, as the real API sends them.
type spinResponse struct {
	Matrix         slot.Matrix `json:"matrix"`
	WinAmount      json.Number `json:"winAmount"`
	CurrentBalance json.Number `json:"currentBalance"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

type Server struct {
	engine *slot.Engine
	logger util.Logger

	mu      sync.Mutex
	players map[string]decimal.Decimal
}

func NewServer(engine *slot.Engine, logger util.Logger) *Server {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &Server{
		engine:  engine,
		logger:  logger,
		players: make(map[string]decimal.Decimal),
	}
}

// AddPlayer registers id with the given balance, replacing any existing one.
func (s *Server) AddPlayer(id string, balance decimal.Decimal) {
	s.mu.Lock()
	s.players[id] = balance
	s.mu.Unlock()
}

func (s *Server) Balance(id string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.players[id]
	return b, ok
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(SpinRoute, s.handleSpin)
	return r
}

// ListenAndServe serves the spin endpoint on addr until ctx is done. With a
// non-nil cert the listener speaks TLS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, cert *tls.Certificate) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	scheme := "http"
	if cert != nil {
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
			NextProtos:   []string{"h2", "http/1.1"},
		})
		scheme = "https"
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("mock slot API listening", "addr", ln.Addr().String(), "scheme", scheme)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	bet, err := decimal.NewFromString(strings.TrimSpace(r.URL.Query().Get("betAmount")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "betAmount must be a number")
		return
	}
	if !bet.IsPositive() || bet.GreaterThan(decimal.NewFromInt(config.MaxBetAmount)) {
		writeError(w, http.StatusBadRequest, "betAmount must be greater than 0 and at most 100000")
		return
	}

	s.mu.Lock()
	balance, ok := s.players[playerID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("player not found", "player", playerID)
		writeError(w, http.StatusNotFound, "Player with ID "+playerID+" not found!")
		return
	}
	if balance.LessThan(bet) {
		s.mu.Unlock()
		s.logger.Warn("insufficient balance", "player", playerID, "balance", balance.String())
		writeError(w, http.StatusBadRequest, "Insufficient balance.")
		return
	}
	matrix, win := s.engine.Spin(bet)
	balance = balance.Sub(bet).Add(win)
	s.players[playerID] = balance
	s.mu.Unlock()

	s.logger.Debug("spin completed", "player", playerID, "win", win.String(), "balance", balance.String())
	writeJSON(w, http.StatusOK, spinResponse{
		Matrix:         matrix,
		WinAmount:      json.Number(win.String()),
		CurrentBalance: json.Number(balance.String()),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		StatusCode: status,
		Message:    http.StatusText(status),
		Error:      msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
