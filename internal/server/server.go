// Package server exposes the inbound webhook endpoint and the index page.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	tele "gopkg.in/telebot.v4"

	logx "trackrelay/pkg/logx"
)

const (
	// indexBody doubles as the liveness probe response.
	indexBody = "Hi there"
	// ackBody is returned to Telegram for every webhook call, immediately,
	// while the update is handled on its own goroutine.
	ackBody = "ok"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// UpdateHandler consumes one decoded update.
type UpdateHandler interface {
	Handle(ctx context.Context, u tele.Update)
}

type Server struct {
	cfg     Config
	handler UpdateHandler
	log     logx.Logger

	srv *http.Server
	ln  net.Listener
}

// New builds the router. The webhook path's final segment is the bot token,
// which is the only authentication on the endpoint: a request to any other
// path simply 404s.
func New(cfg Config, token string, h UpdateHandler, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{cfg: cfg, handler: h, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/"+token, s.handleWebhook).Methods(http.MethodPost)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start binds the listener (surfacing bind errors synchronously) and serves
// in the background.
func (s *Server) Start(ctx context.Context) error {
	_ = ctx
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped", logx.Err(err))
		}
	}()
	s.log.Info("webhook server listening", logx.String("addr", s.cfg.Addr))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(indexBody))
}

// handleWebhook acknowledges every request with a fixed body and hands the
// update off without waiting on it. A payload that doesn't decode is logged
// and still acknowledged: Telegram retries on non-2xx, and a malformed
// update would never become well-formed.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var u tele.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		s.log.Debug("malformed webhook payload", logx.Err(err))
	} else if s.handler != nil {
		go s.handler.Handle(context.Background(), u)
	}
	_, _ = w.Write([]byte(ackBody))
}
