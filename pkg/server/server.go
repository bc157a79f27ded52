// Package server serves the dashboard page, the websocket that drives a
// session's reactive controller and a stateless render API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/sudorandom/gapdash/pkg/chart"
	"github.com/sudorandom/gapdash/pkg/reactive"
)

type Server struct {
	log *slog.Logger
	cfg Config

	sessions *Sessions
	handler  *Handler

	httpSrv      *http.Server
	shutdownOnce sync.Once
}

func New(log *slog.Logger, cfg Config) (*Server, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{log: log, cfg: cfg}
	s.sessions = NewSessions(log, cfg.SessionTTL, func() (*reactive.Controller, error) {
		return s.newController(nil)
	})
	h, err := NewHandler(log, cfg, s.sessions, s.newController)
	if err != nil {
		return nil, err
	}
	s.handler = h
	return s, nil
}

// newController builds a controller at the configured defaults, overridden by
// values in wire form.
func (s *Server) newController(values map[reactive.Input]string) (*reactive.Controller, error) {
	d := s.cfg.Dashboard
	return reactive.New(reactive.Config{
		Table: s.cfg.Table,
		Chart: s.cfg.Chart,
		Years: d.YearChoices(),
		Initial: reactive.State{
			Metric:   chart.Metric(d.Defaults.Metric),
			Year:     d.Years.Default,
			RankMode: chart.RankMode(d.Defaults.RankMode),
		},
		InitialValues: values,
		Logger:        s.log,
	})
}

// Handler returns the routes without starting a listener.
// CacheNamespace is the render cache prefix for this server's dataset and
// chart options.
func (s *Server) CacheNamespace() string { return s.handler.namespace }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.handler.Register(mux)
	return instrument(mux)
}

func (s *Server) Start(ctx context.Context, cancel context.CancelFunc, listener net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go s.sessions.Start()

	go func() {
		defer close(errCh)
		defer cancel()
		defer s.sessions.Stop()
		if err := s.Serve(ctx, listener); err != nil {
			s.log.Error("server exited with error", "error", err)
			errCh <- err
		} else {
			s.log.Info("server stopped")
		}
	}()

	return errCh
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpSrv = &http.Server{Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	s.log.Info("serving dashboard", "addr", listener.Addr().String())
	err := s.httpSrv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) shutdown() {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if s.httpSrv != nil {
			_ = s.httpSrv.Shutdown(ctx)
		}
	})
}
