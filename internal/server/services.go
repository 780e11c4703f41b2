package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
)

// HTTPService runs an http.Server.
type HTTPService struct {
	Server *http.Server
}

// Start listens on Server.Addr until Stop is called.
func (s *HTTPService) Start() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *HTTPService) Stop(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// GRPCService runs a grpc.Server on Addr.
type GRPCService struct {
	Server *grpc.Server
	Addr   string
}

// Start listens on Addr until Stop is called.
func (s *GRPCService) Start() error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Server.Serve(lis)
}

// Stop stops gracefully, forcing the stop when ctx expires.
func (s *GRPCService) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Server.Stop()
		return ctx.Err()
	}
}

// TickerService calls Fn every Interval until stopped.
type TickerService struct {
	Interval time.Duration
	Fn       func(ctx context.Context)

	once   sync.Once
	cancel context.CancelFunc
	ctx    context.Context
	done   chan struct{}
}

func (s *TickerService) init() {
	s.once.Do(func() {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.done = make(chan struct{})
	})
}

// Start runs the loop. It returns nil once stopped.
func (s *TickerService) Start() error {
	s.init()
	defer close(s.done)
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-t.C:
			s.Fn(s.ctx)
		}
	}
}

// Stop cancels the loop and waits for the in-flight call.
func (s *TickerService) Stop(ctx context.Context) error {
	s.init()
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
