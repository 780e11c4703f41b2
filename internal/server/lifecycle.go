// Package server runs the process's long-lived services and shuts them down in order.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks until the service stops or fails;
// Stop must make Start return and respect ctx's deadline.
type Service interface {
	Start() error
	Stop(ctx context.Context) error
}

// Lifecycle starts named services in registration order and stops them in reverse order on
// SIGINT, SIGTERM, context cancellation or the first service failure.
type Lifecycle struct {
	logger      *zap.Logger
	stopTimeout time.Duration

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a Lifecycle. stopTimeout bounds each service's Stop.
//
// Precondition: logger must be non-nil; stopTimeout must be > 0.
func NewLifecycle(logger *zap.Logger, stopTimeout time.Duration) *Lifecycle {
	return &Lifecycle{logger: logger, stopTimeout: stopTimeout}
}

// Add registers svc under name.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every service and blocks until shutdown is triggered.
//
// Postcondition: every service has been stopped. Returns the first service failure, if any,
// joined with any Stop errors.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	for _, ns := range services {
		go func() {
			l.logger.Info("starting service", zap.String("service", ns.name))
			if err := ns.service.Start(); err != nil {
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}()
	}
	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
		l.logger.Error("service failed, shutting down", zap.Error(err))
	case <-ctx.Done():
		l.logger.Info("shutdown requested", zap.NamedError("cause", context.Cause(ctx)))
	}

	stopErr := l.shutdown(services)
	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(start)))
	return errors.Join(runErr, stopErr)
}

func (l *Lifecycle) shutdown(services []namedService) error {
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		began := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), l.stopTimeout)
		err := ns.service.Stop(ctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stopping %s: %w", ns.name, err))
			l.logger.Warn("service stop failed", zap.String("service", ns.name), zap.Error(err))
			continue
		}
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(began)),
		)
	}
	return errors.Join(errs...)
}
