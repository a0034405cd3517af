// Package server runs the process's long-lived services and the gRPC health
// endpoint that reports on them.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// defaultStopTimeout bounds how long shutdown waits on any one service.
const defaultStopTimeout = 10 * time.Second

// Service is a component that runs until stopped. Start blocks for the life of
// the service; Stop makes Start return.
type Service interface {
	Start() error
	Stop()
}

// FuncService builds a Service from a pair of closures.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start runs StartFn.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop runs StopFn.
func (f *FuncService) Stop() { f.StopFn() }

type entry struct {
	name string
	svc  Service
}

// Lifecycle owns the process's services. They start together and stop one
// at a time, last registered first, so later services can depend on earlier
// ones until the end.
type Lifecycle struct {
	mu          sync.Mutex
	entries     []entry
	logger      *zap.Logger
	stopTimeout time.Duration
}

// NewLifecycle returns an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger, stopTimeout: defaultStopTimeout}
}

// Add registers svc under name. Registration order is the dependency order.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{name: name, svc: svc})
}

// Run starts every service and waits for SIGINT, SIGTERM, cancellation of ctx
// or the first service failure. It then stops every service in reverse order.
//
// Postcondition: every registered service has had Stop called. The returned
// error is the first service failure, or nil for an orderly shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	runStart := time.Now()
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	l.mu.Lock()
	entries := append([]entry(nil), l.entries...)
	l.mu.Unlock()

	failed := make(chan error, len(entries))
	for _, e := range entries {
		go l.start(e, failed)
	}
	l.logger.Info("services started", zap.Int("count", len(entries)))

	var runErr error
	select {
	case runErr = <-failed:
		l.logger.Error("shutting down after service failure", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	}

	for i := len(entries) - 1; i >= 0; i-- {
		l.stop(entries[i])
	}
	l.logger.Info("shutdown complete", zap.Duration("uptime", time.Since(runStart)))
	return runErr
}

func (l *Lifecycle) start(e entry, failed chan<- error) {
	log := l.logger.With(zap.String("service", e.name))
	log.Info("starting service")
	began := time.Now()
	if err := e.svc.Start(); err != nil {
		log.Error("service failed", zap.Error(err), zap.Duration("uptime", time.Since(began)))
		failed <- fmt.Errorf("service %s: %w", e.name, err)
		return
	}
	log.Debug("service returned", zap.Duration("uptime", time.Since(began)))
}

// stop calls Stop on e and gives up waiting after stopTimeout. A Stop that
// overruns keeps running in the background.
func (l *Lifecycle) stop(e entry) {
	log := l.logger.With(zap.String("service", e.name))
	began := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.svc.Stop()
	}()

	timer := time.NewTimer(l.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		log.Info("service stopped", zap.Duration("elapsed", time.Since(began)))
	case <-timer.C:
		log.Warn("service did not stop in time", zap.Duration("timeout", l.stopTimeout))
	}
}
