// Package service hosts a document adapter for one collection: it connects the store,
// runs an after-connected hook and exposes the adapter to the checks.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimburion/docprobe/pkg/config"
	"github.com/nimburion/docprobe/pkg/health"
	"github.com/nimburion/docprobe/pkg/observability/logger"
	"github.com/nimburion/docprobe/pkg/repository/document"
	"github.com/nimburion/docprobe/pkg/store"
)

// ErrNotStarted is returned when the adapter is used before Start.
var ErrNotStarted = errors.New("service not started")

// Hook runs once the adapter is connected, before any check executes.
type Hook func(ctx context.Context, adapter document.Adapter) error

// Options configures a Service.
type Options struct {
	Name       string
	Collection string
	// Store selects the backend through store.NewDocumentAdapter. Ignored when Adapter is set.
	Store config.StoreConfig
	// Adapter injects an already connected adapter.
	Adapter        document.Adapter
	AfterConnected Hook
}

// Service owns the lifecycle of one collection adapter.
type Service struct {
	Name       string
	Collection string

	opts    Options
	log     logger.Logger
	health  *health.Registry
	newDocs func(config.StoreConfig, logger.Logger) (document.Adapter, error)

	mu      sync.Mutex
	adapter document.Adapter
	stopped bool
}

// New creates a stopped service.
func New(opts Options, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Collection == "" {
		opts.Collection = opts.Store.Collection
	}
	opts.Store.Collection = opts.Collection
	return &Service{
		Name:       opts.Name,
		Collection: opts.Collection,
		opts:       opts,
		log:        log.With("service", opts.Name, "collection", opts.Collection),
		health:     health.NewRegistry(),
		newDocs:    store.NewDocumentAdapter,
	}
}

// Start connects the adapter and runs the after-connected hook. A hook error is
// returned and leaves the adapter open so Stop can release it.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter != nil {
		return fmt.Errorf("service %s already started", s.Name)
	}

	adapter := s.opts.Adapter
	storeType := s.opts.Store.Type
	if adapter == nil {
		var err error
		adapter, err = s.newDocs(s.opts.Store, s.log)
		if err != nil {
			return fmt.Errorf("connect %s store: %w", storeType, err)
		}
	}
	if storeType == "" {
		storeType = "injected"
	}
	s.adapter = adapter
	s.stopped = false
	s.health.Register(health.NewStoreChecker(storeType, adapter))
	s.log.Info("adapter connected", "store", storeType)

	if s.opts.AfterConnected != nil {
		if err := s.opts.AfterConnected(ctx, adapter); err != nil {
			s.log.Error("error in after-connected hook", "error", err)
			return fmt.Errorf("after-connected hook: %w", err)
		}
	}
	s.log.Info("service started")
	return nil
}

// Stop closes the adapter. Calling it more than once is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil || s.stopped {
		return nil
	}
	s.stopped = true
	if err := s.adapter.Close(); err != nil {
		return fmt.Errorf("close adapter: %w", err)
	}
	s.log.Info("service stopped")
	return nil
}

// Adapter returns the connected adapter, or nil before Start.
func (s *Service) Adapter() document.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Health checks the connected store.
func (s *Service) Health(ctx context.Context) (health.AggregatedResult, error) {
	if s.Adapter() == nil {
		return health.AggregatedResult{}, ErrNotStarted
	}
	return s.health.Check(ctx), nil
}
