// Package events captures case events and serves timelines, feeds and read
// receipts. When the event tables are missing it keeps working from an
// in-memory buffer.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/case-events/internal/observability"
	"github.com/upb/case-events/models"
	"github.com/upb/case-events/repositories"
	"github.com/upb/case-events/repositories/memory"
	"github.com/upb/case-events/services"
	"go.uber.org/zap"
)

// Policy decides whether an event type is captured
type Policy interface {
	IsCaptureEnabled(ctx context.Context, categoryID, typeID string, catalogType *models.EventType) bool
	Invalidate()
}

// Backend is the persistence the service writes through
type Backend struct {
	Events repositories.EventRepository
	Users  repositories.UserRepository // optional, used to resolve actor names at emit time
}

// Config holds configuration for the Service
type Config struct {
	BufferSize    int
	DefaultLimit  int
	MaxLimit      int
	CapturedBy    string
	HookTimeout   time.Duration
	HookWorkers   int
	HookQueueSize int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    memory.DefaultCapacity,
		DefaultLimit:  50,
		MaxLimit:      200,
		CapturedBy:    "case-events",
		HookTimeout:   5 * time.Second,
		HookWorkers:   2,
		HookQueueSize: 1000,
	}
}

// Status describes the service's storage mode
type Status struct {
	Registered bool  `json:"registered"`
	Degraded   bool  `json:"degraded"`
	Buffered   int   `json:"buffered"`
	Dropped    int64 `json:"dropped"`
}

// Service is the event capture engine. Construct it once at startup and
// Register a backend before use.
type Service struct {
	mu      sync.RWMutex
	backend *Backend
	hooks   *hookDispatcher

	policy   Policy
	buffer   *memory.EventBuffer
	cfg      Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	degraded atomic.Bool
}

// NewService creates an unregistered service
func NewService(policy Policy, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Service {
	def := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.CapturedBy == "" {
		cfg.CapturedBy = def.CapturedBy
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = def.HookTimeout
	}
	if cfg.HookWorkers <= 0 {
		cfg.HookWorkers = def.HookWorkers
	}
	if cfg.HookQueueSize <= 0 {
		cfg.HookQueueSize = def.HookQueueSize
	}

	return &Service{
		policy:  policy,
		buffer:  memory.NewEventBuffer(cfg.BufferSize),
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register attaches the persistence backend. Registering again is
// allowed but logged, and behaves like Reconfigure.
func (s *Service) Register(backend Backend) {
	s.mu.Lock()
	already := s.backend != nil
	if !already {
		s.backend = &backend
	}
	s.mu.Unlock()

	if already {
		s.Reconfigure(backend)
		return
	}
	s.logger.Info("event store registered")
}

// Reconfigure replaces the registered backend
func (s *Service) Reconfigure(backend Backend) {
	s.mu.Lock()
	s.backend = &backend
	s.mu.Unlock()
	s.degraded.Store(false)
	s.logger.Warn("event store re-registered, replacing previous backend")
}

func (s *Service) registered() (*Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil || s.backend.Events == nil {
		return nil, services.ErrBackendNotRegistered
	}
	return s.backend, nil
}

// SetHook installs the notification hook, replacing any previous one.
// Hooks run on background workers and never delay Emit.
func (s *Service) SetHook(hook Hook) {
	var next *hookDispatcher
	if hook != nil {
		next = newHookDispatcher(hook, s.cfg.HookWorkers, s.cfg.HookQueueSize, s.cfg.HookTimeout, s.logger, s.metrics)
		next.Start()
	}

	s.mu.Lock()
	prev := s.hooks
	s.hooks = next
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(s.cfg.HookTimeout); err != nil {
			s.logger.Warn("previous notification hook did not drain", zap.Error(err))
		}
	}
}

// Close drains pending hook invocations
func (s *Service) Close(timeout time.Duration) error {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	if hooks == nil {
		return nil
	}
	return hooks.Stop(timeout)
}

// InvalidateCaptureCache forces the next eligibility check to reload policy
func (s *Service) InvalidateCaptureCache() {
	s.policy.Invalidate()
}

// Buffer exposes the in-memory event buffer
func (s *Service) Buffer() *memory.EventBuffer {
	return s.buffer
}

// Status reports registration and degraded mode
func (s *Service) Status() Status {
	s.mu.RLock()
	registered := s.backend != nil
	s.mu.RUnlock()
	return Status{
		Registered: registered,
		Degraded:   s.degraded.Load(),
		Buffered:   s.buffer.Len(),
		Dropped:    s.buffer.Dropped(),
	}
}

// fallback logs and records a switch to the memory buffer
func (s *Service) fallback(operation string, err error) {
	if !s.degraded.Swap(true) {
		s.logger.Warn("event tables missing, serving from memory", zap.String("operation", operation), zap.Error(err))
	}
	s.metrics.DegradedOp(operation)
}

func (s *Service) healthy() {
	if s.degraded.Swap(false) {
		s.logger.Info("event tables available again")
	}
}
