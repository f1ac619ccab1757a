// Package schedule submits recurring engine maintenance work through an
// executor service on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/tarndb/tarn/internal/executor"
)

// Sentinel errors for job registration
var (
	// ErrDuplicateJob indicates the job name is already registered
	ErrDuplicateJob = errors.New("job name already registered")

	// ErrJobNotFound indicates no job is registered under the name
	ErrJobNotFound = errors.New("job not found")
)

// Scheduler registers named cron jobs whose bodies are submitted through
// an executor service on each trigger, so scheduled work runs on the
// service's backend alongside regular tasks.
//
// A Scheduler is safe for concurrent use.
type Scheduler struct {
	// svc receives the job bodies on each trigger
	svc *executor.Service

	// cron drives the triggers
	cron *cron.Cron

	// logger for structured logging
	logger *slog.Logger

	// mu protects jobs
	mu sync.Mutex

	// jobs maps job name to its cron entry
	jobs map[string]cron.EntryID
}

// NewScheduler creates a scheduler that submits through svc. A nil
// logger falls back to slog.Default.
func NewScheduler(svc *executor.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		svc:    svc,
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Add registers a named job. The expression is a standard 5-field cron
// spec or a descriptor such as "@every 30s"; invalid expressions and
// duplicate names are rejected. On each trigger the body is submitted
// through the service, fire-and-forget.
func (s *Scheduler) Add(name, cronExpr string, fn func(ctx context.Context) error) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return 0, fmt.Errorf("job %q: %w", name, ErrDuplicateJob)
	}

	id, err := s.cron.AddFunc(cronExpr, func() {
		s.logger.Debug("scheduled job triggered", "job", name, "schedule", cronExpr)
		s.svc.Execute(context.Background(), fn)
	})
	if err != nil {
		return 0, fmt.Errorf("job %q: invalid schedule %q: %w", name, cronExpr, err)
	}

	s.jobs[name] = id
	s.logger.Info("scheduled job registered", "job", name, "schedule", cronExpr)

	return id, nil
}

// Remove unregisters a named job. Triggers already submitted keep
// running; no further triggers fire.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %q: %w", name, ErrJobNotFound)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	s.logger.Info("scheduled job removed", "job", name)

	return nil
}

// Entries returns the registered job names
func (s *Scheduler) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}

	return names
}

// Start begins firing triggers. Safe to call once.
func (s *Scheduler) Start() {
	s.logger.Debug("scheduler started")
	s.cron.Start()
}

// Stop stops firing triggers and waits for in-progress trigger
// callbacks. Bodies already handed to the service keep running on its
// backend.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Debug("scheduler stopped")
}
