package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
)

const DefaultCompletionSpec = "@every 1h"

var ErrAlreadyStarted = errors.New("schedule: scheduler already started")

// Scheduler runs the completion sweep on a cron spec.
type Scheduler struct {
	Commands commands.Bus
	Spec     string
	Logger   *slog.Logger
	Now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	lastRun time.Time
}

// Start registers the sweep and starts the cron loop. Jobs run with ctx and
// a sweep still in progress makes the next tick a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyStarted
	}
	spec := s.Spec
	if spec == "" {
		spec = DefaultCompletionSpec
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	entry, err := c.AddFunc(spec, func() {
		if _, err := s.RunNow(ctx); err != nil && s.Logger != nil {
			s.Logger.Error("completion sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron = c
	s.entry = entry
	c.Start()
	if s.Logger != nil {
		s.Logger.Info("completion sweep scheduled", "spec", spec, "next", c.Entry(entry).Next)
	}
	return nil
}

// Stop waits for a running sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// RunNow performs one sweep immediately.
func (s *Scheduler) RunNow(ctx context.Context) (*dto.CompletionReport, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	report, err := commands.Dispatch[bookingapp.CompleteFinishedStaysCommand, *dto.CompletionReport](ctx, s.Commands, bookingapp.CompleteFinishedStaysCommand{Now: now})
	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return report, err
}

func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
