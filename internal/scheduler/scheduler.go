// Package scheduler triggers periodic library scans on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/diettube/diettube/internal/scanner"
)

// ScanRunner is the scan surface the scheduler drives.
type ScanRunner interface {
	Scan(ctx context.Context) (*scanner.Result, error)
}

// Scheduler runs the scanner on a cron expression.
type Scheduler struct {
	runner ScanRunner
	cron   *cron.Cron
	log    *slog.Logger
}

// New creates a scheduler for the given cron expression (standard 5-field
// syntax). An empty expression disables scheduled scans.
func New(runner ScanRunner, expr string, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		log:    log.With("component", "scheduler"),
	}
	if expr == "" {
		return s, nil
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	if _, err := c.AddFunc(expr, s.runScan); err != nil {
		return nil, fmt.Errorf("invalid scan schedule %q: %w", expr, err)
	}
	s.cron = c
	return s, nil
}

// Start begins firing scheduled scans. A nil receiver schedule is a no-op.
func (s *Scheduler) Start() {
	if s.cron == nil {
		s.log.Info("scheduled scans disabled")
		return
	}
	s.cron.Start()
	s.log.Info("scheduled scans started")
}

// Stop halts the schedule and waits for a running trigger to return.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("scheduled scans stopped")
}

func (s *Scheduler) runScan() {
	if _, err := s.runner.Scan(context.Background()); err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			s.log.Debug("scheduled scan skipped, one already running")
			return
		}
		s.log.Error("scheduled scan failed", "error", err)
	}
}
