// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance: audit retention and rate
// limiter cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/siteflow/internal/metrics"
)

// Job names.
const (
	JobAuditPurge     = "audit_purge"
	JobRateLimitSweep = "ratelimit_sweep"
)

// Defaults.
const (
	DefaultPurgeSchedule = "30 3 * * *"
	DefaultSweepSchedule = "@every 10m"
	jobTimeout           = 5 * time.Minute
)

// AuditPurger deletes audit rows created before cutoff.
type AuditPurger interface {
	PurgeAuditLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper drops expired rate limiter entries.
type Sweeper interface {
	Sweep() int
}

// Sweepers runs several sweepers as one.
type Sweepers []Sweeper

// Sweep implements Sweeper.
func (s Sweepers) Sweep() int {
	n := 0
	for _, sw := range s {
		n += sw.Sweep()
	}
	return n
}

// Options configures the jobs. A zero Retention disables audit purging.
type Options struct {
	PurgeSchedule string
	Retention     time.Duration
	SweepSchedule string
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
}

type job struct {
	name     string
	schedule string
	entryID  cron.EntryID
	run      func(context.Context) error
}

// Scheduler owns the cron instance and its jobs.
type Scheduler struct {
	purger  AuditPurger
	sweeper Sweeper
	opts    Options
	cron    *cron.Cron
	logger  *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*job
}

// New creates a new scheduler instance. purger or sweeper may be nil to skip
// their job.
func New(purger AuditPurger, sweeper Sweeper, logger *slog.Logger, opts Options) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PurgeSchedule == "" {
		opts.PurgeSchedule = DefaultPurgeSchedule
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = DefaultSweepSchedule
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		purger:  purger,
		sweeper: sweeper,
		opts:    opts,
		cron:    cron.New(),
		logger:  logger,
		jobs:    make(map[string]*job),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.purger != nil && s.opts.Retention > 0 {
		if err := s.register(JobAuditPurge, s.opts.PurgeSchedule, s.purgeAuditLogs); err != nil {
			return err
		}
	}
	if s.sweeper != nil {
		if err := s.register(JobRateLimitSweep, s.opts.SweepSchedule, s.sweepRateLimits); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) register(name, schedule string, run func(context.Context) error) error {
	j := &job{name: name, schedule: schedule, run: run}
	id, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling %s %q: %w", name, schedule, err)
	}
	j.entryID = id

	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()
	s.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

// List returns the registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		out = append(out, JobInfo{
			Name:     j.name,
			Schedule: j.schedule,
			LastRun:  entry.Prev,
			NextRun:  entry.Next,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// TriggerNow runs a registered job immediately.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	s.logger.Info("manually triggering job", "name", name)
	return j.run(ctx)
}

func (s *Scheduler) purgeAuditLogs(ctx context.Context) error {
	cutoff := s.opts.Now().Add(-s.opts.Retention)
	n, err := s.purger.PurgeAuditLogs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purging audit logs: %w", err)
	}
	s.opts.Metrics.AuditPurged(n)
	if n > 0 {
		s.logger.Info("purged audit logs", "rows", n, "cutoff", cutoff)
	}
	return nil
}

func (s *Scheduler) sweepRateLimits(context.Context) error {
	n := s.sweeper.Sweep()
	s.opts.Metrics.Swept(n)
	if n > 0 {
		s.logger.Debug("swept rate limit entries", "entries", n)
	}
	return nil
}
