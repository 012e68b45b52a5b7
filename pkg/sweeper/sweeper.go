// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AccelByte/extend-playthrough-rules/pkg/metrics"
	"github.com/AccelByte/extend-playthrough-rules/pkg/scheduler"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSpec runs the sweep every ten seconds.
const DefaultSpec = "*/10 * * * * *"

var specParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a valid sweep schedule.
func ValidateSpec(spec string) error {
	_, err := specParser.Parse(spec)
	return err
}

// Target is the part of the scheduler the sweeper drives.
type Target interface {
	ListOpen(ctx context.Context) ([]string, error)
	SettleExpired(ctx context.Context, playthroughID string) (int, error)
	Drain(ctx context.Context, playthroughID string, limit int) ([]*scheduler.Outcome, error)
}

// Report summarises one sweep.
type Report struct {
	Playthroughs int
	Settled      int
	Activated    int
	Failed       int
}

// Sweeper periodically settles naturally ended rule instances and drains
// the queues of open playthroughs. Lazy expiry stays authoritative; the
// sweeper only moves work ahead of the next request.
type Sweeper struct {
	target     Target
	spec       string
	drainLimit int

	mu sync.Mutex
	c  *cron.Cron
}

// New creates a sweeper running on the cron spec (seconds field optional).
func New(target Target, spec string) *Sweeper {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Sweeper{
		target:     target,
		spec:       spec,
		drainLimit: 1,
	}
}

// RunOnce sweeps every open playthrough. Errors of one playthrough do not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	var report Report
	ids, err := s.target.ListOpen(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list open playthroughs: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Playthroughs++

		settled, err := s.target.SettleExpired(ctx, id)
		if err != nil {
			logrus.Warnf("sweep: failed to settle playthrough %s: %v", id, err)
			report.Failed++
			continue
		}
		report.Settled += settled

		outcomes, err := s.target.Drain(ctx, id, s.drainLimit)
		if err != nil {
			logrus.Warnf("sweep: failed to drain queue of playthrough %s: %v", id, err)
			report.Failed++
			continue
		}
		for _, o := range outcomes {
			if o.Result == scheduler.ResultActivated {
				report.Activated++
			}
		}
	}

	logrus.Debugf("sweep finished: %d playthroughs, %d settled, %d activated, %d failed",
		report.Playthroughs, report.Settled, report.Activated, report.Failed)
	return report, nil
}

// Start schedules RunOnce on the cron spec until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(
		cron.WithParser(specParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger()))),
	)
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			logrus.Errorf("sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep spec %q: %w", s.spec, err)
	}

	c.Start()
	s.c = c
	logrus.Infof("expiry sweeper started (%s)", s.spec)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	logrus.Info("expiry sweeper stopped")
}
