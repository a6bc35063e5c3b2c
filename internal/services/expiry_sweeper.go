// internal/services/expiry_sweeper.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cubitdynamics/cubit-backend/internal/metrics"
)

const sweepTimeout = 5 * time.Minute

// LicenseExpirer flips overdue licenses to expired.
type LicenseExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// ExpirySweeper runs LicenseExpirer on a cron schedule so licenses expire
// even when no client application checks in.
type ExpirySweeper struct {
	expirer LicenseExpirer
	cron    *cron.Cron
	spec    string
	metrics *metrics.Recorder
}

// NewExpirySweeper parses spec (standard five-field cron or a descriptor such
// as @daily) in loc.
func NewExpirySweeper(expirer LicenseExpirer, spec string, loc *time.Location, recorder *metrics.Recorder) (*ExpirySweeper, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &ExpirySweeper{
		expirer: expirer,
		spec:    spec,
		metrics: recorder,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cron.PrintfLogger(logrus.StandardLogger())),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("failed to parse expiry sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *ExpirySweeper) Start() {
	s.cron.Start()
	logrus.WithField("schedule", s.spec).Info("License expiry sweep scheduled")
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *ExpirySweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("License expiry sweep still running at shutdown")
	}
}

// RunOnce performs a single sweep.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.expirer.ExpireOverdue(ctx)
	s.metrics.SweepRun(err)

	log := logrus.WithFields(logrus.Fields{
		"expired":  n,
		"duration": time.Since(start).Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Error("License expiry sweep failed")
		return n, err
	}
	log.Info("License expiry sweep completed")
	return n, nil
}

func (s *ExpirySweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	s.RunOnce(ctx)
}
