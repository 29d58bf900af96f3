package usecase

import (
	"context"
	"log/slog"
	"time"

	"DailyPodcast/internal/ports"
)

// Scheduler wires the cron-like driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	location *time.Location
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs. Each trigger
// runs the pipeline for the calendar date of the trigger in location.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, location *time.Location, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, location: location, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.RunFor(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// RunFor executes one scheduled run without force.
func (s *Scheduler) RunFor(ctx context.Context, trigger time.Time) {
	local := trigger.In(s.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	outcome, err := s.pipeline.Run(ctx, RunRequest{Date: day})
	if err != nil {
		s.logger.Error("scheduled run failed", "date", day.Format(DateLayout), "stage", outcome.Stage, "error", err)
		return
	}
	s.logger.Info("scheduled run finished", "date", day.Format(DateLayout), "status", outcome.Status)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
