// Package cron runs periodic maintenance for the serve command, such as
// refreshing the knowledge base from disk and flushing metrics textfiles.
package cron

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier for this job.
	Name() string

	// Schedule returns a standard 5-field cron expression or a descriptor
	// such as "@hourly".
	Schedule() string

	// Run executes the job. Implementations should honour ctx cancellation.
	Run(ctx context.Context) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether expr is accepted by the scheduler.
func ValidateSchedule(expr string) error {
	_, err := parser.Parse(expr)
	return err
}
