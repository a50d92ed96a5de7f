package workers

import (
	"context"
	"time"

	"github.com/sand/chain-compliance/backend/internal/usecases"
)

// Job names
const (
	JobReferenceResync      = "reference-resync"
	JobTransactionScreening = "transaction-screening"
)

// JobConfig is the schedule of one job.
type JobConfig struct {
	Schedule     string
	LockDuration time.Duration
	Enabled      bool
}

// ScreeningRunner runs one screening sweep.
type ScreeningRunner interface {
	RunSweep(ctx context.Context) (*usecases.SweepSummary, error)
}

// ResyncRunner replaces the reference tables.
type ResyncRunner interface {
	Run(ctx context.Context) error
}

// NewReferenceResyncJob refreshes the jurisdiction risk table.
func NewReferenceResyncJob(cfg JobConfig, resync ResyncRunner) Job {
	return Job{
		Name:         JobReferenceResync,
		Schedule:     cfg.Schedule,
		LockKey:      "job:" + JobReferenceResync,
		LockDuration: cfg.LockDuration,
		Enabled:      cfg.Enabled,
		Run:          resync.Run,
	}
}

// NewTransactionScreeningJob runs a screening sweep over all monitored addresses.
func NewTransactionScreeningJob(cfg JobConfig, screening ScreeningRunner) Job {
	return Job{
		Name:         JobTransactionScreening,
		Schedule:     cfg.Schedule,
		LockKey:      "job:" + JobTransactionScreening,
		LockDuration: cfg.LockDuration,
		Enabled:      cfg.Enabled,
		Run: func(ctx context.Context) error {
			_, err := screening.RunSweep(ctx)
			return err
		},
	}
}
