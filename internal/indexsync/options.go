package indexsync

import (
	"time"

	"github.com/capstone/vsl/internal/config"
)

// Options tunes the synchronizer. Zero fields take the defaults below.
type Options struct {
	Workers           int
	QueueCapacity     int
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	ReconcileInterval time.Duration
	ReconcileBatch    int
	// ReconcileRate caps enqueues per second during a reconciliation pass.
	ReconcileRate float64
	SearchLimit   int
}

func DefaultOptions() Options {
	return Options{
		Workers:           2,
		QueueCapacity:     100,
		MaxAttempts:       5,
		BackoffBase:       time.Second,
		BackoffMax:        30 * time.Second,
		ReconcileInterval: 5 * time.Minute,
		ReconcileBatch:    500,
		ReconcileRate:     50,
		SearchLimit:       50,
	}
}

// OptionsFromConfig maps the sync section of the application config.
func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		Workers:           cfg.Workers,
		QueueCapacity:     cfg.QueueCapacity,
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.BackoffBase,
		BackoffMax:        cfg.BackoffMax,
		ReconcileInterval: cfg.ReconcileInterval,
		ReconcileBatch:    cfg.ReconcileBatch,
		ReconcileRate:     cfg.ReconcileRate,
		SearchLimit:       cfg.SearchLimit,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = d.QueueCapacity
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = d.BackoffMax
	}
	if o.BackoffMax < o.BackoffBase {
		o.BackoffMax = o.BackoffBase
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = d.ReconcileInterval
	}
	if o.ReconcileBatch <= 0 {
		o.ReconcileBatch = d.ReconcileBatch
	}
	if o.ReconcileRate <= 0 {
		o.ReconcileRate = d.ReconcileRate
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = d.SearchLimit
	}
	return o
}

// backoff returns the delay before retry number attempt (1-based):
// BackoffBase doubled per attempt, capped at BackoffMax.
func (o Options) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := o.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.BackoffMax || delay <= 0 {
			return o.BackoffMax
		}
	}
	return min(delay, o.BackoffMax)
}
