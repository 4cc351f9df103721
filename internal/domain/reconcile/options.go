package reconcile

import (
	"github.com/okian/scorefix/pkg/logger"
	"github.com/okian/scorefix/pkg/metrics"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics manager; the global one is used otherwise.
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithDryRun plans merges without writing or deleting anything.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) {
		r.dryRun = dryRun
	}
}
