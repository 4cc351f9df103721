package service

import (
	"time"

	repository "github.com/okian/scorefix/internal/adapters/repository"
	"github.com/okian/scorefix/pkg/logger"
	"github.com/okian/scorefix/pkg/metrics"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the collection to reconcile.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDryRun plans merges without writing.
func WithDryRun(dryRun bool) Option {
	return func(s *Service) {
		s.dryRun = dryRun
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(s *Service) {
		s.runID = id
	}
}

// WithMetricsTextfile exports metrics to path after every run.
func WithMetricsTextfile(path string) Option {
	return func(s *Service) {
		s.textfile = path
	}
}

// WithClock overrides the clock used for elapsed time.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}
