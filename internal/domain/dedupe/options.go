package dedupe

import "github.com/okian/scorefix/pkg/logger"

// Option applies a configuration option to the Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for scan progress and warnings.
func WithLogger(l logger.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}
