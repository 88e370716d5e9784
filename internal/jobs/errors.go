package jobs

import (
	"fmt"

	"clipforge/internal/services"
)

var (
	ErrJobNotFound       = fmt.Errorf("%w: job not found", services.ErrNotFound)
	ErrJobNotCompleted   = fmt.Errorf("%w: job not completed", services.ErrConflict)
	ErrBundleUnavailable = fmt.Errorf("%w: bundle not available", services.ErrConflict)
)
