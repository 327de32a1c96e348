package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files or directories and
	// returns the merged, defaulted model. A path that doesn't exist is
	// skipped; no path at all yields Default.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
