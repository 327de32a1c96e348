package app

import "github.com/specialistvlad/flowcanvas/internal/config"

// Config holds what the command line passes to an App.
type Config struct {
	// ConfigPaths are HCL files or directories. Missing paths are skipped.
	ConfigPaths []string
	// Overrides take precedence over the files.
	Overrides config.Overrides
}
