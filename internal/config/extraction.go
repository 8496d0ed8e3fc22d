package config

import "runtime"

// ExtractionConfig controls source discovery and case extraction.
type ExtractionConfig struct {
	// Workers caps concurrent file extractions.
	Workers int `yaml:"workers"`
	// Extensions selects the files to extract: ".cs" goes through tree-sitter,
	// ".yaml"/".yml" are read as syntax dumps.
	Extensions []string `yaml:"extensions"`
	// IgnorePatterns skips matching directory names and file globs.
	IgnorePatterns []string `yaml:"ignore_patterns"`
	// MaxFileBytes skips larger files.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	// FailFast stops a switch at its first unsupported label.
	FailFast bool `yaml:"fail_fast"`
	// WatchDebounce coalesces bursts of file events.
	WatchDebounce string `yaml:"watch_debounce"`
}

// DefaultExtractionConfig returns defaults for extraction.
func DefaultExtractionConfig() ExtractionConfig {
	workers := runtime.NumCPU()
	if workers > 16 {
		workers = 16
	}
	if workers < 2 {
		workers = 2
	}
	return ExtractionConfig{
		Workers:    workers,
		Extensions: []string{".cs"},
		IgnorePatterns: []string{
			".git",
			".switchfacts",
			"bin",
			"obj",
			"node_modules",
			"packages",
			".vs",
			"*.g.cs",
			"*.Designer.cs",
		},
		MaxFileBytes:  4 * 1024 * 1024,
		WatchDebounce: "200ms",
	}
}
