package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/specforge/specforge/internal/logging"
)

// errNoProject indicates the walk-up found no directory carrying a
// .specforge marker.
var errNoProject = errors.New("no specforge project found")

// projectDirName is the project-local configuration directory.
const projectDirName = ".specforge"

// ResolveProjectDir determines the project-local .specforge directory path.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. SPECFORGE_PROJECT_DIR env var
//  3. walk-up from startDir for a directory containing .specforge/
//
// Returns the path to $PROJECT/.specforge/ or empty string if no project
// found. Does NOT create the directory (read-only operation). Returned
// path is always absolute (or empty).
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv("SPECFORGE_PROJECT_DIR"); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	projectRoot, err := findProjectRoot(startDir)
	if err != nil {
		if !errors.Is(err, errNoProject) {
			logger := logging.FromContext(ctx)
			logger.Warn().
				Str("component", "config").
				Err(err).
				Str("start_dir", startDir).
				Msg("unexpected error during project discovery")
		}
		return ""
	}

	return toAbsProjectDir(ctx, projectRoot)
}

// NewWithProjectDir creates a Config by loading global config then
// shallow-merging project-local config on top. If projectDir is empty,
// behaves identically to New().
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	cfg := New()

	if projectDir == "" {
		return cfg
	}

	overlayPath := filepath.Join(projectDir, "config.yaml")
	if _, err := os.Stat(overlayPath); err != nil {
		// Missing project config is not an error, use global defaults.
		return cfg
	}

	cfgCopy := New()
	if err := ShallowMergeYAML(cfgCopy, overlayPath); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Str("operation", "merge_project_config").
			Err(err).
			Str("overlay_path", overlayPath).
			Msg("failed to merge project config, using global defaults")
		return cfg
	}

	return cfgCopy
}

// findProjectRoot walks up from startDir looking for a directory that
// contains a .specforge directory. Returns errNoProject when the walk
// reaches the filesystem root without a match.
func findProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		marker := filepath.Join(dir, projectDirName)
		info, statErr := os.Stat(marker)
		if statErr == nil && info.IsDir() {
			return dir, nil
		}
		if statErr != nil && !os.IsNotExist(statErr) {
			return "", statErr
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNoProject
		}
		dir = parent
	}
}

// toAbsProjectDir converts dir to an absolute path and appends ".specforge".
// If the path already ends with ".specforge", it is returned as-is (after
// resolving to an absolute path) to prevent double-append.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == projectDirName {
		return abs
	}

	return filepath.Join(abs, projectDirName)
}
