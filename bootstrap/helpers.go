package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"vigia/config"
)

// EnsureDataDirectories creates the data directory and the database
// parent directory with proper permissions, and verifies they are
// writable. Runs before any storage initialization.
func EnsureDataDirectories(cfg *config.Config, sugar *zap.SugaredLogger) error {
	dirs := []string{cfg.GetDataDir(), filepath.Dir(cfg.GetSQLitePath())}

	seen := map[string]bool{}
	for _, dir := range dirs {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve absolute path for %s: %w", dir, err)
		}
		if seen[absPath] {
			continue
		}
		seen[absPath] = true

		if err := os.MkdirAll(absPath, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", absPath, err)
		}

		testFile := filepath.Join(absPath, ".vigia_write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			return fmt.Errorf("directory %s is not writable: %w", absPath, err)
		}
		os.Remove(testFile)

		sugar.Infow("Data directory ready", "path", absPath)
	}

	return nil
}
