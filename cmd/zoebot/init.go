package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/isitzoe/zoebot/internal/defaults"
)

// runInit sets up a working directory: the data dir plus an example
// config the user fills in before the first run.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing zoebot workspace in %s\n", dir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, defaults.ConfigYAML); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	fmt.Fprintln(w, "Edit config.yaml, then run: zoebot")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}
