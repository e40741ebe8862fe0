package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInitFreshDirectory(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("data is not a directory")
	}

	cfg, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if !strings.Contains(string(cfg), "slack:") {
		t.Error("config.yaml missing slack section")
	}

	out := buf.String()
	if !strings.Contains(out, "config.yaml") {
		t.Errorf("output missing config.yaml: %q", out)
	}
}

func TestRunInitSkipsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	sentinel := []byte("# customized\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), sentinel, 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("read config.yaml: %v", err)
	}
	if !bytes.Equal(got, sentinel) {
		t.Errorf("config.yaml was overwritten: %q", got)
	}
}

func TestRunVersionAndHelp(t *testing.T) {
	var buf bytes.Buffer
	if err := run(context.Background(), &buf, &buf, []string{"version"}); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(buf.String(), version) {
		t.Errorf("version output = %q, want it to contain %q", buf.String(), version)
	}

	buf.Reset()
	if err := run(context.Background(), &buf, &buf, []string{"-h"}); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(buf.String(), "usage:") {
		t.Errorf("help output = %q", buf.String())
	}

	if err := run(context.Background(), &buf, &buf, []string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown argument")
	}
}
