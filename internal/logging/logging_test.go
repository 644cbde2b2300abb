package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupWritesToRotatedFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})
	path := filepath.Join(t.TempDir(), "smartgriev.log")

	closer, err := Setup(Options{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	log.WithField("complaint", "c-1").Info("escalated")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"complaint":"c-1"`) {
		t.Fatalf("expected json field in log file, got %s", data)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}
}

func TestSetupRejectsUnknownLevelAndFormat(t *testing.T) {
	if _, err := Setup(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := Setup(Options{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
