package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	s := Open(path, nil)

	if err := s.Put("QUJD", "1111:9999"); err != nil {
		t.Fatalf("Put error=%v", err)
	}
	got, ok := s.Get("QUJD")
	if !ok || got != "1111:9999" {
		t.Fatalf("Get=%q,%v, want %q,true", got, ok, "1111:9999")
	}

	// A fresh instance loading the same file sees the entry.
	reloaded := Open(path, nil)
	got, ok = reloaded.Get("QUJD")
	if !ok || got != "1111:9999" {
		t.Fatalf("reloaded Get=%q,%v, want %q,true", got, ok, "1111:9999")
	}
}

func TestStore_PutWritesThroughImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	s := Open(path, nil)
	if err := s.Put("header-a", "aaaa:bbbb"); err != nil {
		t.Fatalf("Put error=%v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("store file not written: %v", err)
	}
	var onDisk map[string]string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("store file not valid JSON: %v", err)
	}
	if onDisk["header-a"] != "aaaa:bbbb" {
		t.Fatalf("on disk=%q, want %q", onDisk["header-a"], "aaaa:bbbb")
	}
}

func TestStore_OverwriteSameHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	s := Open(path, nil)
	if err := s.Put("h", "old:key"); err != nil {
		t.Fatalf("Put error=%v", err)
	}
	if err := s.Put("h", "new:key"); err != nil {
		t.Fatalf("Put error=%v", err)
	}
	if got, _ := s.Get("h"); got != "new:key" {
		t.Fatalf("Get=%q, want %q", got, "new:key")
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d, want 1", s.Len())
	}
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func TestOpen_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	logger := &recordingLogger{}
	s := Open(path, logger)
	if s.Len() != 0 {
		t.Fatalf("Len=%d, want 0", s.Len())
	}
	if len(logger.warnings) == 0 {
		t.Fatal("expected a corruption warning")
	}

	// The store stays usable after degrading.
	if err := s.Put("h", "a:b"); err != nil {
		t.Fatalf("Put after degrade error=%v", err)
	}
}

func TestOpen_MissingFileIsSilent(t *testing.T) {
	logger := &recordingLogger{}
	s := Open(filepath.Join(t.TempDir(), "absent.json"), logger)
	if s.Len() != 0 {
		t.Fatalf("Len=%d, want 0", s.Len())
	}
	if len(logger.warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", logger.warnings)
	}
}
