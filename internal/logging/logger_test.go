package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func reset() {
	CloseAll()
	logsDir = ""
	enabled = false
	logLevel = LevelInfo
}

func TestDisabledIsNoOp(t *testing.T) {
	defer reset()
	if err := Initialize("", false, "debug"); err != nil {
		t.Fatal(err)
	}
	// Must not panic or create files.
	Get(CategoryCodec).Info("ignored")
	Codec("also ignored")
	if IsDebugMode() {
		t.Error("debug mode reported enabled")
	}
}

func TestWritesCategoryFile(t *testing.T) {
	defer reset()
	dir := t.TempDir()
	if err := Initialize(dir, true, "debug"); err != nil {
		t.Fatal(err)
	}

	l := Get(CategoryStore)
	l.Info("indexed %d rows", 42)
	l.Debug("detail")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, date+"_store.log"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "[INFO] indexed 42 rows") {
		t.Errorf("info entry missing:\n%s", content)
	}
	if !strings.Contains(content, "[DEBUG] detail") {
		t.Errorf("debug entry missing:\n%s", content)
	}
}

func TestLevelFilter(t *testing.T) {
	defer reset()
	dir := t.TempDir()
	if err := Initialize(dir, true, "warn"); err != nil {
		t.Fatal(err)
	}

	l := Get(CategoryConvert)
	l.Info("suppressed")
	l.Warn("kept")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, date+"_convert.log"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if strings.Contains(content, "suppressed") {
		t.Errorf("info entry written despite warn level:\n%s", content)
	}
	if !strings.Contains(content, "[WARN] kept") {
		t.Errorf("warn entry missing:\n%s", content)
	}
}

func TestRejectsUnknownLevel(t *testing.T) {
	defer reset()
	if err := Initialize(t.TempDir(), true, "loud"); err == nil {
		t.Error("unknown level accepted")
	}
}

func TestTimer(t *testing.T) {
	defer reset()
	timer := StartTimer(CategoryCodec, "decode")
	if d := timer.Stop(); d < 0 {
		t.Errorf("negative duration %v", d)
	}
}
