package log

import (
	"errors"
	"testing"
)

type testLogger struct {
	entries []string
}

func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Panic(_ map[string]any, msg string) {}
func (l *testLogger) Fatal(_ map[string]any, msg string) {}

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"list":  "bannedphraselist",
		"line":  42,
		"cache": true,
	}, "test debug")
	Info(nil, "test info")
	Warn(map[string]any{"error": errors.New("boom")}, "test warn")
	Error(nil, "test error")

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}
	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestConfigure(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	if err := Configure("dev", "debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Configure("prod", "WARN"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Configure("dev", "notalevel"); err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
}

func TestZapFields_SortedAndErrorsNamed(t *testing.T) {
	fields := zapFields(map[string]any{"b": 2, "a": 1, "err": errors.New("x")})
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	want := []string{"a", "b", "err"}
	for i, k := range want {
		if fields[i].Key != k {
			t.Errorf("field[%d] key = %q, want %q", i, fields[i].Key, k)
		}
	}
	if zapFields(nil) != nil {
		t.Error("expected nil fields for nil map")
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(*noopLogger); !ok {
		t.Fatal("expected noop logger for nil input")
	}
	tlog := &testLogger{}
	if OrNoop(tlog) != Logger(tlog) {
		t.Fatal("expected passthrough for non-nil logger")
	}
	n := NewNoopLogger()
	n.Debug(nil, "x")
	n.Info(nil, "x")
	n.Warn(nil, "x")
	n.Error(nil, "x")
	n.Panic(nil, "x")
	n.Fatal(nil, "x")
}
