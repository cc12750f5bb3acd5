package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewConsoleDebug(t *testing.T) {
	l, err := New("debug", "console")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if !l.Core().Enabled(-1) { // zapcore.DebugLevel
		t.Fatalf("debug level should be enabled")
	}
}
