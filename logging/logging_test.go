package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultLoggerRouting(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriterLogger(&out, &errOut, false)

	l.Debug("hidden")
	l.Info("hello", Fields{"b": 2, "a": 1})
	l.Error(errors.New("boom"), "failed")

	if strings.Contains(out.String(), "hidden") {
		t.Errorf("debug line written at info level: %q", out.String())
	}
	if !strings.Contains(out.String(), "[INFO] hello a=1 b=2") {
		t.Errorf("unexpected info line: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "[ERROR] failed: boom") {
		t.Errorf("unexpected error line: %q", errOut.String())
	}
}

func TestWithFieldsSharesLevel(t *testing.T) {
	var out bytes.Buffer
	parent := NewWriterLogger(&out, &out, false)
	child := parent.WithFields(Fields{"component": "vad"})

	parent.SetLevel(DebugLevel)
	child.Debug("gate open")

	if !strings.Contains(out.String(), "[DEBUG] gate open component=vad") {
		t.Errorf("child did not inherit level change: %q", out.String())
	}
}

func TestWithContext(t *testing.T) {
	var out bytes.Buffer
	l := NewWriterLogger(&out, &out, false)
	ctx := ContextWithFields(context.Background(), Fields{"tracker": "t1"})

	l.WithContext(ctx).Info("started")

	if !strings.Contains(out.String(), "tracker=t1") {
		t.Errorf("context fields missing: %q", out.String())
	}
}
