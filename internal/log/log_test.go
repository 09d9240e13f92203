package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		logFn   func(Logger)
		want    []string
		notWant []string
	}{
		{
			name: "text format includes message and attrs",
			cfg:  Config{Level: slog.LevelInfo},
			logFn: func(l Logger) {
				l.Info("ingest complete", "documents", 6)
			},
			want: []string{"ingest complete", "documents=6"},
		},
		{
			name: "json format produces json keys",
			cfg:  Config{Level: slog.LevelInfo, JSON: true},
			logFn: func(l Logger) {
				l.Info("search done", "hits", 5)
			},
			want: []string{`"msg":"search done"`, `"hits":5`},
		},
		{
			name: "debug suppressed at info level",
			cfg:  Config{Level: slog.LevelInfo},
			logFn: func(l Logger) {
				l.Debug("noisy detail")
			},
			notWant: []string{"noisy detail"},
		},
		{
			name: "debug emitted at debug level",
			cfg:  Config{Level: slog.LevelDebug},
			logFn: func(l Logger) {
				l.Debug("chunk produced", "ordinal", 0)
			},
			want: []string{"chunk produced", "ordinal=0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.cfg)
			tt.logFn(logger)

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("output should not contain %q:\n%s", nw, out)
				}
			}
		})
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop returned nil")
	}
	// Must not panic at any level.
	logger.Debug("discarded")
	logger.Info("discarded")
	logger.Error("discarded")
}
