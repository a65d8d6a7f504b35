package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpontes/shelfmark/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.AppConfig
		logFn     func(l *slog.Logger)
		wantParts []string
		skipParts []string
	}{
		{
			name: "Should emit text format with identity attributes",
			cfg: config.AppConfig{
				Name:        "shelfmark",
				Version:     "1.2.3",
				Environment: "development",
				LogLevel:    "info",
				LogFormat:   "text",
			},
			logFn:     func(l *slog.Logger) { l.Info("hello") },
			wantParts: []string{"msg=hello", "service=shelfmark", "version=1.2.3", "env=development"},
		},
		{
			name: "Should emit json format",
			cfg: config.AppConfig{
				Name:        "shelfmark",
				Version:     "dev",
				Environment: "production",
				LogLevel:    "info",
				LogFormat:   "json",
			},
			logFn:     func(l *slog.Logger) { l.Info("hello") },
			wantParts: []string{`"msg":"hello"`, `"service":"shelfmark"`},
		},
		{
			name: "Should suppress debug logs at info level",
			cfg: config.AppConfig{
				Name:        "shelfmark",
				Environment: "development",
				LogLevel:    "info",
				LogFormat:   "text",
			},
			logFn:     func(l *slog.Logger) { l.Debug("invisible") },
			skipParts: []string{"invisible"},
		},
		{
			name: "Should default to info on unknown level",
			cfg: config.AppConfig{
				Name:        "shelfmark",
				Environment: "development",
				LogLevel:    "bogus",
				LogFormat:   "text",
			},
			logFn:     func(l *slog.Logger) { l.Info("visible") },
			wantParts: []string{"visible"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&tt.cfg, &buf)
			require.NotNil(t, log)

			tt.logFn(log)

			out := buf.String()
			for _, part := range tt.wantParts {
				assert.True(t, strings.Contains(out, part), "expected %q in output: %s", part, out)
			}
			for _, part := range tt.skipParts {
				assert.False(t, strings.Contains(out, part), "did not expect %q in output: %s", part, out)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Run("Should return injected logger", func(t *testing.T) {
		var buf bytes.Buffer
		injected := slog.New(slog.NewTextHandler(&buf, nil))

		ctx := WithContext(context.Background(), injected)
		got := FromContext(ctx)

		got.Info("through-context")
		assert.Contains(t, buf.String(), "through-context")
	})

	t.Run("Should fall back to default logger on empty context", func(t *testing.T) {
		got := FromContext(context.Background())
		assert.NotNil(t, got)
	})
}
