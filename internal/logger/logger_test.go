package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_FormatterAndLevel(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		level       string
		wantJSON    bool
		wantLevel   logrus.Level
	}{
		{"development text", true, "debug", false, logrus.DebugLevel},
		{"production json", false, "warn", true, logrus.WarnLevel},
		{"unknown level falls back to info", false, "verbose", true, logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.development, tt.level)

			_, isJSON := l.Logger.Formatter.(*logrus.JSONFormatter)
			if isJSON != tt.wantJSON {
				t.Fatalf("json formatter = %v, want %v", isJSON, tt.wantJSON)
			}
			if l.Logger.GetLevel() != tt.wantLevel {
				t.Fatalf("level = %v, want %v", l.Logger.GetLevel(), tt.wantLevel)
			}
		})
	}
}
