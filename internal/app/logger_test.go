package app_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classward/classward/internal/app"
)

func TestNewLoggerHandlerSelection(t *testing.T) {
	cases := []struct {
		name     string
		cfg      *app.Config
		wantJSON bool
	}{
		{"explicit json", &app.Config{LogFormat: "json"}, true},
		{"explicit pretty in production", &app.Config{LogFormat: "pretty", AppEnv: "production"}, false},
		{"production default", &app.Config{AppEnv: "production"}, true},
		{"development default", &app.Config{AppEnv: "development"}, false},
		{"nil config", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := app.NewLogger(tc.cfg).Handler()
			if tc.wantJSON {
				require.IsType(t, &slog.JSONHandler{}, handler)
			} else {
				require.IsType(t, &slog.TextHandler{}, handler)
			}
		})
	}
}
