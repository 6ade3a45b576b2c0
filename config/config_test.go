package config

import (
	"os"
	"testing"

	"github.com/cbsinteractive/fragment-window/test"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func setenv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		old, ok := os.LookupEnv(k)
		os.Setenv(k, v)
		k := k
		t.Cleanup(func() {
			if ok {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr string
	}{
		{
			name: "Defaults",
			env:  map[string]string{},
			want: &Config{
				HTTPAddr: ":8080",
				Env:      "dev",
				Bus:      BusLocal,
				Log:      Log{Level: "info", Format: "text"},
				Redis:    Redis{Addr: "127.0.0.1:6379", ChannelPrefix: "fragment-window"},
			},
		},
		{
			name: "Redis",
			env: map[string]string{
				"FRAGMENT_WINDOW_BUS":                  "redis",
				"FRAGMENT_WINDOW_REDIS_ADDR":           "redis.internal:6380",
				"FRAGMENT_WINDOW_REDIS_DB":             "2",
				"FRAGMENT_WINDOW_REDIS_CHANNEL_PREFIX": "player",
				"FRAGMENT_WINDOW_LOG_LEVEL":            "debug",
				"FRAGMENT_WINDOW_LOG_FORMAT":           "json",
				"FRAGMENT_WINDOW_SENTRY_DSN":           "https://key@sentry.example.com/1",
				"FRAGMENT_WINDOW_ENV":                  "prod",
			},
			want: &Config{
				HTTPAddr:  ":8080",
				Env:       "prod",
				Bus:       BusRedis,
				SentryDSN: "https://key@sentry.example.com/1",
				Log:       Log{Level: "debug", Format: "json"},
				Redis:     Redis{Addr: "redis.internal:6380", DB: 2, ChannelPrefix: "player"},
			},
		},
		{
			name:    "UnknownBus",
			env:     map[string]string{"FRAGMENT_WINDOW_BUS": "kafka"},
			wantErr: `unknown bus "kafka"`,
		},
		{
			name:    "UnknownFormat",
			env:     map[string]string{"FRAGMENT_WINDOW_LOG_FORMAT": "xml"},
			wantErr: `unknown log format "xml"`,
		},
		{
			name:    "BadLevel",
			env:     map[string]string{"FRAGMENT_WINDOW_LOG_LEVEL": "loud"},
			wantErr: `log level: not a valid logrus Level: "loud"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setenv(t, tt.env)
			got, err := Load()
			if test.AssertWantErr(err, tt.wantErr, "Load()", t) {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	l, err := Log{Level: "warn", Format: "json"}.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if l.Level != logrus.WarnLevel {
		t.Errorf("level = %v, want %v", l.Level, logrus.WarnLevel)
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("formatter = %T, want *logrus.JSONFormatter", l.Formatter)
	}
}
