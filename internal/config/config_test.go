package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.RunAddress)
	assert.Equal(t, time.Hour, cfg.StatsInterval)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.Job)
}

func TestParseEnvOverridesFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("STATS_INTERVAL", "0")
	t.Setenv("TIME_ZONE", "Europe/Moscow")

	cfg, err := Parse(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-a", ":7070", "-job", JobDailyStats})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.RunAddress)
	assert.Zero(t, cfg.StatsInterval)
	assert.Equal(t, "Europe/Moscow", cfg.Location.String())
	assert.Equal(t, JobDailyStats, cfg.Job)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		args []string
	}{
		"interval":  {env: map[string]string{"STATS_INTERVAL": "soon"}},
		"negative":  {env: map[string]string{"STATS_INTERVAL": "-1h"}},
		"time zone": {env: map[string]string{"TIME_ZONE": "Mars/Olympus"}},
		"max conns": {env: map[string]string{"DB_MAX_OPEN_CONNS": "many"}},
		"upload":    {env: map[string]string{"MAX_UPLOAD_BYTES": "0"}},
		"job":       {args: []string{"-job", "reindex"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Parse(flag.NewFlagSet("test", flag.ContinueOnError), tc.args)
			assert.Error(t, err)
		})
	}
}
