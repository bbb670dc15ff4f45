package notifier_test

import (
	"testing"
	"time"

	"github.com/m-zajac/errnotify/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AIRBRAKE_PROJECTID", "12")
	t.Setenv("AIRBRAKE_PROJECTKEY", "secret-key")
	t.Setenv("AIRBRAKE_ENVIRONMENT", "staging")
	t.Setenv("AIRBRAKE_PERFORMANCESTATS", "false")
	t.Setenv("AIRBRAKE_IGNOREENVIRONMENTS", "dev,test")
	t.Setenv("AIRBRAKE_ROUTESFLUSHPERIOD", "30s")

	c, err := notifier.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(12), c.ProjectID)
	assert.Equal(t, "secret-key", c.ProjectKey)
	assert.Equal(t, "staging", c.Environment)
	assert.False(t, c.PerformanceStats)
	assert.Equal(t, []string{"dev", "test"}, c.IgnoreEnvironments)
	assert.Equal(t, 30*time.Second, c.RoutesFlushPeriod)

	// Defaults.
	assert.Equal(t, "https://api.airbrake.io", c.Host)
	assert.Equal(t, []string{"password", "secret"}, c.KeysBlocklist)
	assert.True(t, c.ErrorNotifications)
	assert.Equal(t, 10, c.Workers)
}

func TestConfigFromEnvDefaultsMatchDefaultConfig(t *testing.T) {
	c, err := notifier.ConfigFromEnv()
	require.NoError(t, err)

	want := notifier.DefaultConfig()
	assert.Equal(t, want.Host, c.Host)
	assert.Equal(t, want.Environment, c.Environment)
	assert.Equal(t, want.KeysBlocklist, c.KeysBlocklist)
	assert.Equal(t, want.PerformanceStats, c.PerformanceStats)
	assert.Equal(t, want.Workers, c.Workers)
	assert.Equal(t, want.QueueSize, c.QueueSize)
	assert.Equal(t, want.Timeout, c.Timeout)
	assert.Equal(t, want.RoutesFlushPeriod, c.RoutesFlushPeriod)
	assert.Equal(t, want.BacklogRetryPeriod, c.BacklogRetryPeriod)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		update  func(*notifier.Config)
		wantErr bool
	}{
		{
			name: "defaults",
		},
		{
			name:    "negative workers",
			update:  func(c *notifier.Config) { c.Workers = -1 },
			wantErr: true,
		},
		{
			name:    "negative queue size",
			update:  func(c *notifier.Config) { c.QueueSize = -1 },
			wantErr: true,
		},
		{
			name:    "zero flush period",
			update:  func(c *notifier.Config) { c.RoutesFlushPeriod = 0 },
			wantErr: true,
		},
		{
			name: "backlog without retry period",
			update: func(c *notifier.Config) {
				c.BacklogEnabled = true
				c.BacklogRetryPeriod = 0
			},
			wantErr: true,
		},
		{
			name:    "invalid blocklist regexp",
			update:  func(c *notifier.Config) { c.KeysBlocklist = []string{"[a-"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		c := notifier.DefaultConfig()
		if tt.update != nil {
			tt.update(&c)
		}
		err := c.Validate()
		if tt.wantErr {
			assert.Error(t, err, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
	}
}
