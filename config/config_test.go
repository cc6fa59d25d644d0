package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "progress-engine", cfg.App.Name)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)
	assert.True(t, cfg.IsDevelopment())

	assert.Equal(t, time.Monday, cfg.Scheduler.WeeklyResetDay)
	assert.Equal(t, "00:00", cfg.Scheduler.WeeklyResetAt)
	assert.Equal(t, 1, cfg.Scheduler.MonthlyResetDay)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.RebuildLeaderboardInterval)

	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 15*time.Minute, cfg.Redis.LeaderboardTTL)
	assert.True(t, cfg.Gamification.SeedBadgesOnStart)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("SCHEDULER_WEEKLY_RESET_DAY", "sun")
	t.Setenv("SCHEDULER_MONTHLY_RESET_AT", "03:30")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("DB_MAX_CONNS", "7")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, time.Sunday, cfg.Scheduler.WeeklyResetDay)
	assert.Equal(t, "03:30", cfg.Scheduler.MonthlyResetAt)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, 7, cfg.Database.MaxConns)
}

func TestFromEnv_MalformedValuesAreReported(t *testing.T) {
	t.Setenv("DB_STARTUP_ATTEMPTS", "not-a-number")
	t.Setenv("REDIS_DISABLED", "perhaps")
	t.Setenv("SCHEDULER_WEEKLY_RESET_DAY", "someday")

	_, err := FromEnv()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `DB_STARTUP_ATTEMPTS="not-a-number"`)
	assert.Contains(t, msg, `REDIS_DISABLED="perhaps"`)
	assert.Contains(t, msg, `SCHEDULER_WEEKLY_RESET_DAY="someday"`)
}

func TestFromEnv_UnknownTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus_Mons")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SCHEDULER_WEEKLY_RESET_AT", "midnight")
	t.Setenv("SCHEDULER_MONTHLY_RESET_DAY", "31")
	t.Setenv("GAMIFICATION_NOTIFICATION_WORKERS", "0")

	_, err := FromEnv()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL or DB_PASSWORD is required in production")
	assert.Contains(t, msg, "SCHEDULER_WEEKLY_RESET_AT must be HH:MM")
	assert.Contains(t, msg, "SCHEDULER_MONTHLY_RESET_DAY must be 1-28")
	assert.Contains(t, msg, "GAMIFICATION_NOTIFICATION_WORKERS must be positive")
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=from-file\nREDIS_PORT=6380\n"), 0o600))
	t.Setenv("REDIS_PORT", "6381")
	t.Cleanup(func() { os.Unsetenv("APP_NAME") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.App.Name)
	assert.Equal(t, 6381, cfg.Redis.Port, "process environment wins over the file")
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{"Friday": time.Friday, "sun": time.Sunday, "WED": time.Wednesday} {
		got, err := parseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseWeekday("someday")
	assert.Error(t, err)
}
