package redis

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

func TestMemberFor_OrdersNumerically(t *testing.T) {
	ids := []shared.UserID{100, 7, 25, 3}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = memberFor(id)
	}
	sort.Strings(members)

	var got []shared.UserID
	for _, m := range members {
		id, err := parseMember(m)
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []shared.UserID{3, 7, 25, 100}, got)
}

func TestParseMember_Invalid(t *testing.T) {
	_, err := parseMember("user-1")
	assert.Error(t, err)
}

func TestScoreRoundTrip(t *testing.T) {
	for _, pts := range []int{0, 1, 105, 1_000_000} {
		assert.Equal(t, pts, pointsFromScore(scoreFor(pts)))
	}
	assert.Less(t, scoreFor(200), scoreFor(100), "higher points sort first in ascending order")
}

func TestStrictlyAbove(t *testing.T) {
	assert.Equal(t, "(-105", strictlyAbove(105))
	assert.Equal(t, "(0", strictlyAbove(0))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "progress:leaderboard:weekly", LeaderboardKey(points.PeriodWeekly))
	assert.Equal(t, "progress:leaderboard:all:ready", LeaderboardReadyKey(points.PeriodAll))
	assert.Equal(t, "progress:leaderboard:totals", LeaderboardTotalsKey())
	assert.Equal(t, "progress:lock:user:42", LockKey(42))
	assert.Equal(t, "progress:notifications:42", NotificationChannel(42))
	assert.Equal(t, "progress:notifications:all", NotificationBroadcastChannel())
	assert.Equal(t, "progress:events:progress.badge_earned", EventChannel(shared.EventBadgeEarned))
	assert.Equal(t, "progress:events:all", EventBroadcastChannel())
}

func TestNewLeaderboardCache_DefaultTTL(t *testing.T) {
	assert.Equal(t, TTLLeaderboardCache, NewLeaderboardCache(nil, 0).ttl)
	assert.Equal(t, time.Minute, NewLeaderboardCache(nil, time.Minute).ttl)
}

func TestNewUserLocker_DefaultLease(t *testing.T) {
	assert.Equal(t, TTLDistributedLock, NewUserLocker(nil, 0).lease)
}

func TestNotificationMessage_JSON(t *testing.T) {
	created := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	msg := NewNotificationMessage(notification.Notification{
		ID:        "n-1",
		UserID:    9,
		Type:      notification.TypeBadge,
		Title:     "Badge Earned: Quiz Taker",
		Icon:      "fa-trophy",
		Color:     "gold",
		Link:      notification.AchievementsLink,
		CreatedAt: created,
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "n-1", decoded["id"])
	assert.Equal(t, float64(9), decoded["user_id"])
	assert.Equal(t, "badge", decoded["type"])
	assert.Equal(t, "/achievements/", decoded["link"])
	assert.Equal(t, "2024-03-04T10:00:00Z", decoded["created_at"])
}

func TestDefaultConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
	assert.Equal(t, "[::1]:6380", Config{Host: "::1", Port: 6380}.Addr())
}
