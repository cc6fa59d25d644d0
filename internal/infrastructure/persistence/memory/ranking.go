package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/rhythmofsigns/progress-engine/internal/domain/notification"
	"github.com/rhythmofsigns/progress-engine/internal/domain/points"
	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

type rankingRepo struct{ s *Store }

func (r rankingRepo) standings(period points.Period) []points.Standing {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]points.Standing, 0, len(r.s.users))
	for id, u := range r.s.users {
		if u.account == nil {
			continue
		}
		out = append(out, points.Standing{
			UserID: id,
			Points: u.account.PointsFor(period),
			Total:  u.account.Total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (r rankingRepo) Top(_ context.Context, period points.Period, limit int) ([]points.Standing, error) {
	rows := r.standings(period)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r rankingRepo) CountAbove(_ context.Context, period points.Period, score int) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, u := range r.s.users {
		if u.account != nil && u.account.PointsFor(period) > score {
			n++
		}
	}
	return n, nil
}

func (r rankingRepo) All(_ context.Context, period points.Period) ([]points.Standing, error) {
	return r.standings(period), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Notifications live outside per-user snapshots: they are written after
// commit and must survive a later rollback of the same user.
type notificationRepo struct{ s *Store }

func (r notificationRepo) Save(_ context.Context, n *notification.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications[n.UserID] = append(r.s.notifications[n.UserID], *n)
	return nil
}

func (r notificationRepo) Unread(_ context.Context, userID shared.UserID, limit int) ([]notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.s.notifications[userID]
	var out []notification.Notification
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].IsRead {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r notificationRepo) CountUnread(_ context.Context, userID shared.UserID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, x := range r.s.notifications[userID] {
		if !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (r notificationRepo) MarkRead(_ context.Context, userID shared.UserID, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	list := r.s.notifications[userID]
	for i := range list {
		if list[i].IsRead {
			continue
		}
		if len(ids) > 0 && !want[list[i].ID] {
			continue
		}
		list[i].IsRead = true
		n++
	}
	return n, nil
}
