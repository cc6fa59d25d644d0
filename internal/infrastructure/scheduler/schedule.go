package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
)

// Schedule describes when a job runs. Wall-clock schedules use the
// scheduler's location.
type Schedule interface {
	apply(s *gocron.Scheduler) *gocron.Scheduler
	String() string
}

// WeeklySchedule runs once a week on Day at At ("HH:MM").
type WeeklySchedule struct {
	Day time.Weekday
	At  string
}

// Weekly returns a WeeklySchedule.
func Weekly(day time.Weekday, at string) WeeklySchedule {
	return WeeklySchedule{Day: day, At: at}
}

func (w WeeklySchedule) apply(s *gocron.Scheduler) *gocron.Scheduler {
	return s.Every(1).Weekday(w.Day).At(w.At)
}

func (w WeeklySchedule) String() string {
	return fmt.Sprintf("every %s at %s", strings.ToLower(w.Day.String()), w.At)
}

// MonthlySchedule runs once a month on Day at At ("HH:MM").
type MonthlySchedule struct {
	Day int
	At  string
}

// Monthly returns a MonthlySchedule.
func Monthly(day int, at string) MonthlySchedule {
	return MonthlySchedule{Day: day, At: at}
}

func (m MonthlySchedule) apply(s *gocron.Scheduler) *gocron.Scheduler {
	return s.Every(1).Month(m.Day).At(m.At)
}

func (m MonthlySchedule) String() string {
	return fmt.Sprintf("monthly on day %d at %s", m.Day, m.At)
}

// IntervalSchedule runs a job at a fixed interval. The first run happens one
// interval after the scheduler starts.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns an IntervalSchedule.
func Every(interval time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: interval}
}

func (i IntervalSchedule) apply(s *gocron.Scheduler) *gocron.Scheduler {
	return s.Every(i.Interval)
}

func (i IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", i.Interval)
}
