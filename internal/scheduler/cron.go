package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule yields the run that follows a given time.
type Schedule interface {
	Next(from time.Time) time.Time
}

type every time.Duration

func (e every) Next(from time.Time) time.Time { return from.Add(time.Duration(e)) }

type named string

func (n named) Next(t time.Time) time.Time {
	switch n {
	case "@yearly", "@annually":
		return time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, t.Location())
	case "@monthly":
		// time.Date normalises month 13
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	case "@weekly":
		// next Sunday at midnight
		days := (7 - int(t.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
	case "@daily":
		return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
	default: // @hourly
		return t.Add(time.Hour).Truncate(time.Hour)
	}
}

// Parse accepts the named schedules (@hourly, @daily, @weekly, @monthly,
// @yearly) and "@every <duration>", where the duration may use a d suffix
// for days. Five-field cron syntax is not supported.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "@yearly", "@annually", "@monthly", "@weekly", "@daily", "@hourly":
		return named(expr), nil
	}
	if d, ok := strings.CutPrefix(expr, "@every "); ok {
		dur, err := parseEveryDuration(strings.TrimSpace(d))
		if err != nil {
			return nil, err
		}
		return every(dur), nil
	}
	if expr == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	return nil, fmt.Errorf("unsupported schedule %q: use @every or a named schedule", expr)
}

func parseEveryDuration(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}
