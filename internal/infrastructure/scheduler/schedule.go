package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IntervalSchedule runs a job at a fixed interval after its previous start.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}

// CronSchedule is a parsed five-field cron expression:
// minute hour day-of-month month day-of-week.
// Fields accept *, */n, n, n-m, n-m/s and comma lists. All fields must match.
type CronSchedule struct {
	raw      string
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64
}

// ParseCron parses expr. The shortcuts @hourly, @daily and @weekly are accepted.
func ParseCron(expr string) (*CronSchedule, error) {
	switch strings.TrimSpace(expr) {
	case "@hourly":
		expr = "0 * * * *"
	case "@daily", "@midnight":
		expr = "0 0 * * *"
	case "@weekly":
		expr = "0 0 * * 0"
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day", "month", "weekday"}
	var sets [5]uint64
	for i, f := range fields {
		set, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron %q: invalid %s field: %w", expr, names[i], err)
		}
		sets[i] = set
	}

	return &CronSchedule{
		raw:      strings.Join(fields, " "),
		minutes:  sets[0],
		hours:    sets[1],
		days:     sets[2],
		months:   sets[3],
		weekdays: sets[4],
	}, nil
}

// ParseSchedule returns a cron schedule when expr is set, else an interval.
func ParseSchedule(expr string, interval time.Duration) (Schedule, error) {
	if strings.TrimSpace(expr) != "" {
		return ParseCron(expr)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return NewIntervalSchedule(interval), nil
}

func parseCronField(field string, lo, hi int) (uint64, error) {
	var set uint64
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step %q", s)
			}
			step = n
			part = base
		}

		start, end := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err error
			if start, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad range start %q", a)
			}
			if end, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("bad range end %q", b)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", part)
			}
			start = v
			if step == 1 {
				end = v
			}
		}

		if start < lo || end > hi || start > end {
			return 0, fmt.Errorf("%q out of range [%d-%d]", part, lo, hi)
		}
		for v := start; v <= end; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

func (c *CronSchedule) String() string { return c.raw }

// Next returns the first matching minute strictly after t, or the zero time
// when nothing matches within a year.
func (c *CronSchedule) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	limit := next.AddDate(1, 0, 1)
	for next.Before(limit) {
		if c.months&(1<<uint(next.Month())) == 0 {
			next = time.Date(next.Year(), next.Month()+1, 1, 0, 0, 0, 0, next.Location())
			continue
		}
		if c.days&(1<<uint(next.Day())) == 0 || c.weekdays&(1<<uint(next.Weekday())) == 0 {
			next = time.Date(next.Year(), next.Month(), next.Day()+1, 0, 0, 0, 0, next.Location())
			continue
		}
		if c.hours&(1<<uint(next.Hour())) == 0 {
			next = time.Date(next.Year(), next.Month(), next.Day(), next.Hour()+1, 0, 0, 0, next.Location())
			continue
		}
		if c.minutes&(1<<uint(next.Minute())) == 0 {
			next = next.Add(time.Minute)
			continue
		}
		return next
	}
	return time.Time{}
}
