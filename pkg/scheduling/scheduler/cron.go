package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @hourly or @every 5m.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func parseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, bferrors.NewValidationError("scheduler", "cron", expr, "cannot be empty")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, bferrors.NewValidationError("scheduler", "cron", expr, err.Error()).
			WithHint(`e.g. "*/5 * * * *", "0 30 9 * * 1-5" or "@every 1m"`)
	}
	return schedule, nil
}

// firstRun is the next fire time of schedule after now. An expression that
// parses but never matches a real date (Feb 30) is rejected.
func firstRun(schedule cron.Schedule, expr string, now time.Time) (time.Time, error) {
	next := schedule.Next(now)
	if next.IsZero() {
		return time.Time{}, bferrors.NewValidationError("scheduler", "cron", expr, "never fires")
	}
	return next, nil
}

// ValidateCronExpression reports whether expr can be scheduled.
//
// Examples:
//
//	"0 */2 * * *"      every 2 hours
//	"30 14 * * 1-5"    2:30 PM on weekdays
//	"*/10 * * * * *"   every 10 seconds
//	"@daily"           every day at midnight
//	"@every 90s"       every 90 seconds
func ValidateCronExpression(expr string) error {
	_, err := parseCron(expr)
	return err
}

// NextRuns returns the next n fire times of expr after from, evaluated in loc.
func NextRuns(expr string, from time.Time, n int, loc *time.Location) ([]time.Time, error) {
	schedule, err := parseCron(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	runs := make([]time.Time, 0, n)
	next := from.In(loc)
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}
		runs = append(runs, next)
	}
	return runs, nil
}

// UpdateCron replaces the expression of an existing cron task. The next run
// is recomputed from now.
func (p *Producer) UpdateCron(id, cronExpr string) error {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	runAt, err := firstRun(schedule, cronExpr, time.Now().In(p.location))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if t.cronSchedule == nil {
		return bferrors.NewValidationError("scheduler", "id", id, "not a cron task")
	}
	t.cronExpr = cronExpr
	t.cronSchedule = schedule
	t.runAt = runAt
	return nil
}
