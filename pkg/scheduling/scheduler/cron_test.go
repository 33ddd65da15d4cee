package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/bgflow/internal/testutil"
	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
)

// lastRun fires once at the given time and never again.
type lastRun time.Time

func (l lastRun) Next(t time.Time) time.Time {
	if t.Before(time.Time(l)) {
		return time.Time(l)
	}
	return time.Time{}
}

var _ cron.Schedule = lastRun{}

func TestValidateCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 30 9 * * 1-5", false},
		{"@daily", false},
		{"@every 90s", false},
		{"", true},
		{"* * *", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpression(tt.expr)
			testutil.AssertEqual(t, err != nil, tt.wantErr)
		})
	}
}

func TestNextRuns(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	runs, err := NextRuns("0 */2 * * *", from, 3, time.UTC)
	testutil.AssertNoError(t, err)

	want := []time.Time{
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC),
	}
	testutil.AssertEqual(t, len(runs), len(want))
	for i := range want {
		testutil.AssertEqual(t, runs[i].Equal(want[i]), true)
	}

	_, err = NextRuns("bogus", from, 1, nil)
	testutil.AssertError(t, err)
}

func TestUpdateCron(t *testing.T) {
	p := New(&recorder{})
	job := func() error { return nil }

	testutil.AssertNoError(t, p.ScheduleCron("report", LaneSync, "@daily", job))

	testutil.AssertNoError(t, p.UpdateCron("report", "@every 1m"))
	after, err := p.Get("report")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, after.CronExpr, "@every 1m")
	if time.Until(after.RunAt) > time.Minute+time.Second {
		t.Fatalf("next run not recomputed: %v", after.RunAt)
	}

	if err := p.UpdateCron("missing", "@hourly"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	testutil.AssertError(t, p.UpdateCron("report", "nope"))

	testutil.AssertNoError(t, p.Schedule("plain", LaneSync, job, time.Now().Add(time.Hour)))
	testutil.AssertError(t, p.UpdateCron("plain", "@hourly"))
}

func TestCronThatNeverFiresIsRejected(t *testing.T) {
	p := New(&recorder{})
	job := func() error { return nil }

	err := p.ScheduleCron("feb30", LaneAsync, "0 0 30 2 *", job)
	testutil.AssertEqual(t, bferrors.IsValidationError(err), true)
	testutil.AssertEqual(t, len(p.List()), 0)

	testutil.AssertNoError(t, p.ScheduleCron("report", LaneAsync, "@daily", job))
	before, err := p.Get("report")
	testutil.AssertNoError(t, err)

	err = p.UpdateCron("report", "0 0 30 2 *")
	testutil.AssertEqual(t, bferrors.IsValidationError(err), true)
	after, err := p.Get("report")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, after.CronExpr, "@daily")
	testutil.AssertEqual(t, after.RunAt.Equal(before.RunAt), true)
}

func TestExhaustedCronTaskIsRemoved(t *testing.T) {
	p := New(&recorder{})
	now := time.Now()
	testutil.AssertNoError(t, p.add(&scheduledTask{
		id:           "once",
		lane:         LaneAsync,
		job:          func() error { return nil },
		runAt:        now,
		cronExpr:     "custom",
		cronSchedule: lastRun(now),
	}))

	ready := p.due(now)
	testutil.AssertEqual(t, len(ready), 1)
	testutil.AssertEqual(t, len(p.List()), 0)

	testutil.AssertEqual(t, len(p.due(now.Add(time.Hour))), 0)
}
