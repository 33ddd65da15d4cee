package background

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/bgflow/internal/testutil"
	"github.com/vnykmshr/bgflow/pkg/logx"
	"github.com/vnykmshr/bgflow/pkg/metrics"
)

// startScheduler starts a scheduler and closes it when the test ends,
// waiting for both lanes to exit.
func startScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s := New(opts...)
	testutil.AssertNoError(t, s.Start())
	t.Cleanup(func() {
		_ = s.Close()
		testutil.WaitClosed(t, s.Done(), time.Second)
	})
	return s
}

var errBoom = errors.New("boom")

func TestSyncSuccessInvokesOnSuccess(t *testing.T) {
	s := startScheduler(t)

	var counter int32
	failure := testutil.NewCallbackTracker()

	s.EnqueueSync(func() error { return nil }, failure.Func(), func() { atomic.AddInt32(&counter, 1) })

	testutil.WaitForInt32(t, &counter, 1, time.Second)
	failure.AssertNotCalled(t)
}

func TestSyncFailureInvokesOnFailureAndLaneContinues(t *testing.T) {
	s := startScheduler(t)

	failure := testutil.NewCallbackTracker()
	success := testutil.NewCallbackTracker()
	s.EnqueueSync(func() error { return errBoom }, failure.Func(), success.Func())

	var next int32
	s.EnqueueSync(func() error { return nil }, nil, func() { atomic.StoreInt32(&next, 1) })

	testutil.WaitForInt32(t, &next, 1, time.Second)
	failure.AssertCallCount(t, 1)
	success.AssertNotCalled(t)
}

func TestSyncFIFOWithExactlyOneCallback(t *testing.T) {
	s := startScheduler(t)

	const n = 60
	var (
		mu    sync.Mutex
		order []int
		done  int32
	)
	failures := make([]*testutil.CallbackTracker, n)
	successes := make([]*testutil.CallbackTracker, n)
	faulty := func(i int) bool { return i%3 == 0 || i%7 == 0 }

	for i := 0; i < n; i++ {
		i := i
		failures[i] = testutil.NewCallbackTracker()
		successes[i] = testutil.NewCallbackTracker()
		job := func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			switch {
			case i%7 == 0:
				panic("job exploded")
			case i%3 == 0:
				return errBoom
			}
			return nil
		}
		s.EnqueueSync(job,
			func() { failures[i].Mark(); atomic.AddInt32(&done, 1) },
			func() { successes[i].Mark(); atomic.AddInt32(&done, 1) },
		)
	}

	testutil.WaitForInt32(t, &done, n, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	testutil.AssertEqual(t, len(order), n)
	for i, got := range order {
		testutil.AssertEqual(t, got, i)
	}
	for i := 0; i < n; i++ {
		if faulty(i) {
			failures[i].AssertCallCount(t, 1)
			successes[i].AssertNotCalled(t)
		} else {
			successes[i].AssertCallCount(t, 1)
			failures[i].AssertNotCalled(t)
		}
	}

	stats := s.Stats()
	testutil.AssertEqual(t, stats.SyncEnqueued, uint64(n))
	testutil.AssertEqual(t, stats.Succeeded+stats.Failed, uint64(n))
}

func TestSyncJobsNeverOverlap(t *testing.T) {
	s := startScheduler(t)

	var running, maxRunning, finished int32
	for i := 0; i < 20; i++ {
		s.EnqueueSync(func() error {
			cur := atomic.AddInt32(&running, 1)
			for {
				prev := atomic.LoadInt32(&maxRunning)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxRunning, prev, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}, nil, func() { atomic.AddInt32(&finished, 1) })
	}

	testutil.WaitForInt32(t, &finished, 20, 2*time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&maxRunning), int32(1))
}

func TestSyncResultCarriesError(t *testing.T) {
	s := startScheduler(t)

	results := make(chan Result, 3)
	s.EnqueueSyncResult(func() error { return nil }, func(r Result) { results <- r })
	s.EnqueueSyncResult(func() error { return errBoom }, func(r Result) { results <- r })
	s.EnqueueSyncResult(func() error { panic("kaput") }, func(r Result) { results <- r })

	ok := <-results
	testutil.AssertEqual(t, ok.Succeeded(), true)
	testutil.AssertEqual(t, ok.Failed(), false)

	failed := <-results
	testutil.AssertEqual(t, failed.Failed(), true)
	if !errors.Is(failed.Err, errBoom) {
		t.Fatalf("got %v, want errBoom", failed.Err)
	}

	panicked := <-results
	var perr *PanicError
	if !errors.As(panicked.Err, &perr) {
		t.Fatalf("got %T, want *PanicError", panicked.Err)
	}
	testutil.AssertEqual(t, perr.Value, interface{}("kaput"))
	if !strings.Contains(string(perr.Stack), "goroutine") {
		t.Error("panic error should carry a stack trace")
	}
}

func TestSyncGoexitReportedAsFailure(t *testing.T) {
	s := startScheduler(t)

	results := make(chan Result, 1)
	s.EnqueueSyncResult(func() error {
		runtime.Goexit()
		return nil
	}, func(r Result) { results <- r })

	select {
	case r := <-results:
		if !errors.Is(r.Err, errJobExited) {
			t.Fatalf("got %v, want errJobExited", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("lane did not report the exited job")
	}
}

func TestCallbackPanicDoesNotStopLane(t *testing.T) {
	s := startScheduler(t)

	s.EnqueueSync(func() error { return nil }, nil, func() { panic("callback exploded") })
	s.EnqueueSync(func() error { return errBoom }, func() { panic("failure callback exploded") }, nil)

	var after int32
	s.EnqueueSync(func() error { return nil }, nil, func() { atomic.StoreInt32(&after, 1) })

	testutil.WaitForInt32(t, &after, 1, time.Second)
	testutil.AssertEqual(t, s.Stats().CallbackPanics, uint64(2))
}

func TestAsyncReturnsBeforeJobCompletes(t *testing.T) {
	s := startScheduler(t)

	release := make(chan struct{})
	var started, finished int32
	s.EnqueueAsync(func() error {
		atomic.StoreInt32(&started, 1)
		<-release
		atomic.StoreInt32(&finished, 1)
		return nil
	})

	testutil.WaitForInt32(t, &started, 1, time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&finished), int32(0))

	close(release)
	testutil.WaitForInt32(t, &finished, 1, time.Second)
}

func TestAsyncDispatchesWithoutWaiting(t *testing.T) {
	s := startScheduler(t)

	const jobs = 100
	var started, finished int32
	begin := time.Now()
	for i := 0; i < jobs; i++ {
		s.EnqueueAsync(func() error {
			atomic.AddInt32(&started, 1)
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&finished, 1)
			return nil
		})
	}

	// All jobs are running concurrently long before 100 x 50ms would elapse.
	testutil.WaitForInt32(t, &started, jobs, time.Second)
	testutil.Eventually(t, func() bool { return s.Stats().Dispatched == jobs }, time.Second, time.Millisecond)

	testutil.WaitForInt32(t, &finished, jobs, 2*time.Second)
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Fatalf("async lane took %v for %d sleeping jobs", elapsed, jobs)
	}
}

func TestAsyncJobFaultsAreContained(t *testing.T) {
	s := startScheduler(t)

	var ran int32
	s.EnqueueAsync(func() error { panic("async exploded") })
	s.EnqueueAsync(func() error { return errBoom })
	s.EnqueueAsync(func() error { atomic.StoreInt32(&ran, 1); return nil })

	testutil.WaitForInt32(t, &ran, 1, time.Second)
	testutil.AssertEqual(t, s.Stats().DispatchFailures, uint64(0))
}

func TestDispatchFailureIsLoggedAndSkipped(t *testing.T) {
	var calls int32
	var ran int32
	d := DispatcherFunc(func(job Job) error {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return errors.New("no capacity")
		case 2:
			panic("dispatcher exploded")
		}
		go func() { _ = Run(job); atomic.AddInt32(&ran, 1) }()
		return nil
	})
	s := startScheduler(t, WithDispatcher(d))

	for i := 0; i < 4; i++ {
		s.EnqueueAsync(func() error { return nil })
	}

	testutil.WaitForInt32(t, &ran, 2, time.Second)
	testutil.Eventually(t, func() bool { return s.Stats().Dispatched == 2 }, time.Second, time.Millisecond)
	testutil.AssertEqual(t, s.Stats().DispatchFailures, uint64(2))
}

func TestEnqueueNeverBlocks(t *testing.T) {
	s := New()
	defer s.Close()

	// Not started: everything stays queued.
	for i := 0; i < 100000; i++ {
		s.EnqueueSync(func() error { return nil }, nil, nil)
		s.EnqueueAsync(func() error { return nil })
	}

	start := time.Now()
	s.EnqueueSync(func() error { return nil }, nil, nil)
	s.EnqueueAsync(func() error { return nil })
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("enqueue under backlog took %v", elapsed)
	}

	stats := s.Stats()
	testutil.AssertEqual(t, stats.SyncQueued, 100001)
	testutil.AssertEqual(t, stats.AsyncQueued, 100001)
}

func TestJobsEnqueuedBeforeStartRun(t *testing.T) {
	s := New()
	var ran int32
	s.EnqueueSync(func() error { atomic.AddInt32(&ran, 1); return nil }, nil, nil)
	s.EnqueueAsync(func() error { atomic.AddInt32(&ran, 1); return nil })

	testutil.AssertNoError(t, s.Start())
	defer func() {
		_ = s.Close()
		testutil.WaitClosed(t, s.Done(), time.Second)
	}()

	testutil.WaitForInt32(t, &ran, 2, time.Second)
}

func TestStopDuringLongSyncJob(t *testing.T) {
	s := New()
	testutil.AssertNoError(t, s.Start())
	defer s.Close()

	running := make(chan struct{})
	release := make(chan struct{})
	callback := testutil.NewCallbackTracker()
	s.EnqueueSync(func() error {
		close(running)
		<-release
		return nil
	}, nil, callback.Func())

	next := testutil.NewCallbackTracker()
	s.EnqueueSync(func() error { next.Mark(); return nil }, nil, nil)

	<-running
	s.Stop()
	close(release)

	testutil.WaitClosed(t, s.Done(), time.Second)
	callback.AssertCallCount(t, 1)
	next.AssertNotCalled(t)
	testutil.AssertEqual(t, s.Stats().Discarded, uint64(1))
}

func TestStopReleasesIdleLanes(t *testing.T) {
	s := New()
	testutil.AssertNoError(t, s.Start())

	s.Stop()
	testutil.WaitClosed(t, s.Done(), time.Second)

	// Accepted but never run.
	ran := testutil.NewCallbackTracker()
	s.EnqueueSync(func() error { ran.Mark(); return nil }, nil, nil)
	s.EnqueueAsync(func() error { ran.Mark(); return nil })
	time.Sleep(20 * time.Millisecond)
	ran.AssertNotCalled(t)

	testutil.AssertNoError(t, s.Close())
}

func TestStartGuards(t *testing.T) {
	s := New()
	testutil.AssertNoError(t, s.Start())
	if err := s.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: got %v, want ErrAlreadyStarted", err)
	}

	s.Stop()
	if err := s.Start(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Start after Stop: got %v, want ErrStopped", err)
	}
	testutil.WaitClosed(t, s.Done(), time.Second)
	testutil.AssertNoError(t, s.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Run("after stop", func(t *testing.T) {
		s := New()
		testutil.AssertNoError(t, s.Start())
		s.Stop()
		testutil.AssertNoError(t, s.Close())
		testutil.AssertNoError(t, s.Close())
		testutil.WaitClosed(t, s.Done(), time.Second)
	})

	t.Run("never started", func(t *testing.T) {
		s := New()
		s.EnqueueSync(func() error { return nil }, nil, nil)
		testutil.AssertNoError(t, s.Close())
		testutil.AssertNoError(t, s.Close())
		testutil.WaitClosed(t, s.Done(), time.Second)

		stats := s.Stats()
		testutil.AssertEqual(t, stats.Closed, true)
		testutil.AssertEqual(t, stats.Stopped, true)
		testutil.AssertEqual(t, stats.Discarded, uint64(1))
		if err := s.Start(); !errors.Is(err, ErrStopped) {
			t.Fatalf("Start after Close: got %v, want ErrStopped", err)
		}
	})

	t.Run("enqueue after close", func(t *testing.T) {
		s := New()
		testutil.AssertNoError(t, s.Close())
		s.EnqueueSync(func() error { return nil }, nil, nil)
		s.EnqueueAsync(func() error { return nil })
		testutil.AssertEqual(t, s.Stats().Discarded, uint64(2))
	})
}

func TestNilJobIgnored(t *testing.T) {
	s := New()
	defer s.Close()

	s.EnqueueSync(nil, nil, nil)
	s.EnqueueAsync(nil)

	stats := s.Stats()
	testutil.AssertEqual(t, stats.SyncQueued, 0)
	testutil.AssertEqual(t, stats.AsyncQueued, 0)
}

func TestInstancesAreIndependent(t *testing.T) {
	a := startScheduler(t, WithName("a"))
	b := New(WithName("b"))
	testutil.AssertNoError(t, b.Start())

	b.Stop()
	testutil.WaitClosed(t, b.Done(), time.Second)
	testutil.AssertNoError(t, b.Close())

	var ran int32
	a.EnqueueSync(func() error { return nil }, nil, func() { atomic.StoreInt32(&ran, 1) })
	testutil.WaitForInt32(t, &ran, 1, time.Second)
	testutil.AssertEqual(t, a.Stats().Stopped, false)
}

func TestMetricsAreRecorded(t *testing.T) {
	m := metrics.NewRegistry(prometheus.NewRegistry())
	s := startScheduler(t, WithName("metered"), WithMetrics(m))

	var done int32
	s.EnqueueSync(func() error { return nil }, nil, func() { atomic.AddInt32(&done, 1) })
	s.EnqueueSync(func() error { return errBoom }, func() { atomic.AddInt32(&done, 1) }, nil)
	s.EnqueueAsync(func() error { atomic.AddInt32(&done, 1); return nil })

	testutil.WaitForInt32(t, &done, 3, time.Second)

	testutil.AssertEqual(t, promtest.ToFloat64(m.JobsEnqueued.WithLabelValues("metered", metrics.LaneSync)), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.JobsEnqueued.WithLabelValues("metered", metrics.LaneAsync)), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.JobsSucceeded.WithLabelValues("metered")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.JobsFailed.WithLabelValues("metered")), 1.0)
	testutil.Eventually(t, func() bool {
		return promtest.ToFloat64(m.JobsDispatched.WithLabelValues("metered")) == 1
	}, time.Second, time.Millisecond)
}

func TestFailureLogSampling(t *testing.T) {
	w := testutil.NewMockWriter()
	s := startScheduler(t,
		WithLogger(logx.NewJSON(w, "warn")),
		WithFailureLogRate(0.001, 3),
	)

	var failed int32
	for i := 0; i < 20; i++ {
		s.EnqueueSync(func() error { return errBoom }, func() { atomic.AddInt32(&failed, 1) }, nil)
	}
	testutil.WaitForInt32(t, &failed, 20, 2*time.Second)

	logged := 0
	for _, line := range w.Lines() {
		if strings.Contains(line, "sync job failed") {
			logged++
		}
	}
	testutil.AssertEqual(t, logged, 3)
	testutil.AssertEqual(t, s.Stats().FailureLogsSuppressed, uint64(17))
}

func TestNewWithConfigValidates(t *testing.T) {
	_, err := NewWithConfig(Config{FailureLogRate: -1})
	testutil.AssertError(t, err)

	defer func() {
		if r := recover(); r == nil {
			t.Error("New should panic on invalid options")
		}
	}()
	New(WithFailureLogRate(-5, 1))
}
