package background_test

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vnykmshr/bgflow/pkg/scheduling/background"
)

func Example() {
	s := background.New(background.WithName("example"))
	if err := s.Start(); err != nil {
		fmt.Println("start:", err)
		return
	}
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	s.EnqueueSync(
		func() error { return nil },
		func() { fmt.Println("first failed"); wg.Done() },
		func() { fmt.Println("first succeeded"); wg.Done() },
	)
	s.EnqueueSync(
		func() error { return errors.New("disk full") },
		func() { fmt.Println("second failed"); wg.Done() },
		func() { fmt.Println("second succeeded"); wg.Done() },
	)

	wg.Wait()
	// Output:
	// first succeeded
	// second failed
}

func ExampleScheduler_EnqueueSyncResult() {
	s := background.New()
	_ = s.Start()
	defer s.Close()

	done := make(chan struct{})
	s.EnqueueSyncResult(func() error { panic("bad input") }, func(r background.Result) {
		var perr *background.PanicError
		fmt.Println("failed:", r.Failed(), "panic:", errors.As(r.Err, &perr))
		close(done)
	})

	<-done
	// Output:
	// failed: true panic: true
}

func ExampleScheduler_EnqueueAsync() {
	s := background.New()
	_ = s.Start()
	defer s.Close()

	var wg sync.WaitGroup
	results := make([]int, 3)
	for i := range results {
		i := i
		wg.Add(1)
		s.EnqueueAsync(func() error {
			defer wg.Done()
			results[i] = i * i
			return nil
		})
	}

	wg.Wait()
	fmt.Println(results)
	// Output:
	// [0 1 4]
}

func ExampleScheduler_Stop() {
	s := background.New()
	_ = s.Start()

	s.Stop()
	<-s.Done()

	stats := s.Stats()
	fmt.Println("stopped:", stats.Stopped, "closed:", stats.Closed)

	_ = s.Close()
	fmt.Println("closed:", s.Stats().Closed)
	// Output:
	// stopped: true closed: false
	// closed: true
}
