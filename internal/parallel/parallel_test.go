package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEach(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4}

	var counter int64
	n := 1000
	seen := make([]int32, n)

	err := Each(context.Background(), n, func(_ context.Context, i int) error {
		atomic.AddInt64(&counter, 1)
		atomic.AddInt32(&seen[i], 1)
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
	for i, s := range seen {
		if s != 1 {
			t.Fatalf("job %d ran %d times", i, s)
		}
	}
}

func TestEach_Bounded(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3}

	var inFlight, peak int64
	err := Each(context.Background(), 50, func(_ context.Context, _ int) error {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
				break
			}
		}
		atomic.AddInt64(&inFlight, -1)
		return nil
	}, cfg)
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if peak > 3 {
		t.Errorf("peak concurrency %d exceeds 3 workers", peak)
	}
}

func TestEach_Sequential(t *testing.T) {
	var order []int
	err := Each(context.Background(), 5, func(_ context.Context, i int) error {
		order = append(order, i)
		return nil
	}, Sequential())
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("sequential order = %v", order)
		}
	}
}

func TestEach_Error(t *testing.T) {
	boom := errors.New("boom")
	for _, cfg := range []Config{Sequential(), {Enabled: true, NumWorkers: 4}} {
		err := Each(context.Background(), 100, func(_ context.Context, i int) error {
			if i == 7 {
				return boom
			}
			return nil
		}, cfg)
		if !errors.Is(err, boom) {
			t.Errorf("workers=%d: expected boom, got %v", cfg.NumWorkers, err)
		}
	}
}

func TestEach_SequentialStopsAtError(t *testing.T) {
	var ran int64
	_ = Each(context.Background(), 10, func(_ context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		if i == 2 {
			return errors.New("stop")
		}
		return nil
	}, Sequential())
	if ran != 3 {
		t.Errorf("Expected 3 jobs, got %d", ran)
	}
}

func TestEach_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int64
	err := Each(ctx, 10, func(_ context.Context, _ int) error {
		atomic.AddInt64(&ran, 1)
		return nil
	}, Config{Enabled: true, NumWorkers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if ran != 0 {
		t.Errorf("Expected no jobs to run, got %d", ran)
	}
}

func BenchmarkEach(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = Each(context.Background(), n, func(_ context.Context, i int) error {
				atomic.AddInt64(&sum, int64(i))
				return nil
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			_ = Each(context.Background(), n, func(_ context.Context, i int) error {
				atomic.AddInt64(&sum, int64(i))
				return nil
			}, Sequential())
		}
	})
}
