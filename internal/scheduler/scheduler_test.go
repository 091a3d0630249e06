package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/stagerun/internal/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// tracker считает одновременно активные jobs.
type tracker struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (tr *tracker) job(name string, d time.Duration, err error) *domain.Job {
	return domain.NewJob(name, func(ctx context.Context) (any, error) {
		n := tr.active.Add(1)
		for {
			p := tr.peak.Load()
			if n <= p || tr.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(d)
		tr.active.Add(-1)
		if err != nil {
			return nil, err
		}
		return name, nil
	})
}

func TestRun_Completeness(t *testing.T) {
	for _, n := range []int{0, 1, 7, 25} {
		for _, c := range []int{1, 3, 8} {
			t.Run(fmt.Sprintf("n=%d/c=%d", n, c), func(t *testing.T) {
				tr := &tracker{}
				jobs := make([]*domain.Job, n)
				for i := range jobs {
					var err error
					if i%4 == 3 {
						err = errors.New("boom")
					}
					jobs[i] = tr.job(fmt.Sprintf("job%d", i), time.Millisecond, err)
				}

				res := New(Config{NCores: c, Logger: quiet}).Run(context.Background(), jobs)

				if res.Completed+res.Failed != n {
					t.Errorf("completed+failed = %d, want %d", res.Completed+res.Failed, n)
				}
				for _, job := range res.Jobs {
					if !job.IsFinished() {
						t.Errorf("job %s not terminal: %s", job.Name, job.Status)
					}
				}
				if int(tr.peak.Load()) > c {
					t.Errorf("peak concurrency %d exceeds bound %d", tr.peak.Load(), c)
				}
			})
		}
	}
}

func TestRun_ConcurrencyIsUsed(t *testing.T) {
	tr := &tracker{}
	jobs := make([]*domain.Job, 8)
	for i := range jobs {
		jobs[i] = tr.job(fmt.Sprintf("job%d", i), 20*time.Millisecond, nil)
	}

	New(Config{NCores: 4, Logger: quiet}).Run(context.Background(), jobs)

	if tr.peak.Load() < 2 {
		t.Errorf("expected parallel execution, peak was %d", tr.peak.Load())
	}
	if tr.peak.Load() > 4 {
		t.Errorf("peak concurrency %d exceeds 4", tr.peak.Load())
	}
}

func TestRun_SequentialOrder(t *testing.T) {
	var mu sync.Mutex
	var started []string

	jobs := make([]*domain.Job, 10)
	want := make([]string, 10)
	for i := range jobs {
		name := fmt.Sprintf("job%d", i)
		want[i] = name
		jobs[i] = domain.NewJob(name, func(ctx context.Context) (any, error) {
			mu.Lock()
			started = append(started, name)
			mu.Unlock()
			// Ранние jobs длиннее, чтобы выявить нарушение порядка
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return nil, nil
		})
	}

	New(Config{NCores: 1, Logger: quiet}).Run(context.Background(), jobs)

	if !slices.Equal(started, want) {
		t.Errorf("start order %v, want %v", started, want)
	}
}

func TestRun_FailureDoesNotCancelSiblings(t *testing.T) {
	var ran atomic.Int32
	jobs := []*domain.Job{
		domain.NewJob("bad", func(ctx context.Context) (any, error) {
			ran.Add(1)
			return nil, errors.New("boom")
		}),
		domain.NewJob("panics", func(ctx context.Context) (any, error) {
			ran.Add(1)
			panic("kaboom")
		}),
		domain.NewJob("good", func(ctx context.Context) (any, error) {
			ran.Add(1)
			time.Sleep(5 * time.Millisecond)
			return 42, nil
		}),
	}

	res := New(Config{NCores: 2, Logger: quiet}).Run(context.Background(), jobs)

	if ran.Load() != 3 {
		t.Errorf("expected all 3 jobs to run, got %d", ran.Load())
	}
	if res.Completed != 1 || res.Failed != 2 {
		t.Errorf("expected 1 completed / 2 failed, got %d / %d", res.Completed, res.Failed)
	}
	if jobs[2].Output != 42 {
		t.Errorf("expected output 42, got %v", jobs[2].Output)
	}
	if !errors.Is(jobs[1].Err, ErrJobPanicked) {
		t.Errorf("expected ErrJobPanicked, got %v", jobs[1].Err)
	}
	if res.AllFailed() {
		t.Error("batch with a completed job is not all-failed")
	}

	err := res.Err()
	if !errors.Is(err, ErrJobFailed) {
		t.Errorf("expected ErrJobFailed in batch error, got %v", err)
	}
}

func TestRun_CancelledContextStillDrains(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	jobs := make([]*domain.Job, 5)
	for i := range jobs {
		jobs[i] = domain.NewJob(fmt.Sprintf("job%d", i), func(ctx context.Context) (any, error) {
			ran.Add(1)
			return nil, nil
		})
	}

	res := New(Config{NCores: 1, Logger: quiet}).Run(ctx, jobs)

	if ran.Load() != 5 || res.Completed != 5 {
		t.Errorf("expected batch to drain, ran=%d completed=%d", ran.Load(), res.Completed)
	}
}

func TestRun_JobNotReused(t *testing.T) {
	var ran atomic.Int32
	job := domain.NewJob("once", func(ctx context.Context) (any, error) {
		ran.Add(1)
		return "out", nil
	})
	s := New(Config{NCores: 1, Logger: quiet})

	first := s.Run(context.Background(), []*domain.Job{job})
	res := s.Run(context.Background(), []*domain.Job{job})

	if ran.Load() != 1 {
		t.Errorf("terminal job must not run again, ran %d times", ran.Load())
	}
	// завершённый job не переписывается повторной подачей
	if job.Status != domain.JobStatusCompleted || job.Output != "out" || job.Err != nil {
		t.Errorf("job must stay COMPLETED, got %s (output=%v, err=%v)", job.Status, job.Output, job.Err)
	}
	if first.Completed != 1 || first.Failed != 0 || first.Err() != nil {
		t.Errorf("first batch changed after reuse: %+v, err=%v", first, first.Err())
	}

	if len(res.Jobs) != 0 || len(res.Rejected) != 1 || res.Rejected[0].Job != job {
		t.Fatalf("expected one rejected job, got %+v", res)
	}
	if res.Failed != 1 || res.Total() != 1 || !res.AllFailed() {
		t.Errorf("unexpected counts %+v", res)
	}
	if !errors.Is(res.Err(), ErrJobNotPending) {
		t.Errorf("expected ErrJobNotPending, got %v", res.Err())
	}
}

func TestRun_DuplicateInBatch(t *testing.T) {
	var ran atomic.Int32
	job := domain.NewJob("dup", func(ctx context.Context) (any, error) {
		ran.Add(1)
		time.Sleep(time.Millisecond)
		return nil, nil
	})
	other := domain.NewJob("other", func(ctx context.Context) (any, error) {
		return nil, nil
	})

	res := New(Config{NCores: 2, Logger: quiet}).Run(context.Background(), []*domain.Job{job, other, job})

	if ran.Load() != 1 {
		t.Errorf("duplicate job must run once, ran %d times", ran.Load())
	}
	if res.Completed != 2 || res.Failed != 1 || res.Total() != 3 {
		t.Errorf("expected 2 completed / 1 failed of 3, got %d / %d of %d", res.Completed, res.Failed, res.Total())
	}
	if len(res.Jobs) != 2 || res.Jobs[0] != job || res.Jobs[1] != other {
		t.Errorf("unexpected dispatched jobs %v", res.Jobs)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Job != job || !errors.Is(res.Rejected[0].Err, ErrJobNotPending) {
		t.Errorf("expected duplicate to be rejected, got %+v", res.Rejected)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("duplicate job must stay COMPLETED, got %s", job.Status)
	}
}

type countingHook struct {
	started, finished atomic.Int32
}

func (h *countingHook) JobStarted(*domain.Job)  { h.started.Add(1) }
func (h *countingHook) JobFinished(*domain.Job) { h.finished.Add(1) }

func TestRun_Hook(t *testing.T) {
	hook := &countingHook{}
	tr := &tracker{}
	jobs := []*domain.Job{tr.job("a", 0, nil), tr.job("b", 0, errors.New("x"))}

	New(Config{NCores: 2, Logger: quiet, Hook: hook}).Run(context.Background(), jobs)

	if hook.started.Load() != 2 || hook.finished.Load() != 2 {
		t.Errorf("hook calls: started=%d finished=%d", hook.started.Load(), hook.finished.Load())
	}
}

func TestRun_Empty(t *testing.T) {
	res := New(Config{Logger: quiet}).Run(context.Background(), nil)
	if res.Total() != 0 || res.AllFailed() || res.Err() != nil {
		t.Errorf("unexpected result for empty batch: %+v", res)
	}
}
