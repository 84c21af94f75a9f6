package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/planner"
)

type fakeRunner struct {
	mu        sync.Mutex
	running   map[string]bool
	maxInFlight int32
	inFlight    int32
	fail      map[string]bool
	delay     time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, job planner.Job) (Outcome, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max {
			break
		}
		if atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.inFlight, -1)
	code := 0
	if f.fail[job.ID] {
		code = 1
	}
	return Outcome{ExitCode: code}, nil
}

func job(id string, files []string, deps ...string) planner.Job {
	return planner.Job{ID: id, Step: &hkconfig.Step{Name: id}, Files: files, DependsOn: deps}
}

func TestSchedulerRunsAllJobs(t *testing.T) {
	p := &planner.Plan{Hook: "check", Jobs: []planner.Job{
		job("a", []string{"a.go"}),
		job("b", []string{"b.go"}),
	}}
	r := &fakeRunner{fail: map[string]bool{}}
	s := New(p, r, Options{Workers: 2})
	results, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Status != StatusSucceeded {
			t.Fatalf("job %s status = %s, want succeeded", res.Job.ID, res.Status)
		}
	}
}

func TestSchedulerSerializesContendingJobs(t *testing.T) {
	p := &planner.Plan{Hook: "check", Jobs: []planner.Job{
		job("a", []string{"shared.go"}),
		job("b", []string{"shared.go"}),
	}}
	r := &fakeRunner{fail: map[string]bool{}, delay: 20 * time.Millisecond}
	s := New(p, r, Options{Workers: 2})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.maxInFlight > 1 {
		t.Fatalf("jobs touching the same path ran concurrently: maxInFlight=%d", r.maxInFlight)
	}
}

func TestSchedulerRespectsDependsOrdering(t *testing.T) {
	var order []string
	var mu sync.Mutex
	p := &planner.Plan{Hook: "check", Jobs: []planner.Job{
		job("a", []string{"a.go"}),
		job("b", []string{"b.go"}, "a"),
	}}
	r := &recordingRunner{record: func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}}
	s := New(p, r, Options{Workers: 2})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected a before b, got %v", order)
	}
}

type recordingRunner struct{ record func(string) }

func (r *recordingRunner) Run(ctx context.Context, job planner.Job) (Outcome, error) {
	r.record(job.ID)
	return Outcome{ExitCode: 0}, nil
}

func TestSchedulerFailFastAbortsPending(t *testing.T) {
	p := &planner.Plan{Hook: "check", Jobs: []planner.Job{
		job("a", []string{"a.go"}),
		job("b", []string{"b.go"}, "a"),
	}}
	r := &fakeRunner{fail: map[string]bool{"a": true}}
	s := New(p, r, Options{Workers: 2, FailFast: true})
	results, err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failed job")
	}
	byID := map[string]Status{}
	for _, res := range results {
		byID[res.Job.ID] = res.Status
	}
	if byID["a"] != StatusFailed {
		t.Fatalf("job a status = %s, want failed", byID["a"])
	}
	if byID["b"] != StatusAborted {
		t.Fatalf("job b status = %s, want aborted", byID["b"])
	}
}

func TestSchedulerExclusiveBlocksOthers(t *testing.T) {
	excl := job("a", []string{"a.go"})
	excl.Step.Exclusive = true
	p := &planner.Plan{Hook: "check", Jobs: []planner.Job{excl, job("b", []string{"b.go"})}}
	r := &fakeRunner{fail: map[string]bool{}, delay: 20 * time.Millisecond}
	s := New(p, r, Options{Workers: 2})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.maxInFlight > 1 {
		t.Fatalf("exclusive job ran concurrently with another: maxInFlight=%d", r.maxInFlight)
	}
}
