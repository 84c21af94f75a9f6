// Package scheduler runs a Plan's Jobs on a worker pool (spec §4.4):
// dependency-ordered admission, sorted-path contention locking, an
// exclusive global lock, check_first short-circuiting, an interactive
// terminal slot, and cooperative cancellation.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/jdx/hk/internal/obs"
	"github.com/jdx/hk/internal/planner"
)

// Status is a Job's position in the spec §4.4 state machine.
type Status string

// Recognized statuses.
const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusSkipped   Status = "skipped"
)

// Outcome is what a Runner reports for one Job execution.
type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error // non-nil on a runner-internal failure (distinct from a non-zero exit code)
}

// Runner executes one Job's command(s). Implementations live in
// internal/hookrun, keeping process-spawning and template rendering out
// of the scheduler itself.
type Runner interface {
	Run(ctx context.Context, job planner.Job) (Outcome, error)
}

// Result is the scheduler's final record for one Job.
type Result struct {
	Job    planner.Job
	Status Status
	Outcome
}

// Options configures one Plan execution.
type Options struct {
	Workers     int
	FailFast    bool
	Logger      *obs.Logger
	ContentionSet func(job planner.Job) []string // defaults to job.Files if nil
}

// Scheduler runs one Plan to completion.
type Scheduler struct {
	plan    *planner.Plan
	runner  Runner
	opts    Options
	log     *obs.Logger

	mu        sync.Mutex // guards everything below: single state mutex per spec §9
	status    map[string]Status
	done      map[string]bool
	failed    bool
	aborting  bool
	pathLocks map[string]bool
	exclusive bool
	results   []Result

	interactive *Slot
}

// New constructs a Scheduler for one Plan.
func New(plan *planner.Plan, runner Runner, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = obs.Discard
	}
	s := &Scheduler{
		plan:      plan,
		runner:    runner,
		opts:      opts,
		log:       log,
		status:    map[string]Status{},
		done:      map[string]bool{},
		pathLocks: map[string]bool{},
		interactive: NewSlot(),
	}
	for _, j := range plan.Jobs {
		s.status[j.ID] = StatusPending
	}
	return s
}

// Run executes every Job in the Plan, honoring depends edges, contention
// locks, exclusivity, and fail-fast, then returns one Result per Job in
// Plan.Jobs order.
func (s *Scheduler) Run(ctx context.Context) ([]Result, error) {
	p := pool.New().WithMaxGoroutines(s.opts.Workers).WithContext(ctx)
	remaining := len(s.plan.Jobs)

	byID := map[string]planner.Job{}
	for _, j := range s.plan.Jobs {
		byID[j.ID] = j
	}

	var cond sync.Cond
	cond.L = &s.mu
	finished := 0 // Jobs completed so far, guarded by s.mu

	// admit runs one scheduling pass: for every still-Pending Job whose
	// dependencies are terminal and whose contention set is free, flip it
	// to Running and launch it on the pool. Repeated each time a Job
	// finishes, since that's the only event that can unblock others.
	var admit func()
	admit = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ctx.Err() != nil || s.aborting {
			return
		}
		for _, j := range s.plan.Jobs {
			if s.status[j.ID] != StatusPending {
				continue
			}
			if !s.dependenciesTerminal(j) {
				continue
			}
			if s.failed && s.opts.FailFast {
				s.status[j.ID] = StatusAborted
				s.done[j.ID] = true
				remaining--
				continue
			}
			cset := s.contentionSet(j)
			if !s.tryAcquire(j, cset) {
				continue
			}
			s.status[j.ID] = StatusRunning
			job := j
			// p.Go blocks while every worker is busy, and a busy worker needs
			// s.mu (held here) to finish, so submit from its own goroutine.
			go p.Go(func(ctx context.Context) error {
				outcome, _ := s.runner.Run(ctx, job)
				s.mu.Lock()
				status := StatusSucceeded
				if outcome.Err != nil || outcome.ExitCode != 0 {
					status = StatusFailed
					s.failed = true
				}
				s.status[job.ID] = status
				s.done[job.ID] = true
				s.results = append(s.results, Result{Job: job, Status: status, Outcome: outcome})
				s.releaseAll(job, cset)
				remaining--
				finished++
				s.log.Event("job.end", "step", job.ID, "status", string(status))
				s.mu.Unlock()
				cond.Broadcast()
				return nil
			})
		}
	}

	s.log.Event("job.start", "hook", s.plan.Hook, "jobs", len(s.plan.Jobs))

	// wake admit() when the context is cancelled, so a stuck wait doesn't
	// outlive a SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.aborting = true
		s.mu.Unlock()
		cond.Broadcast()
	}()

	s.mu.Lock()
	for remaining > 0 {
		seen := finished
		s.mu.Unlock()
		admit()
		s.mu.Lock()
		if remaining == 0 {
			break
		}
		if s.aborting {
			for _, j := range s.plan.Jobs {
				if s.status[j.ID] == StatusPending || s.status[j.ID] == StatusReady {
					s.status[j.ID] = StatusAborted
					s.done[j.ID] = true
					s.results = append(s.results, Result{Job: j, Status: StatusAborted})
					remaining--
				}
			}
			if remaining == 0 {
				break
			}
		}
		// a Job that finished while admit() ran broadcast before this Wait,
		// so only wait when none has finished since this pass began
		if finished == seen {
			cond.Wait()
		}
	}
	s.mu.Unlock()

	_ = p.Wait()

	out := make([]Result, 0, len(s.plan.Jobs))
	byJobID := map[string]Result{}
	for _, r := range s.results {
		byJobID[r.Job.ID] = r
	}
	for _, j := range s.plan.Jobs {
		if r, ok := byJobID[j.ID]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, Result{Job: j, Status: s.status[j.ID]})
	}

	if s.failed {
		return out, fmt.Errorf("one or more jobs failed")
	}
	return out, nil
}

func (s *Scheduler) dependenciesTerminal(j planner.Job) bool {
	for _, dep := range j.DependsOn {
		if !s.done[dep] {
			return false
		}
	}
	return true
}

func (s *Scheduler) contentionSet(j planner.Job) []string {
	if s.opts.ContentionSet != nil {
		return s.opts.ContentionSet(j)
	}
	out := make([]string, len(j.Files))
	copy(out, j.Files)
	for i := range out {
		out[i] = filepath.Clean(out[i])
	}
	sort.Strings(out)
	return out
}

// tryAcquire attempts to lock every path in cset atomically, in sorted
// order (spec §4.4: "lock in sorted path order to prevent deadlock").
// Caller must hold s.mu.
func (s *Scheduler) tryAcquire(j planner.Job, cset []string) bool {
	if s.exclusive {
		return false
	}
	if j.Step.Exclusive {
		if len(s.pathLocks) > 0 {
			return false
		}
		s.exclusive = true
		return true
	}
	for _, p := range cset {
		if s.pathLocks[p] {
			return false
		}
	}
	for _, p := range cset {
		s.pathLocks[p] = true
	}
	return true
}

// releaseAll frees the locks a Job held. Caller must hold s.mu.
func (s *Scheduler) releaseAll(j planner.Job, cset []string) {
	if j.Step.Exclusive {
		s.exclusive = false
		return
	}
	for _, p := range cset {
		delete(s.pathLocks, p)
	}
}
