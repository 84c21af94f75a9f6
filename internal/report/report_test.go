package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/planner"
	"github.com/jdx/hk/internal/scheduler"
)

func TestSummaryHidesUndisplayedSkipReasons(t *testing.T) {
	var buf bytes.Buffer
	r := &Reporter{Out: &buf, DisplaySkipReasons: DefaultDisplaySkipReasons()}
	plan := &planner.Plan{
		Hook: "check",
		Skips: []planner.SkipRecord{
			{Step: "a", Reason: planner.SkipProfileNotEnabled, Message: "no profile"},
			{Step: "b", Reason: planner.SkipNoFilesToProcess, Message: "no files"},
		},
	}
	r.Summary(plan, nil)
	out := buf.String()
	if !strings.Contains(out, "skip a:") {
		t.Fatalf("expected profile-not-enabled skip to be displayed: %q", out)
	}
	if strings.Contains(out, "skip b:") {
		t.Fatalf("no-files-to-process should not be displayed by default: %q", out)
	}
}

func TestSummaryTally(t *testing.T) {
	var buf bytes.Buffer
	r := &Reporter{Out: &buf, DisplaySkipReasons: DefaultDisplaySkipReasons()}
	plan := &planner.Plan{Hook: "check"}
	results := []scheduler.Result{
		{Job: job("a"), Status: scheduler.StatusSucceeded},
		{Job: job("b"), Status: scheduler.StatusFailed, Outcome: scheduler.Outcome{ExitCode: 1}},
	}
	r.Summary(plan, results)
	if !strings.Contains(buf.String(), "1 succeeded, 1 failed, 0 aborted, 0 skipped") {
		t.Fatalf("unexpected tally line: %q", buf.String())
	}
}

func TestWithOutputHiddenMode(t *testing.T) {
	r := &Reporter{DisplaySkipReasons: map[planner.SkipReason]bool{}}
	j := job("lint")
	j.Step.OutputSummary = hkconfig.OutputHide
	res := scheduler.Result{Job: j, Status: scheduler.StatusFailed, Outcome: scheduler.Outcome{Stderr: []byte("boom")}}
	line := r.formatResult(res)
	if strings.Contains(line, "boom") {
		t.Fatalf("output_summary=hide must suppress captured output: %q", line)
	}
}

func TestMarshalPlanRoundTrips(t *testing.T) {
	plan := &planner.Plan{
		Hook: "check",
		Jobs: []planner.Job{{ID: "lint", Step: &hkconfig.Step{Name: "lint"}, Files: []string{"a.go"}}},
	}
	data, err := MarshalPlan(plan)
	if err != nil {
		t.Fatal(err)
	}
	var decoded PlanJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Hook != "check" || len(decoded.Jobs) != 1 || decoded.Jobs[0].ID != "lint" {
		t.Fatalf("unexpected round-trip: %+v", decoded)
	}
}

func job(id string) planner.Job {
	return planner.Job{ID: id, Step: &hkconfig.Step{Name: id}}
}
