// Package report renders a Plan/Scheduler run to the user: pass/fail/skip
// summaries (spec §4.9), output-summary modes per step, timing JSON, and
// skip-reason filtering by `display_skip_reasons`.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jdx/hk/internal/hkconfig"
	"github.com/jdx/hk/internal/planner"
	"github.com/jdx/hk/internal/scheduler"
)

var (
	styleOK   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleFail = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	styleSkip = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// StepTiming is one step's wall-clock duration, emitted in the timing JSON
// when `HK_TIMING_JSON` is set.
type StepTiming struct {
	Step     string        `json:"step"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
}

// Reporter renders a completed run. DisplaySkipReasons controls which
// skip tags are shown in the human summary; all reasons always appear in
// JSON output (spec §4.9).
type Reporter struct {
	Out                io.Writer
	DisplaySkipReasons map[planner.SkipReason]bool
	Color              bool
}

// DefaultDisplaySkipReasons is the set shown when configuration doesn't
// override it (spec §4.9: "default set is {profile-not-enabled}").
func DefaultDisplaySkipReasons() map[planner.SkipReason]bool {
	return map[planner.SkipReason]bool{planner.SkipProfileNotEnabled: true}
}

// Summary renders the human-facing pass/fail/skip report for one run.
func (r *Reporter) Summary(plan *planner.Plan, results []scheduler.Result) {
	for _, res := range results {
		line := r.formatResult(res)
		fmt.Fprintln(r.Out, line)
	}
	for _, s := range plan.Skips {
		if !r.DisplaySkipReasons[s.Reason] {
			continue
		}
		fmt.Fprintln(r.Out, r.style(styleSkip, fmt.Sprintf("skip %s: %s (%s)", s.Step, s.Message, s.Reason)))
	}

	ok, fail, aborted := tally(results)
	fmt.Fprintf(r.Out, "%d succeeded, %d failed, %d aborted, %d skipped\n", ok, fail, aborted, len(plan.Skips))
}

func tally(results []scheduler.Result) (ok, fail, aborted int) {
	for _, res := range results {
		switch res.Status {
		case scheduler.StatusSucceeded:
			ok++
		case scheduler.StatusFailed:
			fail++
		case scheduler.StatusAborted:
			aborted++
		}
	}
	return
}

func (r *Reporter) formatResult(res scheduler.Result) string {
	switch res.Status {
	case scheduler.StatusSucceeded:
		return r.style(styleOK, fmt.Sprintf("ok   %s", res.Job.ID))
	case scheduler.StatusFailed:
		msg := fmt.Sprintf("fail %s (exit %d)", res.Job.ID, res.ExitCode)
		return r.withOutput(res, r.style(styleFail, msg))
	case scheduler.StatusAborted:
		return r.style(styleFail, fmt.Sprintf("abort %s", res.Job.ID))
	default:
		return fmt.Sprintf("%s %s", res.Status, res.Job.ID)
	}
}

// withOutput appends a step's captured output per its OutputSummary mode
// (spec §3 Step.output_summary).
func (r *Reporter) withOutput(res scheduler.Result, header string) string {
	mode := res.Job.Step.OutputSummary
	if mode == "" {
		mode = hkconfig.OutputStderrOnFail
	}
	if mode == hkconfig.OutputHide {
		return header
	}
	failedOnly := mode == hkconfig.OutputStderrOnFail || mode == hkconfig.OutputStdoutOnFail || mode == hkconfig.OutputCombinedOnFail
	if failedOnly && res.Status != scheduler.StatusFailed {
		return header
	}
	var body []byte
	switch mode {
	case hkconfig.OutputStdout, hkconfig.OutputStdoutOnFail:
		body = res.Stdout
	case hkconfig.OutputCombined, hkconfig.OutputCombinedOnFail:
		body = append(append([]byte{}, res.Stdout...), res.Stderr...)
	default:
		body = res.Stderr
	}
	if len(body) == 0 {
		return header
	}
	return header + "\n" + string(body)
}

func (r *Reporter) style(s lipgloss.Style, text string) string {
	if !r.Color {
		return text
	}
	return s.Render(text)
}

// PlanJSON is the `--plan --json` serialization of a Plan (spec §4.3
// "Output: a Plan object that can be serialized as JSON").
type PlanJSON struct {
	Hook  string           `json:"hook"`
	Jobs  []PlanJSONJob    `json:"jobs"`
	Skips []planner.SkipRecord `json:"skips"`
}

// PlanJSONJob is one Job entry of PlanJSON.
type PlanJSONJob struct {
	ID        string   `json:"id"`
	Step      string   `json:"step"`
	Status    string   `json:"status"`
	Files     []string `json:"files"`
	DependsOn []string `json:"depends_on"`
}

// MarshalPlan renders a Plan as the JSON document `--plan --json` emits.
func MarshalPlan(plan *planner.Plan) ([]byte, error) {
	doc := PlanJSON{Hook: plan.Hook, Skips: plan.Skips}
	if doc.Skips == nil {
		doc.Skips = []planner.SkipRecord{}
	}
	for _, j := range plan.Jobs {
		doc.Jobs = append(doc.Jobs, PlanJSONJob{
			ID: j.ID, Step: j.Step.Name, Status: string(planner.StatusIncluded),
			Files: j.Files, DependsOn: j.DependsOn,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// MarshalTiming renders per-step durations as the `HK_TIMING_JSON` document.
func MarshalTiming(timings []StepTiming) ([]byte, error) {
	return json.MarshalIndent(timings, "", "  ")
}
