package obs

import (
	"bytes"
	"strings"
	"testing"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, env(map[string]string{"HK_LOG": "warn"}))
	l.Info("skipped")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Fatalf("info message should be gated out: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn message missing: %q", out)
	}
}

func TestEventRequiresTrace(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, env(nil))
	l.Event("job.start", "step", "lint")
	if buf.Len() != 0 {
		t.Fatalf("Event() wrote output without HK_TRACE: %q", buf.String())
	}

	l2 := New(&buf, env(map[string]string{"HK_TRACE": "1"}))
	l2.Event("job.start", "step", "lint")
	if !strings.Contains(buf.String(), "job.start") || !strings.Contains(buf.String(), "step=lint") {
		t.Fatalf("Event() missing kind/fields: %q", buf.String())
	}
}

func TestFieldFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, env(nil))
	l.Info("plan built", "steps", 3, "hook", "pre-commit")
	out := buf.String()
	if !strings.Contains(out, "steps=3") || !strings.Contains(out, "hook=pre-commit") {
		t.Fatalf("unexpected field formatting: %q", out)
	}
}
