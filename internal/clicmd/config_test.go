package clicmd

import (
	"testing"

	"github.com/jdx/hk/internal/hkconfig"
)

func TestLookupField(t *testing.T) {
	r := &hkconfig.Resolved{
		Jobs:      4,
		FailFast:  true,
		Exclude:   []string{"vendor/**", "dist/**"},
		SkipSteps: []string{"slow-lint"},
	}

	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "jobs", want: "4"},
		{key: "fail_fast", want: "true"},
		{key: "exclude", want: "vendor/**,dist/**"},
		{key: "skip_steps", want: "slow-lint"},
		{key: "skip_hooks", want: ""},
		{key: "no-such-key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := lookupField(r, tt.key)
			if tt.wantErr {
				if ok {
					t.Fatalf("expected lookup of %q to fail", tt.key)
				}
				return
			}
			if !ok {
				t.Fatalf("lookup of %q unexpectedly failed", tt.key)
			}
			if got != tt.want {
				t.Fatalf("lookupField(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
