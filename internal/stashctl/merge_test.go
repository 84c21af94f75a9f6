package stashctl

import "testing"

func TestThreeWayMergeCleanApply(t *testing.T) {
	base := []byte("line1\nline2\nline3\n")
	ours := []byte("line1\nFIXED\nline3\n")     // fixer changed line2
	theirs := []byte("line1\nline2\nline3\nline4\n") // user appended line4

	merged, conflict := ThreeWayMerge(base, ours, theirs, true)
	if conflict {
		t.Fatalf("expected clean merge, got conflict: %q", merged)
	}
	want := "line1\nFIXED\nline3\nline4\n"
	if string(merged) != want {
		t.Fatalf("merged = %q, want %q", merged, want)
	}
}

func TestThreeWayMergeNoFixerChangeUsesTheirs(t *testing.T) {
	base := []byte("a\nb\n")
	ours := []byte("a\nb\n") // fixer made no change
	theirs := []byte("a\nb\nc\n")

	merged, conflict := ThreeWayMerge(base, ours, theirs, true)
	if conflict {
		t.Fatal("expected no conflict")
	}
	if string(merged) != string(theirs) {
		t.Fatalf("merged = %q, want theirs %q", merged, theirs)
	}
}

func TestThreeWayMergeNoBasePrefersTheirs(t *testing.T) {
	ours := []byte("fixer output\n")
	theirs := []byte("user's unstaged new file\n")
	merged, conflict := ThreeWayMerge(nil, ours, theirs, false)
	if conflict {
		t.Fatal("expected no conflict for a new, unbased file")
	}
	if string(merged) != string(theirs) {
		t.Fatalf("merged = %q, want theirs %q", merged, theirs)
	}
}

func TestThreeWayMergeEmptyTheirsKeepsOurs(t *testing.T) {
	base := []byte("a\n")
	ours := []byte("fixed\n")
	merged, conflict := ThreeWayMerge(base, ours, nil, true)
	if conflict {
		t.Fatal("expected no conflict when there is no unstaged tail")
	}
	if string(merged) != string(ours) {
		t.Fatalf("merged = %q, want ours %q", merged, ours)
	}
}

func TestThreeWayMergePreservesByteExactNewlineAbsence(t *testing.T) {
	base := []byte("line1\nline2")     // no trailing newline
	ours := []byte("FIXED\nline2")     // fixer edited line1, still no trailing newline
	theirs := []byte("line1\nline2")   // unstaged delta did not touch the EOF state

	merged, conflict := ThreeWayMerge(base, ours, theirs, true)
	if conflict {
		t.Fatalf("expected clean merge, got conflict: %q", merged)
	}
	if len(merged) == 0 || merged[len(merged)-1] == '\n' {
		t.Fatalf("merge introduced a trailing newline that wasn't in the baseline: %q", merged)
	}
}
