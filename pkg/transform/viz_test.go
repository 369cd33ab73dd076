package transform

import (
	"strings"
	"testing"
)

func TestPipelineDOT(t *testing.T) {
	dot := PipelineDOT([]string{"xor", "zstd"})
	if !strings.HasPrefix(dot, "digraph pipeline {") {
		t.Errorf("unexpected DOT prefix: %q", dot[:min(len(dot), 40)])
	}
	for _, want := range []string{
		`"s0" [label="xor"]`,
		`"s1" [label="zstd"]`,
		`"in" -> "s0"`,
		`"s0" -> "s1"`,
		`"s1" -> "out"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}

func TestPipelineDOTEmpty(t *testing.T) {
	dot := PipelineDOT(nil)
	if !strings.Contains(dot, `"in" -> "out"`) {
		t.Errorf("empty pipeline should link payload straight through:\n%s", dot)
	}
}
