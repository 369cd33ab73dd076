package fn

import (
	"reflect"
	"testing"
)

func TestT(t *testing.T) {
	if got := T(true, "yes", "no"); got != "yes" {
		t.Errorf("T(true) = %q, want yes", got)
	}
	if got := T(false, 1, 2); got != 2 {
		t.Errorf("T(false) = %d, want 2", got)
	}
}

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, func(n int) int { return n * n })
	if want := []int{1, 4, 9}; !reflect.DeepEqual(got, want) {
		t.Errorf("Map = %v, want %v", got, want)
	}
	if got := Map(nil, func(n int) int { return n }); len(got) != 0 {
		t.Errorf("Map(nil) = %v, want empty", got)
	}
}
