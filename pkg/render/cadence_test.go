package render

import "testing"

func TestStreamCutoffTiers(t *testing.T) {
	cases := []struct {
		isGroup    bool
		contentLen int
		want       int
	}{
		{false, 10, 15},
		{false, 51, 25},
		{false, 201, 45},
		{false, 1001, 90},
		{true, 10, 50},
		{true, 51, 90},
		{true, 201, 120},
		{true, 1001, 180},
	}
	for _, tc := range cases {
		got := StreamCutoff(tc.isGroup, tc.contentLen)
		if got != tc.want {
			t.Fatalf("StreamCutoff(%v, %d) = %d, want %d", tc.isGroup, tc.contentLen, got, tc.want)
		}
	}
}

func TestStreamCutoffMonotonicInLength(t *testing.T) {
	for _, isGroup := range []bool{false, true} {
		last := 0
		for _, n := range []int{0, 50, 51, 200, 201, 1000, 1001, 5000} {
			got := StreamCutoff(isGroup, n)
			if got < last {
				t.Fatalf("cutoff decreased at len %d for group=%v: %d < %d", n, isGroup, got, last)
			}
			last = got
		}
	}
}

func TestGroupThresholdsExceedDirect(t *testing.T) {
	for _, n := range []int{0, 60, 300, 1500} {
		if g, d := StreamCutoff(true, n), StreamCutoff(false, n); g <= d {
			t.Fatalf("group cutoff %d not above direct cutoff %d at len %d", g, d, n)
		}
	}
}

func TestShouldRenderFirstAndFinalAlwaysRender(t *testing.T) {
	if !shouldRender(true, false, "", "x", 1000) {
		t.Fatalf("first item must render regardless of delta")
	}
	if !shouldRender(false, true, "same", "same", 1000) {
		t.Fatalf("finished item must render regardless of delta")
	}
	if shouldRender(false, false, "abcde", "abcdef", 15) {
		t.Fatalf("sub-cutoff delta must not render")
	}
	if !shouldRender(false, false, "a", "a"+string(make([]byte, 20)), 15) {
		t.Fatalf("above-cutoff delta must render")
	}
}
