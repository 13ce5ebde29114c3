package main

import (
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}

	tests := []struct {
		p    int
		want time.Duration
	}{
		{0, time.Millisecond},
		{50, 50 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := percentile(samples, tc.p); got != tc.want {
			t.Fatalf("p%d: expected %s, got %s", tc.p, tc.want, got)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Fatal("expected zero for empty samples")
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := computeStats(time.Second, nil, 3)
	if s.ops != 0 || s.total != time.Second {
		t.Fatalf("unexpected stats %+v", s)
	}
}
