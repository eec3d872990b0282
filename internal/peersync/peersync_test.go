package peersync

import (
	"testing"
	"time"
)

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 60 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := Backoff(c.attempt); got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestShouldAutoPushSuppressesLoop(t *testing.T) {
	branches := []string{"main"}
	if !ShouldAutoPush("main", branches, "") {
		t.Fatal("expected auto-push for a configured branch with no loop marker")
	}
	if ShouldAutoPush("main", branches, "1") {
		t.Fatal("expected suppression when the loop marker is set")
	}
	if ShouldAutoPush("dev", branches, "") {
		t.Fatal("expected no auto-push for an unconfigured branch")
	}
}
