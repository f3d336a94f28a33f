package outbox

import (
	"testing"
	"time"
)

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 1024 * time.Second},
	}
	for _, c := range cases {
		if got := backoffFor(c.attempts); got != c.want {
			t.Errorf("backoffFor(%d) = %v, want %v", c.attempts, got, c.want)
		}
	}
}

func TestBackoffFor_CapsAtOneHour(t *testing.T) {
	if got := backoffFor(20); got != time.Hour {
		t.Errorf("backoffFor(20) = %v, want %v (capped)", got, time.Hour)
	}
}

func TestBackoffFor_Monotonic(t *testing.T) {
	prev := backoffFor(1)
	for attempts := 2; attempts <= 12; attempts++ {
		next := backoffFor(attempts)
		if next < prev {
			t.Fatalf("backoffFor(%d) = %v is less than backoffFor(%d) = %v", attempts, next, attempts-1, prev)
		}
		prev = next
	}
}
