package util

import (
	"testing"
	"time"
)

func TestSortedStringKeys(t *testing.T) {
	m := map[string]int{"c": 1, "a": 2, "b": 3}
	keys := SortedStringKeys(m)
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("expected sorted keys [a b c], got %v", keys)
	}
}

func TestLimiter_AllowsBurstThenThrottles(t *testing.T) {
	l := NewLimiter(1, 2)

	if !l.Allow(1) {
		t.Fatal("expected first event to be allowed")
	}
	if !l.Allow(1) {
		t.Fatal("expected burst to admit a second event")
	}
	if l.Allow(1) {
		t.Fatal("expected third immediate event to be throttled")
	}

	time.Sleep(1100 * time.Millisecond)
	if !l.Allow(1) {
		t.Fatal("expected token to refill after a second")
	}
}
