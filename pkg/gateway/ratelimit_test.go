package gateway

import (
	"testing"
	"time"
)

func TestLimiterRejectsAtLimit(t *testing.T) {
	l := newSlidingLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.allow(now) {
			t.Fatalf("request %d rejected below the limit", i+1)
		}
	}
	if l.allow(now) {
		t.Error("request beyond the limit was admitted")
	}

	snap := l.snapshot("openai", now)
	if snap.InWindow != 3 {
		t.Errorf("in-window count = %d, want 3", snap.InWindow)
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	l := newSlidingLimiter(2, time.Minute)
	now := time.Now()

	l.allow(now)
	l.allow(now)
	if l.allow(now.Add(30 * time.Second)) {
		t.Error("admission inside the window should have been rejected")
	}

	// Both admissions age out of the trailing window.
	if !l.allow(now.Add(61 * time.Second)) {
		t.Error("admission after the window slid should have been allowed")
	}
}

func TestLimiterDisabledByZeroLimit(t *testing.T) {
	l := newSlidingLimiter(0, time.Minute)
	now := time.Now()
	for i := 0; i < 100; i++ {
		if !l.allow(now) {
			t.Fatal("zero limit should disable rate limiting")
		}
	}
}

func TestLimiterConcurrentAdmissions(t *testing.T) {
	l := newSlidingLimiter(10, time.Minute)
	now := time.Now()

	results := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func() {
			results <- l.allow(now)
		}()
	}

	admitted := 0
	for i := 0; i < 50; i++ {
		if <-results {
			admitted++
		}
	}
	if admitted != 10 {
		t.Errorf("admitted %d concurrent requests, want exactly 10", admitted)
	}
}
