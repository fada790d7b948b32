package server

import (
	"testing"
	"time"
)

func TestOpRateLimiterWindow(t *testing.T) {
	limiter := newOpRateLimiter(2, time.Second)
	now := time.Now()

	if !limiter.Allow("alice|upload", now) {
		t.Fatal("first call should be allowed")
	}
	if !limiter.Allow("alice|upload", now) {
		t.Fatal("second call should be allowed")
	}
	if limiter.Allow("alice|upload", now) {
		t.Fatal("third call in window should be blocked")
	}

	// Other keys have independent windows.
	if !limiter.Allow("alice|download", now) {
		t.Fatal("different operation should be allowed")
	}
	if !limiter.Allow("bob|upload", now) {
		t.Fatal("different user should be allowed")
	}

	// The window resets after it elapses.
	later := now.Add(time.Second)
	if !limiter.Allow("alice|upload", later) {
		t.Fatal("call after window should be allowed")
	}
}

func TestOpRateLimiterDisabled(t *testing.T) {
	if limiter := newOpRateLimiter(0, time.Second); limiter != nil {
		t.Fatal("zero calls should disable the limiter")
	}

	var limiter *opRateLimiter
	if !limiter.Allow("alice|upload", time.Now()) {
		t.Fatal("nil limiter should allow everything")
	}
}
