package main

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(10) // 10 req/sec

	if !rl.Allow("1.2.3.4") {
		t.Error("first request should be allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("different IP should be allowed")
	}
	if rl.Len() != 2 {
		t.Errorf("expected 2 tracked IPs, got %d", rl.Len())
	}
}

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(5) // 5 req/sec, burst = 10

	ip := "10.0.0.1"

	allowed := 0
	for i := 0; i < 20; i++ {
		if rl.Allow(ip) {
			allowed++
		}
	}

	if allowed < 5 {
		t.Errorf("expected at least 5 allowed in burst, got %d", allowed)
	}
	if allowed >= 20 {
		t.Error("rate limiter should have blocked some requests")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0)

	for i := 0; i < 1000; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d blocked with limiting disabled", i)
		}
	}
	if rl.Len() != 0 {
		t.Errorf("disabled limiter should not track IPs, got %d", rl.Len())
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.Allow("1.2.3.4")
	rl.Allow("5.6.7.8")

	if n := rl.sweep(time.Now().Add(-time.Minute)); n != 0 {
		t.Errorf("fresh entries swept: %d", n)
	}
	if n := rl.sweep(time.Now().Add(time.Minute)); n != 2 {
		t.Errorf("expected 2 swept, got %d", n)
	}
	if rl.Len() != 0 {
		t.Errorf("expected empty limiter, got %d", rl.Len())
	}
}

func TestRateLimiter_RunStopsOnCancel(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.Allow("1.2.3.4")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx, 5*time.Millisecond, 0)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for rl.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rl.Len() != 0 {
		t.Error("idle entry was not swept")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
