package middleware

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker("test", 2, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := cb.Call(ctx, func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Call #%d = %v, want boom", i+1, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	// 开启期间直接拒绝，不执行函数
	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Call while open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("function must not run while the breaker is open")
	}
}

func TestCircuitBreakerRecovers(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	if err := cb.Call(ctx, func() error { return errors.New("boom") }); err == nil {
		t.Fatal("expected failure")
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	// 超过重置时间后半开，成功调用恢复关闭
	if err := cb.Call(ctx, func() error { return nil }); err != nil {
		t.Fatalf("Call after reset = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probe", cb.GetState())
	}
}

func TestTokenBucketExhausts(t *testing.T) {
	ctx := context.Background()
	tb := NewTokenBucket(3, 1)

	for i := 0; i < 3; i++ {
		if !tb.Allow(ctx) {
			t.Fatalf("request #%d should pass within capacity", i+1)
		}
	}
	if tb.Allow(ctx) {
		t.Fatal("bucket should be empty")
	}
}

func TestSlidingWindowLimits(t *testing.T) {
	ctx := context.Background()
	sw := NewSlidingWindow(time.Minute, 2)

	if !sw.Allow(ctx) || !sw.Allow(ctx) {
		t.Fatal("first two requests should pass")
	}
	if sw.Allow(ctx) {
		t.Fatal("third request within the window should be rejected")
	}
}
