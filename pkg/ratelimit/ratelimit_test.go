package ratelimit

import (
	"context"
	"testing"
	"time"
)

// TestAllowDrainsBucket 测试桶耗尽后拒绝请求
func TestAllowDrainsBucket(t *testing.T) {
	tb := NewTokenBucket(3, 1)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("第 %d 个请求应该被允许", i)
		}
	}
	if tb.Allow() {
		t.Error("桶耗尽后应该拒绝请求")
	}
}

// TestWaitImmediate 测试有令牌时 Wait 立即返回
func TestWaitImmediate(t *testing.T) {
	tb := NewTokenBucket(1, 1)

	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("Wait 失败: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("有令牌时 Wait 不应该阻塞")
	}
}

// TestWaitContextCancelled 测试桶空时 ctx 取消让 Wait 返回
func TestWaitContextCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	tb.Allow() // 耗尽

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Error("ctx 取消后 Wait 应该返回错误")
	}
}
