package nonce

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource 记录查询次数的权威 nonce 源
type fakeSource struct {
	nonce uint64
	calls int
	err   error
}

func (f *fakeSource) PendingNonce(context.Context) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.nonce, nil
}

// fakeClock 手动推进的时钟
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// TestSequencerMonotonic 测试连续 get/increment 产出严格递增的 nonce，
// 且只在第一次查询权威源。
func TestSequencerMonotonic(t *testing.T) {
	src := &fakeSource{nonce: 7}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	seq := NewSequencer(src, WithClock(clock.Now))

	ctx := context.Background()
	var issued []uint64
	for i := 0; i < 5; i++ {
		n, err := seq.GetNonce(ctx)
		if err != nil {
			t.Fatalf("GetNonce 失败: %v", err)
		}
		issued = append(issued, n)
		if err := seq.IncrementNonce(ctx); err != nil {
			t.Fatalf("IncrementNonce 失败: %v", err)
		}
	}

	for i, n := range issued {
		want := uint64(7 + i)
		if n != want {
			t.Errorf("第 %d 个 nonce 应该为 %d，实际 %d", i, want, n)
		}
	}
	if src.calls != 1 {
		t.Errorf("信任窗口内应该只查询权威源 1 次，实际 %d 次", src.calls)
	}
}

// TestSequencerTrustWindowExpiry 测试缓存过期后重新查询权威源
func TestSequencerTrustWindowExpiry(t *testing.T) {
	src := &fakeSource{nonce: 3}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	seq := NewSequencer(src, WithClock(clock.Now), WithTrustWindow(60*time.Second))

	ctx := context.Background()
	if _, err := seq.GetNonce(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("首次 GetNonce 应该查询权威源，实际 %d 次", src.calls)
	}

	// 窗口内：用缓存
	clock.Advance(59 * time.Second)
	if _, err := seq.GetNonce(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Errorf("窗口内不应该再查询权威源，实际 %d 次", src.calls)
	}

	// 窗口外：链上 nonce 已推进，重新查询
	src.nonce = 9
	clock.Advance(2 * time.Second)
	n, err := seq.GetNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("窗口过期后应该重新查询权威源，实际 %d 次", src.calls)
	}
	if n != 9 {
		t.Errorf("应该返回新的权威值 9，实际 %d", n)
	}
}

// TestSequencerReset 测试 Reset 后下一次 GetNonce 重新查询权威源
func TestSequencerReset(t *testing.T) {
	src := &fakeSource{nonce: 5}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	seq := NewSequencer(src, WithClock(clock.Now))

	ctx := context.Background()
	if _, err := seq.GetNonce(ctx); err != nil {
		t.Fatal(err)
	}
	if err := seq.IncrementNonce(ctx); err != nil {
		t.Fatal(err)
	}

	seq.Reset()

	src.nonce = 12
	n, err := seq.GetNonce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 12 {
		t.Errorf("Reset 后应该返回权威值 12 而不是缓存，实际 %d", n)
	}
	if src.calls != 2 {
		t.Errorf("Reset 后应该重新查询权威源，实际 %d 次", src.calls)
	}
}

// TestSequencerSourceError 测试权威源失败时错误向上传播
func TestSequencerSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc 超时")}
	seq := NewSequencer(src)

	if _, err := seq.GetNonce(context.Background()); err == nil {
		t.Error("权威源失败时 GetNonce 应该报错")
	}
}
