package nonce

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/mmbot/pkg/logger"
)

// DefaultTrustWindow 本地缓存 nonce 的默认信任窗口。
// 窗口内假设最近本地发出的交易仍在 pending，链上权威值反而是旧的。
const DefaultTrustWindow = 60 * time.Second

// Source 提供账户的权威 nonce（通常直接查链）
type Source interface {
	PendingNonce(ctx context.Context) (uint64, error)
}

// SourceFunc 函数适配器
type SourceFunc func(ctx context.Context) (uint64, error)

func (f SourceFunc) PendingNonce(ctx context.Context) (uint64, error) { return f(ctx) }

// Sequencer 单账户 nonce 分配器，显式的两态机：
// Unknown（无缓存，下次必须查权威源）和 Trusted(nonce, since)
// （缓存值在信任窗口内可直接使用）。
//
// 同一账户的 nonce 操作必须串行；内部用互斥锁保护，
// 多 goroutine 的宿主也不会出现并发分配。
type Sequencer struct {
	mu sync.Mutex

	source      Source
	trustWindow time.Duration
	now         func() time.Time // 可注入时钟，测试用

	trusted bool
	nonce   uint64
	since   time.Time
}

// Option 构造选项
type Option func(*Sequencer)

// WithTrustWindow 覆盖信任窗口
func WithTrustWindow(d time.Duration) Option {
	return func(s *Sequencer) { s.trustWindow = d }
}

// WithClock 覆盖时钟
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// NewSequencer 创建 nonce 分配器
func NewSequencer(source Source, opts ...Option) *Sequencer {
	s := &Sequencer{
		source:      source,
		trustWindow: DefaultTrustWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNonce 返回下一笔交易应使用的 nonce。
// 缓存不存在或超过信任窗口时查询权威源，否则直接用缓存值。
func (s *Sequencer) GetNonce(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trusted && s.now().Sub(s.since) < s.trustWindow {
		return s.nonce, nil
	}

	n, err := s.source.PendingNonce(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "查询权威 nonce 失败")
	}

	s.trusted = true
	s.nonce = n
	s.since = s.now()
	return n, nil
}

// IncrementNonce 交易发出后推进缓存值并刷新时间戳
func (s *Sequencer) IncrementNonce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.trusted || s.now().Sub(s.since) >= s.trustWindow {
		n, err := s.source.PendingNonce(ctx)
		if err != nil {
			return errors.Wrap(err, "查询权威 nonce 失败")
		}
		s.nonce = n
	}

	s.trusted = true
	s.nonce++
	s.since = s.now()
	logger.Debugf("nonce 推进到 %d", s.nonce)
	return nil
}

// Reset 清空缓存，回到 Unknown 态。
// 观察到 nonce 冲突错误时由控制循环调用，下一次 GetNonce 会重新查权威源。
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Warnf("nonce 缓存重置（此前 trusted=%v nonce=%d）", s.trusted, s.nonce)
	s.trusted = false
	s.nonce = 0
	s.since = time.Time{}
}
