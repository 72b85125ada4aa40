package mm

import (
	"context"
	"time"

	"github.com/betbot/mmbot/internal/account"
	"github.com/betbot/mmbot/internal/metrics"
	"github.com/betbot/mmbot/internal/nonce"
	"github.com/betbot/mmbot/internal/state"
	"github.com/betbot/mmbot/pkg/logger"
)

// Loop 控制循环：刷新状态 → pulse → 睡眠，可恢复错误永不退出进程。
// 每个账户跑一个 Loop，nonce 操作因此天然串行。
type Loop struct {
	mm        *MarketMaker
	st        *state.State
	sequencer *nonce.Sequencer
	metrics   metrics.Recorder

	interval time.Duration // 两个周期之间的间隔
	backoff  time.Duration // 出错后的固定退避
}

// NewLoop 创建控制循环
func NewLoop(mm *MarketMaker, st *state.State, seq *nonce.Sequencer, rec metrics.Recorder, interval, backoff time.Duration) *Loop {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Loop{
		mm:        mm,
		st:        st,
		sequencer: seq,
		metrics:   rec,
		interval:  interval,
		backoff:   backoff,
	}
}

// Run 一直运行到 ctx 取消。周期内的任何错误都被捕获、分类、
// 记日志后退避重试；nonce 冲突会先重置 sequencer 再进入下一轮。
func (l *Loop) Run(ctx context.Context) error {
	for {
		loopStart := time.Now()

		if err := l.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			l.metrics.SetLastError(time.Now())

			if account.IsNonceConflict(err) {
				logger.Errorf("检测到 nonce 冲突，重置 sequencer: %v", err)
				l.sequencer.Reset()
			} else {
				logger.Errorf("周期执行失败: %v", err)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.backoff):
			}
		}

		l.metrics.SetLoopTime(time.Since(loopStart))

		logger.Infof("休眠 %s 后进入下一周期", l.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) error {
	updateStart := time.Now()
	if err := l.st.Update(ctx); err != nil {
		return err
	}
	l.metrics.SetStateUpdateTime(time.Since(updateStart))

	position := l.st.Account.Position()
	l.metrics.SetPosition(position.TotalBase(), position.TotalQuote())

	logger.Infof("公允价: %s", l.st.FairPrice())
	logger.Infof("当前仓位: base=%s quote=%s", position.TotalBase(), position.TotalQuote())
	PrettyPrintBook(l.st.Account.Orders().Active)

	return l.mm.Pulse(ctx)
}
