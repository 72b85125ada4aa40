package txplan

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
	"github.com/betbot/mmbot/pkg/logger"
)

// 撤单和挂单之间留出的结算时间
const settleDelay = time.Second

func init() {
	Register("sequential", func(m market.Market, exec Executor, rec metrics.Recorder) (Planner, error) {
		return NewSequential(m, exec, rec), nil
	})
}

// Sequential 逐笔执行策略：先跑 prologue，再逐个撤单，
// 等一段结算时间后逐个挂单。每个动作一笔交易、一次 nonce 推进、
// 一次确认等待。动作之间互相独立，挂单失败不会回滚之前的撤单。
type Sequential struct {
	market market.Market
	exec   Executor
	rec    metrics.Recorder
}

// NewSequential 创建逐笔执行策略
func NewSequential(m market.Market, exec Executor, rec metrics.Recorder) *Sequential {
	return &Sequential{market: m, exec: exec, rec: rec}
}

func (p *Sequential) BuildAndExecute(ctx context.Context, reconciled domain.ReconciledOrders, prologue []market.Call) error {
	if err := p.executePrologue(ctx, prologue); err != nil {
		return err
	}

	if err := p.deleteQuotes(ctx, reconciled.ToCancel); err != nil {
		return err
	}

	if len(reconciled.ToCancel) > 0 && len(reconciled.ToPlace) > 0 {
		// 给撤单留出结算时间，避免挂单时余额尚未释放
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleDelay):
		}
	}

	return p.createQuotes(ctx, reconciled.ToPlace)
}

func (p *Sequential) executePrologue(ctx context.Context, calls []market.Call) error {
	if len(calls) == 0 {
		return nil
	}
	logger.Infof("执行 %d 个 prologue 调用", len(calls))

	for i, call := range calls {
		if err := p.exec.ExecuteCalls(ctx, []market.Call{call}); err != nil {
			return errors.Wrapf(err, "prologue 第 %d 个调用失败", i)
		}
	}
	return nil
}

func (p *Sequential) deleteQuotes(ctx context.Context, toCancel []domain.BasicOrder) error {
	logger.Infof("撤销 %d 个订单", len(toCancel))

	for _, order := range toCancel {
		call, err := p.market.GetCloseOrderCall(order)
		if err != nil {
			return errors.Wrapf(err, "构造撤单调用失败 order=%d", order.OrderID)
		}
		if err := p.exec.ExecuteCalls(ctx, []market.Call{call}); err != nil {
			return errors.Wrapf(err, "撤单失败 order=%d", order.OrderID)
		}
		p.rec.AddOrdersCancelled(1)
		logger.Infof("已撤单 order=%d price=%s", order.OrderID, order.Price)
	}
	return nil
}

func (p *Sequential) createQuotes(ctx context.Context, toPlace []domain.FutureOrder) error {
	logger.Infof("挂出 %d 个订单", len(toPlace))

	for _, order := range toPlace {
		call, err := p.market.GetSubmitOrderCall(order)
		if err != nil {
			return errors.Wrapf(err, "构造挂单调用失败 side=%s price=%s", order.Side, order.Price)
		}
		if err := p.exec.ExecuteCalls(ctx, []market.Call{call}); err != nil {
			return errors.Wrapf(err, "挂单失败 side=%s price=%s", order.Side, order.Price)
		}
		p.rec.AddOrdersPlaced(1)
		logger.Infof("已挂单 side=%s price=%s amount=%s", order.Side, order.Price, order.Amount)
	}
	return nil
}
