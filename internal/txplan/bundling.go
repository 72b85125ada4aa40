package txplan

import (
	"context"

	"github.com/pkg/errors"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
	"github.com/betbot/mmbot/pkg/logger"
)

func init() {
	Register("bundling", func(m market.Market, exec Executor, rec metrics.Recorder) (Planner, error) {
		return NewBundling(m, exec, rec), nil
	})
}

// Bundling 打包执行策略：prologue、全部撤单、全部挂单压平成
// 一笔 multicall 交易，单个 nonce。省 gas 且原子，
// 但任何一个子调用非法会让整个批次失败，包括本来能成功的撤单。
type Bundling struct {
	market market.Market
	exec   Executor
	rec    metrics.Recorder
}

// NewBundling 创建打包执行策略
func NewBundling(m market.Market, exec Executor, rec metrics.Recorder) *Bundling {
	return &Bundling{market: m, exec: exec, rec: rec}
}

func (p *Bundling) BuildAndExecute(ctx context.Context, reconciled domain.ReconciledOrders, prologue []market.Call) error {
	nCancels := len(reconciled.ToCancel)
	nPlaces := len(reconciled.ToPlace)
	logger.Infof("打包执行: prologue=%d cancel=%d place=%d", len(prologue), nCancels, nPlaces)

	calls := make([]market.Call, 0, len(prologue)+nCancels+nPlaces)
	calls = append(calls, prologue...)

	for _, order := range reconciled.ToCancel {
		call, err := p.market.GetCloseOrderCall(order)
		if err != nil {
			return errors.Wrapf(err, "构造撤单调用失败 order=%d", order.OrderID)
		}
		calls = append(calls, call)
	}

	for _, order := range reconciled.ToPlace {
		call, err := p.market.GetSubmitOrderCall(order)
		if err != nil {
			return errors.Wrapf(err, "构造挂单调用失败 side=%s price=%s", order.Side, order.Price)
		}
		calls = append(calls, call)
	}

	if len(calls) == 0 {
		return nil
	}

	if err := p.exec.ExecuteBatch(ctx, calls); err != nil {
		return errors.Wrap(err, "打包交易执行失败")
	}

	p.rec.AddOrdersCancelled(nCancels)
	p.rec.AddOrdersPlaced(nPlaces)
	return nil
}
