// Package mm 市场做市编排：单账户单市场的控制循环和每周期的 pulse 流程。
package mm

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
	"github.com/betbot/mmbot/internal/orderchain"
	"github.com/betbot/mmbot/internal/reconcile"
	"github.com/betbot/mmbot/internal/state"
	"github.com/betbot/mmbot/internal/txplan"
	"github.com/betbot/mmbot/pkg/logger"
)

// MarketMaker 单市场做市器：持有订单链、对账策略和执行策略，
// 每个周期把状态变成一组已执行的 venue 调用。
type MarketMaker struct {
	st      *state.State
	market  market.Market
	chain   *orderchain.Chain
	rec     reconcile.Reconciler
	planner txplan.Planner
	metrics metrics.Recorder
}

// New 创建做市器
func New(st *state.State, m market.Market, chain *orderchain.Chain, rec reconcile.Reconciler, planner txplan.Planner, recorder metrics.Recorder) *MarketMaker {
	return &MarketMaker{
		st:      st,
		market:  m,
		chain:   chain,
		rec:     rec,
		planner: planner,
		metrics: recorder,
	}
}

// Setup 启动前的一次性初始化（token 授权等）
func (mm *MarketMaker) Setup(ctx context.Context) error {
	logger.Info("初始化交易环境")
	return mm.market.Setup(ctx)
}

// Pulse 执行一个做市周期：订单链 → 对账 → prologue → 执行。
// 调用前 State 必须已经刷新。
func (mm *MarketMaker) Pulse(ctx context.Context) error {
	desired := mm.chain.Process(mm.st)

	reconciled := mm.rec.Reconcile(mm.st.FairPrice(), mm.st.Account.Orders().Active, desired)

	position := mm.st.Account.Position()
	prologue, err := mm.prologueCalls(position)
	if err != nil {
		return err
	}

	metrics.RecordQuotedBook(mm.metrics, reconciled, mm.st.FairPrice())

	if err := mm.planner.BuildAndExecute(ctx, reconciled, prologue); err != nil {
		return errors.Wrap(err, "执行对账结果失败")
	}

	logger.Infof("周期完成 fair_price=%s cancel=%d place=%d keep=%d",
		mm.st.FairPrice(), len(reconciled.ToCancel), len(reconciled.ToPlace), len(reconciled.ToKeep))
	return nil
}

// prologueCalls 有可提取金额就先回收流动性，再报价
func (mm *MarketMaker) prologueCalls(position domain.PositionInfo) ([]market.Call, error) {
	if !position.HasWithdrawable() {
		return nil, nil
	}

	ops := []market.PrologueOp{{Kind: market.PrologueSeekLiquidity}}
	calls, err := mm.market.PrologueOpsToCalls(position, ops)
	if err != nil {
		return nil, errors.Wrap(err, "构造 prologue 调用失败")
	}
	return calls, nil
}

// PrettyPrintBook 按价格从高到低打印当前挂单簿，asks 在上 bids 在下
func PrettyPrintBook(orders domain.OpenOrders) {
	logger.Info("当前挂单簿:")

	asks := append([]domain.BasicOrder(nil), orders.Asks...)
	sort.Slice(asks, func(i, j int) bool {
		return asks[i].Price.GreaterThan(asks[j].Price)
	})
	for _, a := range asks {
		logger.Infof("\t\t%s; %s", a.Price, a.AmountRemaining)
	}

	logger.Info("\t---")

	bids := append([]domain.BasicOrder(nil), orders.Bids...)
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].Price.GreaterThan(bids[j].Price)
	})
	for _, b := range bids {
		logger.Infof("\t\t%s; %s", b.Price, b.AmountRemaining)
	}
}
