package state

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/mmbot/internal/datasource"
	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/pkg/logger"
)

// AccountState 账户在单个市场上的每周期快照：仓位 + 订单。
// 每次 Update 整体替换，不做增量合并，失败时不提交任何部分状态。
type AccountState struct {
	market market.Market

	orders   domain.AllOrders
	position domain.PositionInfo
}

// NewAccountState 创建账户状态
func NewAccountState(m market.Market) *AccountState {
	return &AccountState{
		market:   m,
		position: domain.EmptyPosition(),
	}
}

// Orders 当前订单快照（到下次 Update 前有效）
func (a *AccountState) Orders() domain.AllOrders {
	return a.orders
}

// Position 当前仓位快照（到下次 Update 前有效）
func (a *AccountState) Position() domain.PositionInfo {
	return a.position
}

// Update 并发拉取仓位和订单，两者都成功才提交。
// 任意一个失败则整体失败，调用方不能在半新半旧的账户状态上做决策。
func (a *AccountState) Update(ctx context.Context) error {
	var (
		orders   domain.AllOrders
		position domain.PositionInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = a.market.GetCurrentOrders(gctx)
		return errors.Wrap(err, "拉取当前订单失败")
	})
	g.Go(func() error {
		var err error
		position, err = a.market.GetTotalPosition(gctx)
		return errors.Wrap(err, "拉取仓位失败")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	a.orders = orders
	a.position = position
	return nil
}

// State 单个控制循环周期的事实基准：账户快照 + 公允价。
type State struct {
	Account *AccountState

	fairPrice decimal.Decimal
	fpSource  datasource.DataSource
}

// New 创建 State
func New(m market.Market, fp datasource.DataSource) *State {
	return &State{
		Account:   NewAccountState(m),
		fairPrice: decimal.Zero,
		fpSource:  fp,
	}
}

// FairPrice 当前公允价
func (s *State) FairPrice() decimal.Decimal {
	return s.fairPrice
}

// SetFairPrice 更新公允价。订单链元素（如仓位偏移）在周期内调用，
// 更新后的价格对同一轮中后续的元素可见。
func (s *State) SetFairPrice(fp decimal.Decimal) {
	logger.Infof("公允价更新: %s -> %s", s.fairPrice, fp)
	s.fairPrice = fp
}

// Update 并发刷新账户快照与公允价，join-all-or-fail：
// 任意一路失败则本周期状态不更新。
func (s *State) Update(ctx context.Context) error {
	var fp decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Account.Update(gctx)
	})
	g.Go(func() error {
		var err error
		fp, err = s.fpSource.GetPrice(gctx)
		if err != nil {
			return errors.Wrap(err, "获取公允价失败")
		}
		if !fp.IsPositive() {
			return errors.Errorf("公允价必须为正，收到 %s", fp)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.fairPrice = fp
	return nil
}
