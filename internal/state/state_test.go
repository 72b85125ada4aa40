package state

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
)

// fakeMarket 返回固定的订单/仓位，或注入的错误
type fakeMarket struct {
	orders   domain.AllOrders
	position domain.PositionInfo

	ordersErr   error
	positionErr error
}

func (m *fakeMarket) Setup(context.Context) error { return nil }
func (m *fakeMarket) GetCurrentOrders(context.Context) (domain.AllOrders, error) {
	return m.orders, m.ordersErr
}
func (m *fakeMarket) GetTotalPosition(context.Context) (domain.PositionInfo, error) {
	return m.position, m.positionErr
}
func (m *fakeMarket) GetSubmitOrderCall(domain.FutureOrder) (market.Call, error) {
	return market.Call{}, nil
}
func (m *fakeMarket) GetCloseOrderCall(domain.BasicOrder) (market.Call, error) {
	return market.Call{}, nil
}
func (m *fakeMarket) PrologueOpsToCalls(domain.PositionInfo, []market.PrologueOp) ([]market.Call, error) {
	return nil, nil
}
func (m *fakeMarket) Config() market.Config { return market.Config{} }

// fakeSource 返回固定价格或注入的错误
type fakeSource struct {
	price decimal.Decimal
	err   error
}

func (s *fakeSource) GetPrice(context.Context) (decimal.Decimal, error) {
	return s.price, s.err
}

// TestStateUpdate 测试正常刷新：账户和公允价都更新
func TestStateUpdate(t *testing.T) {
	m := &fakeMarket{
		orders: domain.AllOrders{
			Active: domain.OpenOrdersFromList([]domain.BasicOrder{
				{OrderID: 1, Side: domain.SideBid, Price: decimal.New(99, 0)},
			}),
		},
		position: domain.PositionInfo{
			BalanceBase: decimal.New(5, 0),
		},
	}
	st := New(m, &fakeSource{price: decimal.New(100, 0)})

	if err := st.Update(context.Background()); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}

	if !st.FairPrice().Equal(decimal.New(100, 0)) {
		t.Errorf("公允价应该为 100，实际 %s", st.FairPrice())
	}
	if st.Account.Orders().Active.Count() != 1 {
		t.Errorf("活跃订单应该为 1 个，实际 %d", st.Account.Orders().Active.Count())
	}
	if !st.Account.Position().BalanceBase.Equal(decimal.New(5, 0)) {
		t.Errorf("base 余额应该为 5，实际 %s", st.Account.Position().BalanceBase)
	}
}

// TestStateUpdateSourceError 测试价格源失败时整体失败，公允价不变
func TestStateUpdateSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("价格源挂了")}
	st := New(&fakeMarket{position: domain.EmptyPosition()}, src)

	if err := st.Update(context.Background()); err == nil {
		t.Fatal("价格源失败应该让刷新整体失败")
	}
	if !st.FairPrice().IsZero() {
		t.Errorf("失败后公允价不应该更新，实际 %s", st.FairPrice())
	}
}

// TestStateUpdateRejectsNonPositivePrice 测试非正公允价视为刷新失败
func TestStateUpdateRejectsNonPositivePrice(t *testing.T) {
	for _, price := range []decimal.Decimal{decimal.Zero, decimal.New(-1, 0)} {
		st := New(&fakeMarket{position: domain.EmptyPosition()}, &fakeSource{price: price})
		if err := st.Update(context.Background()); err == nil {
			t.Errorf("公允价 %s 应该被拒绝", price)
		}
	}
}

// TestAccountUpdateAllOrFail 测试账户刷新任意一路失败都不提交
func TestAccountUpdateAllOrFail(t *testing.T) {
	m := &fakeMarket{
		orders: domain.AllOrders{
			Active: domain.OpenOrdersFromList([]domain.BasicOrder{
				{OrderID: 1, Side: domain.SideBid, Price: decimal.New(99, 0)},
			}),
		},
		position: domain.PositionInfo{BalanceBase: decimal.New(5, 0)},
	}
	acc := NewAccountState(m)
	if err := acc.Update(context.Background()); err != nil {
		t.Fatalf("初始刷新失败: %v", err)
	}

	// 仓位路失败：订单和仓位都保持旧值
	m.positionErr = errors.New("仓位拉取失败")
	m.orders = domain.AllOrders{}
	if err := acc.Update(context.Background()); err == nil {
		t.Fatal("仓位失败应该让账户刷新整体失败")
	}
	if acc.Orders().Active.Count() != 1 {
		t.Errorf("失败后订单快照不应该更新，实际 %d 个", acc.Orders().Active.Count())
	}
	if !acc.Position().BalanceBase.Equal(decimal.New(5, 0)) {
		t.Errorf("失败后仓位快照不应该更新，实际 %s", acc.Position().BalanceBase)
	}

	// 订单路失败同理
	m.positionErr = nil
	m.ordersErr = errors.New("订单拉取失败")
	if err := acc.Update(context.Background()); err == nil {
		t.Fatal("订单失败应该让账户刷新整体失败")
	}
	if acc.Orders().Active.Count() != 1 {
		t.Errorf("失败后订单快照不应该更新，实际 %d 个", acc.Orders().Active.Count())
	}
}

// TestSetFairPriceVisible 测试周期内更新的公允价立刻可见
func TestSetFairPriceVisible(t *testing.T) {
	st := New(&fakeMarket{position: domain.EmptyPosition()}, &fakeSource{price: decimal.New(100, 0)})
	if err := st.Update(context.Background()); err != nil {
		t.Fatalf("刷新失败: %v", err)
	}

	st.SetFairPrice(decimal.New(105, 0))
	if !st.FairPrice().Equal(decimal.New(105, 0)) {
		t.Errorf("公允价应该为 105，实际 %s", st.FairPrice())
	}
}
