package mm

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
	"github.com/betbot/mmbot/internal/orderchain"
	"github.com/betbot/mmbot/internal/state"
)

// fakeMarket prologue 产出一笔固定调用，并记录 Setup 是否被调过
type fakeMarket struct {
	position    domain.PositionInfo
	setupCalled bool
}

func (m *fakeMarket) Setup(context.Context) error {
	m.setupCalled = true
	return nil
}

func (m *fakeMarket) GetCurrentOrders(context.Context) (domain.AllOrders, error) {
	return domain.AllOrders{}, nil
}

func (m *fakeMarket) GetTotalPosition(context.Context) (domain.PositionInfo, error) {
	return m.position, nil
}

func (m *fakeMarket) GetSubmitOrderCall(domain.FutureOrder) (market.Call, error) {
	return market.Call{Data: []byte{'p'}}, nil
}

func (m *fakeMarket) GetCloseOrderCall(domain.BasicOrder) (market.Call, error) {
	return market.Call{Data: []byte{'c'}}, nil
}

func (m *fakeMarket) PrologueOpsToCalls(_ domain.PositionInfo, ops []market.PrologueOp) ([]market.Call, error) {
	calls := make([]market.Call, 0, len(ops))
	for range ops {
		calls = append(calls, market.Call{Data: []byte{'x'}})
	}
	return calls, nil
}

func (m *fakeMarket) Config() market.Config { return market.Config{} }

type fakeSource struct{ price decimal.Decimal }

func (s *fakeSource) GetPrice(context.Context) (decimal.Decimal, error) {
	return s.price, nil
}

// fakePlanner 记录收到的对账结果和 prologue 调用
type fakePlanner struct {
	reconciled domain.ReconciledOrders
	prologue   []market.Call
	called     bool
}

func (p *fakePlanner) BuildAndExecute(_ context.Context, reconciled domain.ReconciledOrders, prologue []market.Call) error {
	p.called = true
	p.reconciled = reconciled
	p.prologue = prologue
	return nil
}

// quoteElement 固定挂一个买单
type quoteElement struct{}

func (quoteElement) Process(v orderchain.View, orders domain.DesiredOrders) (decimal.Decimal, domain.DesiredOrders) {
	orders.Bids = append(orders.Bids, domain.FutureOrder{
		Side:   domain.SideBid,
		Price:  v.FairPrice.Mul(decimal.RequireFromString("0.99")),
		Amount: decimal.New(1, 0),
	})
	return v.FairPrice, orders
}

func newTestMaker(t *testing.T, m *fakeMarket, planner *fakePlanner) *MarketMaker {
	t.Helper()
	st := state.New(m, &fakeSource{price: decimal.New(100, 0)})
	if err := st.Update(context.Background()); err != nil {
		t.Fatalf("刷新状态失败: %v", err)
	}
	chain := orderchain.NewChain([]orderchain.Element{quoteElement{}})
	rec := &mockReconciler{}
	return New(st, m, chain, rec, planner, metrics.Nop{})
}

// mockReconciler 把全部期望订单原样放进 ToPlace
type mockReconciler struct{}

func (mockReconciler) Reconcile(_ decimal.Decimal, _ domain.OpenOrders, desired domain.DesiredOrders) domain.ReconciledOrders {
	return domain.ReconciledOrders{ToPlace: desired.All()}
}

// TestPulseNoPrologueWithoutWithdrawable 测试无可提取金额时不生成 prologue
func TestPulseNoPrologueWithoutWithdrawable(t *testing.T) {
	m := &fakeMarket{position: domain.EmptyPosition()}
	planner := &fakePlanner{}
	maker := newTestMaker(t, m, planner)

	if err := maker.Pulse(context.Background()); err != nil {
		t.Fatalf("周期执行失败: %v", err)
	}

	if !planner.called {
		t.Fatal("执行策略应该被调用")
	}
	if len(planner.prologue) != 0 {
		t.Errorf("无可提取金额不应该有 prologue 调用，实际 %d 笔", len(planner.prologue))
	}
	if len(planner.reconciled.ToPlace) != 1 {
		t.Errorf("订单链产出的订单应该到达执行策略，实际 %d 个", len(planner.reconciled.ToPlace))
	}
	if !planner.reconciled.ToPlace[0].Price.Equal(decimal.New(99, 0)) {
		t.Errorf("挂单价应该为 99，实际 %s", planner.reconciled.ToPlace[0].Price)
	}
}

// TestPulsePrologueWhenWithdrawable 测试有可提取金额时先回收流动性
func TestPulsePrologueWhenWithdrawable(t *testing.T) {
	m := &fakeMarket{position: domain.PositionInfo{
		WithdrawableQuote: decimal.New(5, 0),
	}}
	planner := &fakePlanner{}
	maker := newTestMaker(t, m, planner)

	if err := maker.Pulse(context.Background()); err != nil {
		t.Fatalf("周期执行失败: %v", err)
	}

	if len(planner.prologue) != 1 {
		t.Fatalf("应该有 1 笔 prologue 调用，实际 %d", len(planner.prologue))
	}
	if planner.prologue[0].Data[0] != 'x' {
		t.Error("prologue 调用内容错误")
	}
}

// TestSetup 测试 Setup 透传到 venue
func TestSetup(t *testing.T) {
	m := &fakeMarket{position: domain.EmptyPosition()}
	maker := newTestMaker(t, m, &fakePlanner{})

	if err := maker.Setup(context.Background()); err != nil {
		t.Fatalf("Setup 失败: %v", err)
	}
	if !m.setupCalled {
		t.Error("Setup 应该调用 venue 初始化")
	}
}
