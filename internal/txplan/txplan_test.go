package txplan

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
)

// fakeMarket 用 calldata 首字节区分调用类型
type fakeMarket struct{}

func (fakeMarket) Setup(context.Context) error { return nil }
func (fakeMarket) GetCurrentOrders(context.Context) (domain.AllOrders, error) {
	return domain.AllOrders{}, nil
}
func (fakeMarket) GetTotalPosition(context.Context) (domain.PositionInfo, error) {
	return domain.EmptyPosition(), nil
}
func (fakeMarket) GetSubmitOrderCall(domain.FutureOrder) (market.Call, error) {
	return market.Call{Data: []byte{'p'}}, nil
}
func (fakeMarket) GetCloseOrderCall(order domain.BasicOrder) (market.Call, error) {
	return market.Call{Data: []byte{'c', byte(order.OrderID)}}, nil
}
func (fakeMarket) PrologueOpsToCalls(domain.PositionInfo, []market.PrologueOp) ([]market.Call, error) {
	return nil, nil
}
func (fakeMarket) Config() market.Config { return market.Config{} }

// fakeExec 记录每次执行的调用
type fakeExec struct {
	sequential [][]market.Call
	batches    [][]market.Call
	failAtCall int // 第 N 次 ExecuteCalls 失败（从 1 数），0 表示不失败
}

func (f *fakeExec) ExecuteCalls(_ context.Context, calls []market.Call) error {
	f.sequential = append(f.sequential, calls)
	if f.failAtCall > 0 && len(f.sequential) == f.failAtCall {
		return errors.New("模拟执行失败")
	}
	return nil
}

func (f *fakeExec) ExecuteBatch(_ context.Context, calls []market.Call) error {
	f.batches = append(f.batches, calls)
	if f.failAtCall > 0 {
		return errors.New("模拟批量失败")
	}
	return nil
}

// countRecorder 只统计挂撤数量
type countRecorder struct {
	metrics.Nop
	placed, cancelled int
}

func (r *countRecorder) AddOrdersPlaced(n int)    { r.placed += n }
func (r *countRecorder) AddOrdersCancelled(n int) { r.cancelled += n }

func testReconciled() domain.ReconciledOrders {
	return domain.ReconciledOrders{
		ToCancel: []domain.BasicOrder{
			{OrderID: 1, Side: domain.SideBid, Price: decimal.New(99, 0)},
			{OrderID: 2, Side: domain.SideAsk, Price: decimal.New(101, 0)},
		},
		ToPlace: []domain.FutureOrder{
			{Side: domain.SideBid, Price: decimal.New(98, 0), Amount: decimal.New(1, 0)},
			{Side: domain.SideAsk, Price: decimal.New(102, 0), Amount: decimal.New(1, 0)},
		},
	}
}

// TestSequentialExecutesEachActionSeparately 测试逐笔策略：
// prologue、每个撤单、每个挂单都是独立的一次执行。
func TestSequentialExecutesEachActionSeparately(t *testing.T) {
	exec := &fakeExec{}
	rec := &countRecorder{}
	p := NewSequential(fakeMarket{}, exec, rec)

	prologue := []market.Call{{Data: []byte{'x'}}}
	if err := p.BuildAndExecute(context.Background(), testReconciled(), prologue); err != nil {
		t.Fatalf("执行失败: %v", err)
	}

	// 1 prologue + 2 cancel + 2 place = 5 次独立执行
	if len(exec.sequential) != 5 {
		t.Fatalf("应该有 5 次独立执行，实际 %d", len(exec.sequential))
	}
	if exec.sequential[0][0].Data[0] != 'x' {
		t.Error("prologue 应该最先执行")
	}
	if exec.sequential[1][0].Data[0] != 'c' || exec.sequential[2][0].Data[0] != 'c' {
		t.Error("撤单应该在 prologue 之后、挂单之前")
	}
	if exec.sequential[3][0].Data[0] != 'p' || exec.sequential[4][0].Data[0] != 'p' {
		t.Error("挂单应该最后执行")
	}
	if rec.cancelled != 2 || rec.placed != 2 {
		t.Errorf("计数错误: cancelled=%d placed=%d", rec.cancelled, rec.placed)
	}
	if len(exec.batches) != 0 {
		t.Error("逐笔策略不应该走批量执行")
	}
}

// TestSequentialFailureDoesNotRollBack 测试失败不回滚：
// 挂单失败时错误传播，但此前撤单的计数保留。
func TestSequentialFailureDoesNotRollBack(t *testing.T) {
	exec := &fakeExec{failAtCall: 3} // 第一个挂单失败
	rec := &countRecorder{}
	p := NewSequential(fakeMarket{}, exec, rec)

	err := p.BuildAndExecute(context.Background(), testReconciled(), nil)
	if err == nil {
		t.Fatal("执行失败应该传播错误")
	}

	if rec.cancelled != 2 {
		t.Errorf("撤单已全部成功，计数应该为 2，实际 %d", rec.cancelled)
	}
	if rec.placed != 0 {
		t.Errorf("挂单失败不应该计数，实际 %d", rec.placed)
	}
}

// TestBundlingFlattensIntoOneBatch 测试打包策略把全部调用压平成一个批次
func TestBundlingFlattensIntoOneBatch(t *testing.T) {
	exec := &fakeExec{}
	rec := &countRecorder{}
	p := NewBundling(fakeMarket{}, exec, rec)

	prologue := []market.Call{{Data: []byte{'x'}}, {Data: []byte{'y'}}}
	if err := p.BuildAndExecute(context.Background(), testReconciled(), prologue); err != nil {
		t.Fatalf("执行失败: %v", err)
	}

	if len(exec.batches) != 1 {
		t.Fatalf("应该只有 1 个批次，实际 %d", len(exec.batches))
	}
	batch := exec.batches[0]
	if len(batch) != 6 {
		t.Fatalf("批次应该包含 2+2+2=6 个调用，实际 %d", len(batch))
	}
	// 顺序：prologue → cancels → places
	want := []byte{'x', 'y', 'c', 'c', 'p', 'p'}
	for i, b := range want {
		if batch[i].Data[0] != b {
			t.Errorf("批次第 %d 个调用应该是 %c，实际 %c", i, b, batch[i].Data[0])
		}
	}
	if rec.cancelled != 2 || rec.placed != 2 {
		t.Errorf("计数错误: cancelled=%d placed=%d", rec.cancelled, rec.placed)
	}
}

// TestBundlingAllOrNothing 测试批量失败时不计任何数
func TestBundlingAllOrNothing(t *testing.T) {
	exec := &fakeExec{failAtCall: 1}
	rec := &countRecorder{}
	p := NewBundling(fakeMarket{}, exec, rec)

	if err := p.BuildAndExecute(context.Background(), testReconciled(), nil); err == nil {
		t.Fatal("批量失败应该传播错误")
	}
	if rec.cancelled != 0 || rec.placed != 0 {
		t.Errorf("失败的批次不应该计数: cancelled=%d placed=%d", rec.cancelled, rec.placed)
	}
}

// TestBundlingEmptyNoop 测试空对账结果不发任何交易
func TestBundlingEmptyNoop(t *testing.T) {
	exec := &fakeExec{}
	p := NewBundling(fakeMarket{}, exec, &countRecorder{})

	if err := p.BuildAndExecute(context.Background(), domain.ReconciledOrders{}, nil); err != nil {
		t.Fatalf("空结果不应该报错: %v", err)
	}
	if len(exec.batches) != 0 {
		t.Error("空结果不应该发交易")
	}
}

// TestFromNameUnknown 测试未知策略名在构造时报错
func TestFromNameUnknown(t *testing.T) {
	if _, err := FromName("no_such_planner", fakeMarket{}, &fakeExec{}, metrics.Nop{}); err == nil {
		t.Error("未知策略名应该报错")
	}
	if _, err := FromName("sequential", fakeMarket{}, &fakeExec{}, metrics.Nop{}); err != nil {
		t.Errorf("sequential 构造失败: %v", err)
	}
	if _, err := FromName("bundling", fakeMarket{}, &fakeExec{}, metrics.Nop{}); err != nil {
		t.Errorf("bundling 构造失败: %v", err)
	}
}
