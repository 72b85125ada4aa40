package txplan

import (
	"context"
	"fmt"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
)

// Executor 交易执行能力，account.Executor 满足该接口
type Executor interface {
	// ExecuteCalls 逐笔执行，每个 call 一笔交易
	ExecuteCalls(ctx context.Context, calls []market.Call) error
	// ExecuteBatch 所有 call 打包成一笔交易，单个 nonce
	ExecuteBatch(ctx context.Context, calls []market.Call) error
}

// Planner 把对账结果（加上报价前的 prologue 调用）变成已执行的交易。
// venue 错误原样向上传播，由控制循环分类处理。
type Planner interface {
	BuildAndExecute(ctx context.Context, reconciled domain.ReconciledOrders, prologue []market.Call) error
}

// Constructor 策略构造函数
type Constructor func(m market.Market, exec Executor, rec metrics.Recorder) (Planner, error)

var constructors = map[string]Constructor{}

// Register 注册执行策略（在各策略的 init 中调用）
func Register(name string, c Constructor) {
	if _, ok := constructors[name]; ok {
		panic(fmt.Sprintf("tx planner %q 重复注册", name))
	}
	constructors[name] = c
}

// FromName 按名字构造执行策略。未知名字是构造期的致命错误。
func FromName(name string, m market.Market, exec Executor, rec metrics.Recorder) (Planner, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("未知 tx planner %q", name)
	}
	p, err := ctor(m, exec, rec)
	if err != nil {
		return nil, fmt.Errorf("构造 tx planner %q 失败: %w", name, err)
	}
	return p, nil
}
