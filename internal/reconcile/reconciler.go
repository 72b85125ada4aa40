package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
)

// Reconciler 对账策略：比较期望订单和当前活跃挂单，
// 决定取消哪些、新挂哪些、保留哪些。
// 返回结果必须恰好划分活跃订单集（cancel ∪ keep = active，互不重叠）。
type Reconciler interface {
	Reconcile(fairPrice decimal.Decimal, existing domain.OpenOrders, desired domain.DesiredOrders) domain.ReconciledOrders
}

// Constructor 对账策略构造函数，参数非法时返回配置错误
type Constructor func(args config.Args) (Reconciler, error)

var constructors = map[string]Constructor{}

// Register 注册对账策略（在各策略的 init 中调用）
func Register(name string, c Constructor) {
	if _, ok := constructors[name]; ok {
		panic(fmt.Sprintf("reconciler %q 重复注册", name))
	}
	constructors[name] = c
}

// FromConfig 按配置构造对账策略。未知名字是构造期的致命错误。
func FromConfig(cfg config.NamedConfig) (Reconciler, error) {
	ctor, ok := constructors[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("未知 reconciler %q", cfg.Name)
	}
	r, err := ctor(cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("构造 reconciler %q 失败: %w", cfg.Name, err)
	}
	return r, nil
}
