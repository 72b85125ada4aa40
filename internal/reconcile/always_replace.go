package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
)

func init() {
	Register("always_replace", func(_ config.Args) (Reconciler, error) {
		return NewAlwaysReplace(), nil
	})
}

// AlwaysReplace 最简单的策略：不做任何 diff，
// 每个周期取消全部活跃订单，重挂全部期望订单。
type AlwaysReplace struct{}

// NewAlwaysReplace 创建 always_replace 策略
func NewAlwaysReplace() *AlwaysReplace {
	return &AlwaysReplace{}
}

func (r *AlwaysReplace) Reconcile(_ decimal.Decimal, existing domain.OpenOrders, desired domain.DesiredOrders) domain.ReconciledOrders {
	return domain.ReconciledOrders{
		ToCancel: existing.All(),
		ToPlace:  desired.All(),
	}
}
