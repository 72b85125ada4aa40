package reconcile

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
)

func init() {
	Register("bounded", func(args config.Args) (Reconciler, error) {
		maxDist, err := args.Decimal("max_relative_distance_from_fp")
		if err != nil {
			return nil, err
		}
		minDist, err := args.Decimal("min_relative_distance_from_fp")
		if err != nil {
			return nil, err
		}
		minSize, err := args.Decimal("minimal_remaining_size")
		if err != nil {
			return nil, err
		}
		maxPerSide, err := args.Int("max_orders_per_side")
		if err != nil {
			return nil, err
		}
		return NewBounded(maxDist, minDist, minSize, maxPerSide)
	})
}

// Bounded 带约束的对账策略：
//  1. 取消离公允价太近、或剩余量低于下限的活跃订单；
//  2. 幸存者每侧最多保留 maxOrdersPerSide 个，超出部分淘汰离公允价最远的；
//  3. 仅当某一侧没有幸存者、或该侧最优幸存者离公允价超过最大距离时，
//     才把该侧的期望订单挂出去。
//
// 注意这个策略不只做 diff，还会按自身规则清理活跃订单；
// 订单链里基于仓位偏移价格的元素不会作用到这些既有订单上。
type Bounded struct {
	maxRelativeDistance decimal.Decimal
	minRelativeDistance decimal.Decimal
	minimalRemaining    decimal.Decimal // base 口径
	maxOrdersPerSide    int
}

// NewBounded 创建 bounded 策略，参数非法时返回配置错误
func NewBounded(maxDist, minDist, minSize decimal.Decimal, maxPerSide int) (*Bounded, error) {
	if minDist.IsNegative() {
		return nil, fmt.Errorf("min_relative_distance_from_fp 不能为负: %s", minDist)
	}
	if maxDist.LessThan(minDist) {
		return nil, fmt.Errorf("max_relative_distance_from_fp (%s) 小于 min (%s)", maxDist, minDist)
	}
	if minSize.IsNegative() {
		return nil, fmt.Errorf("minimal_remaining_size 不能为负: %s", minSize)
	}
	if maxPerSide < 0 {
		return nil, fmt.Errorf("max_orders_per_side 不能为负: %d", maxPerSide)
	}
	return &Bounded{
		maxRelativeDistance: maxDist,
		minRelativeDistance: minDist,
		minimalRemaining:    minSize,
		maxOrdersPerSide:    maxPerSide,
	}, nil
}

func (r *Bounded) Reconcile(fairPrice decimal.Decimal, existing domain.OpenOrders, desired domain.DesiredOrders) domain.ReconciledOrders {
	var out domain.ReconciledOrders

	var bidsKept, asksKept []domain.BasicOrder
	for _, order := range existing.All() {
		if r.tooClose(order, fairPrice) {
			out.ToCancel = append(out.ToCancel, order)
			continue
		}
		if order.AmountRemaining.LessThan(r.minimalRemaining) {
			out.ToCancel = append(out.ToCancel, order)
			continue
		}
		if order.IsBid() {
			bidsKept = append(bidsKept, order)
		} else {
			asksKept = append(asksKept, order)
		}
	}

	// 两侧都按最优在前排序，超出上限的是最深（离公允价最远）的
	sort.Slice(bidsKept, func(i, j int) bool {
		return bidsKept[i].Price.GreaterThan(bidsKept[j].Price)
	})
	sort.Slice(asksKept, func(i, j int) bool {
		return asksKept[i].Price.LessThan(asksKept[j].Price)
	})

	bidsKept, cancelled := capSide(bidsKept, r.maxOrdersPerSide)
	out.ToCancel = append(out.ToCancel, cancelled...)
	asksKept, cancelled = capSide(asksKept, r.maxOrdersPerSide)
	out.ToCancel = append(out.ToCancel, cancelled...)

	if r.newOrdersNeeded(fairPrice, bidsKept) {
		out.ToPlace = append(out.ToPlace, desired.Bids...)
	}
	if r.newOrdersNeeded(fairPrice, asksKept) {
		out.ToPlace = append(out.ToPlace, desired.Asks...)
	}

	out.ToKeep = append(out.ToKeep, bidsKept...)
	out.ToKeep = append(out.ToKeep, asksKept...)
	return out
}

// capSide 保留前 max 个订单，返回保留和淘汰的两段
func capSide(orders []domain.BasicOrder, max int) (kept, dropped []domain.BasicOrder) {
	if len(orders) <= max {
		return orders, nil
	}
	return orders[:max], orders[max:]
}

func (r *Bounded) tooClose(order domain.BasicOrder, fairPrice decimal.Decimal) bool {
	if order.IsBid() {
		threshold := decimal.NewFromInt(1).Sub(r.minRelativeDistance).Mul(fairPrice)
		return order.Price.GreaterThan(threshold)
	}
	threshold := decimal.NewFromInt(1).Add(r.minRelativeDistance).Mul(fairPrice)
	return order.Price.LessThan(threshold)
}

func (r *Bounded) tooFar(order domain.BasicOrder, fairPrice decimal.Decimal) bool {
	if order.IsBid() {
		threshold := decimal.NewFromInt(1).Sub(r.maxRelativeDistance).Mul(fairPrice)
		return order.Price.LessThan(threshold)
	}
	threshold := decimal.NewFromInt(1).Add(r.maxRelativeDistance).Mul(fairPrice)
	return order.Price.GreaterThan(threshold)
}

// newOrdersNeeded 一侧没有挂单、或最优挂单已经太远时才需要重新报价
func (r *Bounded) newOrdersNeeded(fairPrice decimal.Decimal, kept []domain.BasicOrder) bool {
	if len(kept) == 0 {
		return true
	}
	return r.tooFar(kept[0], fairPrice)
}
