package orderchain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
)

func init() {
	Register("min_max_relative_distance", func(args config.Args) (Element, error) {
		min, err := args.Decimal("min_relative_distance_from_fp")
		if err != nil {
			return nil, err
		}
		max, err := args.Decimal("max_relative_distance_from_fp")
		if err != nil {
			return nil, err
		}
		return NewMinMaxRelativeDistance(min, max)
	})
}

// MinMaxRelativeDistance 把每个期望订单的价格限制在相对公允价的
// [min, max] 距离带内：太近的推到 min 边界，太远的拉回 max 边界，
// 带内的原样保留。不删除订单，只调整价格。
type MinMaxRelativeDistance struct {
	minRelativeDistance decimal.Decimal
	maxRelativeDistance decimal.Decimal
}

// NewMinMaxRelativeDistance 构造元素，要求 0 <= min <= max。
func NewMinMaxRelativeDistance(min, max decimal.Decimal) (*MinMaxRelativeDistance, error) {
	if min.IsNegative() {
		return nil, fmt.Errorf("min_relative_distance_from_fp 不能为负: %s", min)
	}
	if min.GreaterThan(max) {
		return nil, fmt.Errorf("min_relative_distance_from_fp (%s) 不能大于 max_relative_distance_from_fp (%s)", min, max)
	}
	return &MinMaxRelativeDistance{
		minRelativeDistance: min,
		maxRelativeDistance: max,
	}, nil
}

// Process 逐单夹取价格，公允价不变。
func (e *MinMaxRelativeDistance) Process(v View, orders domain.DesiredOrders) (decimal.Decimal, domain.DesiredOrders) {
	one := decimal.NewFromInt(1)

	out := domain.DesiredOrders{
		Bids: make([]domain.FutureOrder, 0, len(orders.Bids)),
		Asks: make([]domain.FutureOrder, 0, len(orders.Asks)),
	}

	// bid 的带边界在公允价下方
	bidNear := v.FairPrice.Mul(one.Sub(e.minRelativeDistance))
	bidFar := v.FairPrice.Mul(one.Sub(e.maxRelativeDistance))
	for _, bid := range orders.Bids {
		switch {
		case bid.Price.GreaterThan(bidNear):
			bid.Price = bidNear
		case bid.Price.LessThan(bidFar):
			bid.Price = bidFar
		}
		out.Bids = append(out.Bids, bid)
	}

	// ask 的带边界在公允价上方
	askNear := v.FairPrice.Mul(one.Add(e.minRelativeDistance))
	askFar := v.FairPrice.Mul(one.Add(e.maxRelativeDistance))
	for _, ask := range orders.Asks {
		switch {
		case ask.Price.LessThan(askNear):
			ask.Price = askNear
		case ask.Price.GreaterThan(askFar):
			ask.Price = askFar
		}
		out.Asks = append(out.Asks, ask)
	}

	return v.FairPrice, out
}
