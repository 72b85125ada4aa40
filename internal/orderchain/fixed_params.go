package orderchain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
)

func init() {
	Register("fixed_params", func(args config.Args) (Element, error) {
		dist, err := args.Decimal("target_relative_distance_from_fp")
		if err != nil {
			return nil, err
		}
		size, err := args.Decimal("order_size_quote")
		if err != nil {
			return nil, err
		}
		return NewFixedParams(dist, size)
	})
}

// FixedParams 按固定参数生成报价：在公允价 ±distance 各挂一单，
// 数量 = 固定 quote 预算 / 挂单价。忽略输入订单并返回全新集合，
// 所以只适合放在链头。
type FixedParams struct {
	targetRelativeDistance decimal.Decimal
	orderSizeQuote         decimal.Decimal
}

// NewFixedParams 构造元素，参数非法时返回配置错误。
func NewFixedParams(targetRelativeDistance, orderSizeQuote decimal.Decimal) (*FixedParams, error) {
	if targetRelativeDistance.IsNegative() {
		return nil, fmt.Errorf("target_relative_distance_from_fp 不能为负: %s", targetRelativeDistance)
	}
	if !orderSizeQuote.IsPositive() {
		return nil, fmt.Errorf("order_size_quote 必须为正: %s", orderSizeQuote)
	}
	return &FixedParams{
		targetRelativeDistance: targetRelativeDistance,
		orderSizeQuote:         orderSizeQuote,
	}, nil
}

// Process 生成一买一卖，忽略传入的 orders。
func (e *FixedParams) Process(v View, _ domain.DesiredOrders) (decimal.Decimal, domain.DesiredOrders) {
	one := decimal.NewFromInt(1)

	bidPrice := v.FairPrice.Mul(one.Sub(e.targetRelativeDistance))
	askPrice := v.FairPrice.Mul(one.Add(e.targetRelativeDistance))

	out := domain.DesiredOrders{
		Bids: []domain.FutureOrder{{
			Side:   domain.SideBid,
			Price:  bidPrice,
			Amount: e.orderSizeQuote.Div(bidPrice),
		}},
		Asks: []domain.FutureOrder{{
			Side:   domain.SideAsk,
			Price:  askPrice,
			Amount: e.orderSizeQuote.Div(askPrice),
		}},
	}

	return v.FairPrice, out
}
