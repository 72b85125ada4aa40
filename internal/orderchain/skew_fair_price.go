package orderchain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
	"github.com/betbot/mmbot/pkg/logger"
)

func init() {
	Register("skew_fair_price_on_position", func(args config.Args) (Element, error) {
		bias, err := args.Decimal("bias")
		if err != nil {
			return nil, err
		}
		maxSkew, err := args.Decimal("max_skew")
		if err != nil {
			return nil, err
		}
		return NewSkewFairPriceOnPosition(bias, maxSkew)
	})
}

// SkewFairPriceOnPosition 按仓位失衡偏移公允价：
// imbalance = (quote_value - base_value) / (quote_value + base_value)，
// 偏移量 = imbalance * bias，截断在 ±maxSkew，然后 fp *= (1 + shift)。
// 订单原样返回。必须排在价格敏感的生成元素之前。
type SkewFairPriceOnPosition struct {
	bias    decimal.Decimal // 每单位失衡移动公允价的比例
	maxSkew decimal.Decimal // 偏移上限
}

// NewSkewFairPriceOnPosition 构造元素，参数非法时返回配置错误。
func NewSkewFairPriceOnPosition(bias, maxSkew decimal.Decimal) (*SkewFairPriceOnPosition, error) {
	if maxSkew.IsNegative() {
		return nil, fmt.Errorf("max_skew 不能为负: %s", maxSkew)
	}
	return &SkewFairPriceOnPosition{bias: bias, maxSkew: maxSkew}, nil
}

// Process 计算失衡并返回偏移后的公允价，订单不变。
// base/quote 总价值都为零时不做任何调整。
func (e *SkewFairPriceOnPosition) Process(v View, orders domain.DesiredOrders) (decimal.Decimal, domain.DesiredOrders) {
	baseValue := v.Position.TotalBase().Mul(v.FairPrice)
	quoteValue := v.Position.TotalQuote()

	totalValue := baseValue.Add(quoteValue)
	if totalValue.IsZero() {
		return v.FairPrice, orders
	}

	// base 价值偏高时希望多卖，所以把价格往下移让 ask 更激进
	imbalance := quoteValue.Sub(baseValue).Div(totalValue)
	logger.Infof("当前仓位失衡: %s", imbalance)

	shift := imbalance.Mul(e.bias)
	if shift.GreaterThan(e.maxSkew) {
		shift = e.maxSkew
	}
	if shift.LessThan(e.maxSkew.Neg()) {
		shift = e.maxSkew.Neg()
	}
	logger.Infof("公允价偏移比例: %s", shift)

	newFP := v.FairPrice.Mul(decimal.NewFromInt(1).Add(shift))
	return newFP, orders
}
