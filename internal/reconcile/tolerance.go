package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
	"github.com/betbot/mmbot/pkg/logger"
)

func init() {
	Register("tolerance", func(args config.Args) (Reconciler, error) {
		priceTol, err := args.Decimal("relative_price_tolerance")
		if err != nil {
			return nil, err
		}
		qtyTol, err := args.Decimal("relative_quantity_tolerance")
		if err != nil {
			return nil, err
		}
		return NewTolerance(priceTol, qtyTol)
	})
}

// Tolerance 容差对账策略：对每个期望订单，在尚未匹配的同侧活跃订单里
// 找第一个价格、数量都落在相对容差内的订单；找到就保留既有订单、
// 丢弃期望订单，找不到就挂新单。剩下没被匹配的活跃订单全部取消。
//
// 匹配取的是第一个可接受的订单而不是最优的，列表后面可能存在更好的匹配。
type Tolerance struct {
	relativePriceTolerance    decimal.Decimal
	relativeQuantityTolerance decimal.Decimal
}

// NewTolerance 创建 tolerance 策略，容差为负时返回配置错误
func NewTolerance(priceTol, qtyTol decimal.Decimal) (*Tolerance, error) {
	if priceTol.IsNegative() {
		return nil, fmt.Errorf("relative_price_tolerance 不能为负: %s", priceTol)
	}
	if qtyTol.IsNegative() {
		return nil, fmt.Errorf("relative_quantity_tolerance 不能为负: %s", qtyTol)
	}
	return &Tolerance{
		relativePriceTolerance:    priceTol,
		relativeQuantityTolerance: qtyTol,
	}, nil
}

func (r *Tolerance) Reconcile(_ decimal.Decimal, existing domain.OpenOrders, desired domain.DesiredOrders) domain.ReconciledOrders {
	remaining := existing.All()

	var out domain.ReconciledOrders
	var ignored []domain.FutureOrder

	for _, want := range desired.All() {
		idx := r.findAcceptable(want, remaining)
		if idx < 0 {
			out.ToPlace = append(out.ToPlace, want)
			continue
		}
		out.ToKeep = append(out.ToKeep, remaining[idx])
		ignored = append(ignored, want)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	// 剩下的活跃订单没有任何期望订单与之匹配，全部取消
	out.ToCancel = remaining

	logger.Debugf("tolerance 对账: keep=%d cancel=%d place=%d ignore=%d",
		len(out.ToKeep), len(out.ToCancel), len(out.ToPlace), len(ignored))

	return out
}

// findAcceptable 返回第一个落在容差内的同侧订单下标，没有则返回 -1
func (r *Tolerance) findAcceptable(want domain.FutureOrder, candidates []domain.BasicOrder) int {
	for i, existing := range candidates {
		if r.withinTolerance(existing, want) {
			return i
		}
	}
	return -1
}

func (r *Tolerance) withinTolerance(existing domain.BasicOrder, want domain.FutureOrder) bool {
	if existing.Side != want.Side {
		return false
	}

	priceTol := existing.Price.Mul(r.relativePriceTolerance)
	if want.Price.GreaterThan(existing.Price.Add(priceTol)) {
		return false
	}
	if want.Price.LessThan(existing.Price.Sub(priceTol)) {
		return false
	}

	qtyTol := existing.Amount.Mul(r.relativeQuantityTolerance)
	if want.Amount.LessThan(existing.Amount.Sub(qtyTol)) {
		return false
	}
	if want.Amount.GreaterThan(existing.Amount.Add(qtyTol)) {
		return false
	}

	return true
}
