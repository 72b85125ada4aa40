package domain

import "github.com/shopspring/decimal"

// PositionInfo 单个市场上的仓位信息：钱包余额、可提取（claimable）金额
// 以及锁在挂单中的金额，base/quote 两侧分开记录。
// Total = balance + withdrawable + in_orders，只在读取时计算，不做增量维护。
type PositionInfo struct {
	BalanceBase  decimal.Decimal
	BalanceQuote decimal.Decimal

	WithdrawableBase  decimal.Decimal
	WithdrawableQuote decimal.Decimal

	InOrdersBase  decimal.Decimal
	InOrdersQuote decimal.Decimal
}

// TotalBase base 侧总持仓
func (p PositionInfo) TotalBase() decimal.Decimal {
	return p.BalanceBase.Add(p.WithdrawableBase).Add(p.InOrdersBase)
}

// TotalQuote quote 侧总持仓
func (p PositionInfo) TotalQuote() decimal.Decimal {
	return p.BalanceQuote.Add(p.WithdrawableQuote).Add(p.InOrdersQuote)
}

// HasWithdrawable 是否存在可提取金额（任意一侧）
func (p PositionInfo) HasWithdrawable() bool {
	return p.WithdrawableBase.IsPositive() || p.WithdrawableQuote.IsPositive()
}

// EmptyPosition 全零仓位
func EmptyPosition() PositionInfo {
	return PositionInfo{
		BalanceBase:       decimal.Zero,
		BalanceQuote:      decimal.Zero,
		WithdrawableBase:  decimal.Zero,
		WithdrawableQuote: decimal.Zero,
		InOrdersBase:      decimal.Zero,
		InOrdersQuote:     decimal.Zero,
	}
}

// PositionFromActiveOrders 从活跃订单计算锁在订单中的 base/quote 数量：
// ask 锁 base（剩余数量），bid 锁 quote（剩余数量 * 价格）。
func PositionFromActiveOrders(orders []BasicOrder) (base, quote decimal.Decimal) {
	base = decimal.Zero
	quote = decimal.Zero
	for _, o := range orders {
		if o.IsBid() {
			quote = quote.Add(o.AmountRemaining.Mul(o.Price))
			continue
		}
		base = base.Add(o.AmountRemaining)
	}
	return base, quote
}
