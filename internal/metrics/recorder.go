package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
)

// Recorder 观测数据出口。核心组件只依赖这个接口，
// 由构造方决定具体落到哪里（expvar、测试收集器、黑洞）。
type Recorder interface {
	// 计数器
	AddOrdersPlaced(n int)
	AddOrdersCancelled(n int)

	// 仪表
	SetPosition(base, quote decimal.Decimal)
	SetBestBid(price, amount decimal.Decimal)
	SetBestAsk(price, amount decimal.Decimal)
	SetSpread(spread decimal.Decimal)
	SetFairPrice(fp decimal.Decimal)
	SetLoopTime(d time.Duration)
	SetStateUpdateTime(d time.Duration)
	SetLastError(at time.Time)
}

// RecordQuotedBook 从对账结果推导最优买卖价/量和价差并写入 recorder。
// keep 和 place 共同构成本周期结束后市场上应有的订单。
func RecordQuotedBook(r Recorder, reconciled domain.ReconciledOrders, fairPrice decimal.Decimal) {
	var (
		haveBid, haveAsk      bool
		bestBidPx, bestBidAmt decimal.Decimal
		bestAskPx, bestAskAmt decimal.Decimal
	)

	consider := func(side domain.Side, price, amount decimal.Decimal) {
		if side == domain.SideBid {
			if !haveBid || price.GreaterThan(bestBidPx) {
				haveBid, bestBidPx, bestBidAmt = true, price, amount
			}
			return
		}
		if !haveAsk || price.LessThan(bestAskPx) {
			haveAsk, bestAskPx, bestAskAmt = true, price, amount
		}
	}

	for _, o := range reconciled.ToKeep {
		consider(o.Side, o.Price, o.Amount)
	}
	for _, o := range reconciled.ToPlace {
		consider(o.Side, o.Price, o.Amount)
	}

	if haveBid {
		r.SetBestBid(bestBidPx, bestBidAmt)
	}
	if haveAsk {
		r.SetBestAsk(bestAskPx, bestAskAmt)
	}
	if haveBid && haveAsk {
		r.SetSpread(bestAskPx.Sub(bestBidPx))
	}
	r.SetFairPrice(fairPrice)
}

// Nop 丢弃所有观测数据，测试和禁用 metrics 时使用
type Nop struct{}

func (Nop) AddOrdersPlaced(int)              {}
func (Nop) AddOrdersCancelled(int)           {}
func (Nop) SetPosition(_, _ decimal.Decimal) {}
func (Nop) SetBestBid(_, _ decimal.Decimal)  {}
func (Nop) SetBestAsk(_, _ decimal.Decimal)  {}
func (Nop) SetSpread(decimal.Decimal)        {}
func (Nop) SetFairPrice(decimal.Decimal)     {}
func (Nop) SetLoopTime(time.Duration)        {}
func (Nop) SetStateUpdateTime(time.Duration) {}
func (Nop) SetLastError(time.Time)           {}
