package metrics

import (
	"expvar"
	"time"

	"github.com/shopspring/decimal"
)

// ExpvarRecorder 把观测数据发布到 expvar（/debug/vars）。
// 变量名与原有监控面板保持一致。
type ExpvarRecorder struct {
	ordersSent      *expvar.Int
	ordersCancelled *expvar.Int

	positionBase    *expvar.Float
	positionQuote   *expvar.Float
	bestBidPrice    *expvar.Float
	bestBidAmount   *expvar.Float
	bestAskPrice    *expvar.Float
	bestAskAmount   *expvar.Float
	spread          *expvar.Float
	fairPrice       *expvar.Float
	loopTime        *expvar.Float
	stateUpdateTime *expvar.Float
	lastError       *expvar.Int
}

// NewExpvarRecorder 创建 expvar recorder。
// expvar 名字是进程级的，重复构造会复用已发布的变量而不是 panic。
func NewExpvarRecorder() *ExpvarRecorder {
	return &ExpvarRecorder{
		ordersSent:      publishedInt("total_orders_sent"),
		ordersCancelled: publishedInt("total_orders_canceled"),
		positionBase:    publishedFloat("current_position_base"),
		positionQuote:   publishedFloat("current_position_quote"),
		bestBidPrice:    publishedFloat("current_best_bid_price"),
		bestBidAmount:   publishedFloat("current_best_bid_amount"),
		bestAskPrice:    publishedFloat("current_best_ask_price"),
		bestAskAmount:   publishedFloat("current_best_ask_amount"),
		spread:          publishedFloat("current_spread"),
		fairPrice:       publishedFloat("current_fair_price"),
		loopTime:        publishedFloat("loop_time"),
		stateUpdateTime: publishedFloat("state_update_time"),
		lastError:       publishedInt("last_error_timestamp"),
	}
}

func publishedInt(name string) *expvar.Int {
	if v, ok := expvar.Get(name).(*expvar.Int); ok {
		return v
	}
	return expvar.NewInt(name)
}

func publishedFloat(name string) *expvar.Float {
	if v, ok := expvar.Get(name).(*expvar.Float); ok {
		return v
	}
	return expvar.NewFloat(name)
}

func (r *ExpvarRecorder) AddOrdersPlaced(n int)    { r.ordersSent.Add(int64(n)) }
func (r *ExpvarRecorder) AddOrdersCancelled(n int) { r.ordersCancelled.Add(int64(n)) }

func (r *ExpvarRecorder) SetPosition(base, quote decimal.Decimal) {
	r.positionBase.Set(base.InexactFloat64())
	r.positionQuote.Set(quote.InexactFloat64())
}

func (r *ExpvarRecorder) SetBestBid(price, amount decimal.Decimal) {
	r.bestBidPrice.Set(price.InexactFloat64())
	r.bestBidAmount.Set(amount.InexactFloat64())
}

func (r *ExpvarRecorder) SetBestAsk(price, amount decimal.Decimal) {
	r.bestAskPrice.Set(price.InexactFloat64())
	r.bestAskAmount.Set(amount.InexactFloat64())
}

func (r *ExpvarRecorder) SetSpread(spread decimal.Decimal) {
	r.spread.Set(spread.InexactFloat64())
}

func (r *ExpvarRecorder) SetFairPrice(fp decimal.Decimal) {
	r.fairPrice.Set(fp.InexactFloat64())
}

func (r *ExpvarRecorder) SetLoopTime(d time.Duration) {
	r.loopTime.Set(d.Seconds())
}

func (r *ExpvarRecorder) SetStateUpdateTime(d time.Duration) {
	r.stateUpdateTime.Set(d.Seconds())
}

func (r *ExpvarRecorder) SetLastError(at time.Time) {
	r.lastError.Set(at.Unix())
}
