package orderchain

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/pkg/config"
	"github.com/betbot/mmbot/pkg/logger"
)

func init() {
	Register("remove_orders_on_low_inventory", func(_ config.Args) (Element, error) {
		return NewRemoveOrdersOnLowInventory(), nil
	})
}

// RemoveOrdersOnLowInventory 检查可用库存，砍掉没有足够余额支撑的订单。
// 两侧都先按最优价排序再贪心累计，库存只够保留部分订单时优先留下更优的。
// 库存不足不是错误：被砍掉的订单记日志后静默丢弃。
type RemoveOrdersOnLowInventory struct{}

// NewRemoveOrdersOnLowInventory 构造元素（无参数）
func NewRemoveOrdersOnLowInventory() *RemoveOrdersOnLowInventory {
	return &RemoveOrdersOnLowInventory{}
}

// Process 贪心保留两侧可以用总持仓支撑的订单，公允价不变。
func (e *RemoveOrdersOnLowInventory) Process(v View, orders domain.DesiredOrders) (decimal.Decimal, domain.DesiredOrders) {
	bids := append([]domain.FutureOrder(nil), orders.Bids...)
	asks := append([]domain.FutureOrder(nil), orders.Asks...)

	// 最优在前：bid 价格从高到低，ask 从低到高
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	out := domain.DesiredOrders{}
	var removed []domain.FutureOrder

	totalQuoteNeeded := decimal.Zero
	for _, bid := range bids {
		need := bid.Notional()
		if totalQuoteNeeded.Add(need).LessThanOrEqual(v.Position.TotalQuote()) {
			out.Bids = append(out.Bids, bid)
			totalQuoteNeeded = totalQuoteNeeded.Add(need)
			continue
		}
		removed = append(removed, bid)
	}

	totalBaseNeeded := decimal.Zero
	for _, ask := range asks {
		if totalBaseNeeded.Add(ask.Amount).LessThanOrEqual(v.Position.TotalBase()) {
			out.Asks = append(out.Asks, ask)
			totalBaseNeeded = totalBaseNeeded.Add(ask.Amount)
			continue
		}
		removed = append(removed, ask)
	}

	if len(removed) > 0 {
		logger.Infof("库存不足，丢弃 %d 个期望订单: %+v", len(removed), removed)
	}

	return v.FairPrice, out
}
