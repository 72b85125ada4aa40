package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Side 订单方向
type Side string

const (
	SideBid Side = "bid" // 买单
	SideAsk Side = "ask" // 卖单
)

// Valid 检查方向是否合法
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// BasicOrder 已经挂在 venue 上的订单。
// 所有数值均为人类可读口径（已按 token decimals 换算）。
// AmountRemaining <= Amount 恒成立；Side 创建后不可变。
type BasicOrder struct {
	Price           decimal.Decimal // 挂单价格
	Amount          decimal.Decimal // 原始数量（base）
	AmountRemaining decimal.Decimal // 剩余数量（base）

	OrderID  uint64 // 订单 ID（venue 维度唯一）
	MarketID uint64 // 市场 ID

	Side      Side      // 订单方向
	EntryTime time.Time // 进入订单簿时间

	Venue string // 所属 venue 名称
}

// IsBid 是否为买单
func (o BasicOrder) IsBid() bool {
	return o.Side == SideBid
}

// FutureOrder 期望挂出但尚未提交的订单。
// 提交前不携带任何 venue 身份（无 OrderID）。
type FutureOrder struct {
	Side   Side
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// IsBid 是否为买单
func (o FutureOrder) IsBid() bool {
	return o.Side == SideBid
}

// Notional 订单的 quote 价值（price * amount）
func (o FutureOrder) Notional() decimal.Decimal {
	return o.Price.Mul(o.Amount)
}

// OpenOrders 活跃挂单集合，bids/asks 各自按最优在前排序
// （bids 价格从高到低，asks 价格从低到高）。
type OpenOrders struct {
	Bids []BasicOrder
	Asks []BasicOrder
}

// OpenOrdersFromList 将订单列表按方向拆分并排序为 OpenOrders。
// 不检查订单是否来自同一市场/venue。
func OpenOrdersFromList(orders []BasicOrder) OpenOrders {
	bids, asks := splitAndSort(orders)
	return OpenOrders{Bids: bids, Asks: asks}
}

// All 返回所有活跃订单（bids 在前）
func (o OpenOrders) All() []BasicOrder {
	all := make([]BasicOrder, 0, len(o.Bids)+len(o.Asks))
	all = append(all, o.Bids...)
	all = append(all, o.Asks...)
	return all
}

// Count 活跃订单总数
func (o OpenOrders) Count() int {
	return len(o.Bids) + len(o.Asks)
}

// BestBid 最优买单（不存在时 ok=false）
func (o OpenOrders) BestBid() (BasicOrder, bool) {
	if len(o.Bids) == 0 {
		return BasicOrder{}, false
	}
	return o.Bids[0], true
}

// BestAsk 最优卖单（不存在时 ok=false）
func (o OpenOrders) BestAsk() (BasicOrder, bool) {
	if len(o.Asks) == 0 {
		return BasicOrder{}, false
	}
	return o.Asks[0], true
}

// TerminalOrders 已成交/过期但价值尚未提取的订单集合。
// 这些订单占用的价值需要先 claim 回余额才能再次使用。
type TerminalOrders struct {
	Bids []BasicOrder
	Asks []BasicOrder
}

// TerminalOrdersFromList 将订单列表按方向拆分为 TerminalOrders
func TerminalOrdersFromList(orders []BasicOrder) TerminalOrders {
	bids, asks := splitAndSort(orders)
	return TerminalOrders{Bids: bids, Asks: asks}
}

// All 返回所有终态订单
func (o TerminalOrders) All() []BasicOrder {
	all := make([]BasicOrder, 0, len(o.Bids)+len(o.Asks))
	all = append(all, o.Bids...)
	all = append(all, o.Asks...)
	return all
}

// AllOrders 账户在单个市场上的全部订单快照
type AllOrders struct {
	Active   OpenOrders
	Terminal TerminalOrders
}

// DesiredOrders 订单链逐元素累积出的期望订单集合，每个周期从空开始。
type DesiredOrders struct {
	Bids []FutureOrder
	Asks []FutureOrder
}

// All 返回全部期望订单（bids 在前）
func (d DesiredOrders) All() []FutureOrder {
	all := make([]FutureOrder, 0, len(d.Bids)+len(d.Asks))
	all = append(all, d.Bids...)
	all = append(all, d.Asks...)
	return all
}

// Count 期望订单总数
func (d DesiredOrders) Count() int {
	return len(d.Bids) + len(d.Asks)
}

// ReconciledOrders 对账结果。
// cancel ∪ keep 恰好覆盖全部活跃订单，同一 OrderID 不会同时出现在两边。
type ReconciledOrders struct {
	ToCancel []BasicOrder
	ToPlace  []FutureOrder
	ToKeep   []BasicOrder
}

func splitAndSort(orders []BasicOrder) (bids, asks []BasicOrder) {
	for _, o := range orders {
		if o.IsBid() {
			bids = append(bids, o)
			continue
		}
		asks = append(asks, o)
	}

	// 两侧都是最优在前
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].Price.GreaterThan(bids[j].Price)
	})
	sort.Slice(asks, func(i, j int) bool {
		return asks[i].Price.LessThan(asks[j].Price)
	})
	return bids, asks
}
