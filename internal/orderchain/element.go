package orderchain

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
)

// View 元素可见的只读周期快照
type View struct {
	FairPrice decimal.Decimal
	Position  domain.PositionInfo
}

// Element 订单链元素。Process 返回（可能更新过的）公允价和新的期望订单集合；
// 返回的公允价会在同一轮内对后续元素生效，所以偏移公允价的元素
// 必须排在依赖价格的生成元素之前。价格更新是签名的一部分，不走隐藏状态。
type Element interface {
	Process(v View, orders domain.DesiredOrders) (decimal.Decimal, domain.DesiredOrders)
}
