package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/instruments"
)

// Call 发往 venue 的不透明调用：合约地址 + calldata。
// 对账核心只负责搬运，不解释其内容。
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Config 市场身份 + base/quote instrument + venue 交易参数。
type Config struct {
	MarketID uint64
	Venue    string

	Base  instruments.Instrument
	Quote instruments.Instrument

	// venue 交易参数
	TickSize decimal.Decimal // 最小价格步长
	LotSize  decimal.Decimal // 最小数量步长
}

// PrologueOpKind 报价前置操作类型
type PrologueOpKind string

const (
	// PrologueSeekLiquidity 回收锁定流动性：把 terminal 订单/可提取金额 claim 回余额
	PrologueSeekLiquidity PrologueOpKind = "seek_liquidity"
)

// PrologueOp 在本周期报价之前必须先执行的操作
type PrologueOp struct {
	Kind PrologueOpKind
}

// Market 是每个 venue 适配器都要实现的能力契约，
// 对账核心只通过这些方法与 venue 交互，新 venue 接入不触碰核心逻辑。
type Market interface {
	// Setup 一次性初始化（授权等），只在启动时调用
	Setup(ctx context.Context) error

	// GetCurrentOrders 拉取账户在本市场的全部订单（活跃 + 终态）
	GetCurrentOrders(ctx context.Context) (domain.AllOrders, error)

	// GetTotalPosition 拉取账户在本市场的完整仓位
	GetTotalPosition(ctx context.Context) (domain.PositionInfo, error)

	// GetSubmitOrderCall 构造挂单 call
	GetSubmitOrderCall(order domain.FutureOrder) (Call, error)

	// GetCloseOrderCall 构造撤单 call
	GetCloseOrderCall(order domain.BasicOrder) (Call, error)

	// PrologueOpsToCalls 把前置操作翻译成 venue calls；
	// 无事可做的 op 可以不产生 call。
	PrologueOpsToCalls(position domain.PositionInfo, ops []PrologueOp) ([]Call, error)

	// Config 市场配置
	Config() Config
}
