// Package remus 实现 Remus 链上订单簿 DEX 的 Market 适配器。
package remus

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/pkg/logger"
	"github.com/betbot/mmbot/pkg/ratelimit"
)

// 价格统一按 1e18 定点表示，与 token decimals 无关
const priceDecimals = 18

const dexABIJSON = `[
{"inputs":[{"internalType":"uint256","name":"marketId","type":"uint256"},{"internalType":"address","name":"targetTokenAddress","type":"address"},{"internalType":"uint256","name":"orderPrice","type":"uint256"},{"internalType":"uint256","name":"orderSize","type":"uint256"},{"internalType":"uint8","name":"orderSide","type":"uint8"}],"name":"submitMakerOrder","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"uint256","name":"makerOrderId","type":"uint256"}],"name":"deleteMakerOrder","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"tokenAddress","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"claim","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getAllUserOrders","outputs":[{"components":[{"internalType":"uint256","name":"orderId","type":"uint256"},{"internalType":"uint256","name":"marketId","type":"uint256"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"uint256","name":"amountRemaining","type":"uint256"},{"internalType":"uint8","name":"side","type":"uint8"},{"internalType":"uint64","name":"entryTime","type":"uint64"}],"internalType":"struct RemusDex.Order[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"tokenAddress","type":"address"},{"internalType":"address","name":"userAddress","type":"address"}],"name":"getClaimable","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc20ABIJSON = `[
{"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// 合约返回的订单侧编码
const (
	rawSideBid uint8 = 0
	rawSideAsk uint8 = 1
)

// ContractCaller 只读合约调用能力，*ethclient.Client 满足
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Submitter 交易执行能力，Setup 的授权交易走这里
type Submitter interface {
	ExecuteCalls(ctx context.Context, calls []market.Call) error
}

type rawOrder struct {
	OrderId         *big.Int
	MarketId        *big.Int
	Price           *big.Int
	Amount          *big.Int
	AmountRemaining *big.Int
	Side            uint8
	EntryTime       uint64
}

// Market Remus venue 适配器。所有链上读操作都经过限流器。
type Market struct {
	cfg       market.Config
	client    ContractCaller
	dexAddr   common.Address
	owner     common.Address
	submitter Submitter
	limiter   ratelimit.Limiter

	dexABI   abi.ABI
	erc20ABI abi.ABI
}

// New 创建 Remus 适配器
func New(cfg market.Config, client ContractCaller, dexAddr common.Address, owner common.Address, submitter Submitter, limiter ratelimit.Limiter) (*Market, error) {
	if cfg.Venue == "" {
		cfg.Venue = "remus"
	}
	if !cfg.TickSize.IsPositive() || !cfg.TickSize.Equal(cfg.TickSize.Floor()) {
		return nil, errors.Errorf("非法 tick size: %s", cfg.TickSize)
	}
	if !cfg.LotSize.IsPositive() || !cfg.LotSize.Equal(cfg.LotSize.Floor()) {
		return nil, errors.Errorf("非法 lot size: %s", cfg.LotSize)
	}

	dexABI, err := abi.JSON(strings.NewReader(dexABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "解析 dex ABI 失败")
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "解析 erc20 ABI 失败")
	}

	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(10, 10)
	}

	return &Market{
		cfg:       cfg,
		client:    client,
		dexAddr:   dexAddr,
		owner:     owner,
		submitter: submitter,
		limiter:   limiter,
		dexABI:    dexABI,
		erc20ABI:  erc20ABI,
	}, nil
}

// Config 市场配置
func (m *Market) Config() market.Config {
	return m.cfg
}

// Setup 对 base/quote 两个 token 各发一笔无限额度授权。
// 只在启动时调用一次，授权交易经 nonce sequencer 串行发出。
func (m *Market) Setup(ctx context.Context) error {
	calls := make([]market.Call, 0, 2)
	for _, token := range []common.Address{m.cfg.Base.Address, m.cfg.Quote.Address} {
		data, err := m.erc20ABI.Pack("approve", m.dexAddr, math.MaxBig256)
		if err != nil {
			return errors.Wrap(err, "打包 approve 调用失败")
		}
		calls = append(calls, market.Call{To: token, Data: data})
	}

	if err := m.submitter.ExecuteCalls(ctx, calls); err != nil {
		return errors.Wrap(err, "授权交易失败")
	}

	logger.Infof("market=%d 已设置无限额度授权 base=%s quote=%s",
		m.cfg.MarketID, m.cfg.Base.Symbol, m.cfg.Quote.Symbol)
	return nil
}

// GetCurrentOrders 拉取账户在本市场的全部订单。
// Remus 上没有终态订单，已成交价值直接进入 claimable。
func (m *Market) GetCurrentOrders(ctx context.Context) (domain.AllOrders, error) {
	raws, err := m.fetchUserOrders(ctx)
	if err != nil {
		return domain.AllOrders{}, err
	}

	orders := make([]domain.BasicOrder, 0, len(raws))
	for _, r := range raws {
		if r.MarketId.Uint64() != m.cfg.MarketID {
			continue
		}
		orders = append(orders, m.toBasicOrder(r))
	}

	return domain.AllOrders{Active: domain.OpenOrdersFromList(orders)}, nil
}

// GetTotalPosition 并发拉取余额、可提取金额和挂单占用，合成完整仓位
func (m *Market) GetTotalPosition(ctx context.Context) (domain.PositionInfo, error) {
	var (
		orders                    domain.AllOrders
		claimBase, claimQuote     decimal.Decimal
		balanceBase, balanceQuote decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = m.GetCurrentOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		claimBase, err = m.fetchClaimable(gctx, m.cfg.Base.Address, m.cfg.Base.Decimals)
		return err
	})
	g.Go(func() (err error) {
		claimQuote, err = m.fetchClaimable(gctx, m.cfg.Quote.Address, m.cfg.Quote.Decimals)
		return err
	})
	g.Go(func() (err error) {
		balanceBase, err = m.fetchBalance(gctx, m.cfg.Base.Address, m.cfg.Base.Decimals)
		return err
	})
	g.Go(func() (err error) {
		balanceQuote, err = m.fetchBalance(gctx, m.cfg.Quote.Address, m.cfg.Quote.Decimals)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PositionInfo{}, err
	}

	inOrdersBase, inOrdersQuote := domain.PositionFromActiveOrders(orders.Active.All())

	return domain.PositionInfo{
		BalanceBase:       balanceBase,
		BalanceQuote:      balanceQuote,
		WithdrawableBase:  claimBase,
		WithdrawableQuote: claimQuote,
		InOrdersBase:      inOrdersBase,
		InOrdersQuote:     inOrdersQuote,
	}, nil
}

// GetSubmitOrderCall 构造挂单 call。
// 数量按 lot size 向下取整，价格按 tick size 向下取整（ask 再加一个 tick，
// 保证取整不会把卖价推到比期望更差的一侧）。
func (m *Market) GetSubmitOrderCall(order domain.FutureOrder) (market.Call, error) {
	if !order.Side.Valid() {
		return market.Call{}, errors.Errorf("非法订单方向: %s", order.Side)
	}

	amountRaw := snapDown(order.Amount.Shift(m.cfg.Base.Decimals), m.cfg.LotSize)
	priceRaw := snapDown(order.Price.Shift(priceDecimals), m.cfg.TickSize)

	var (
		side        uint8
		targetToken common.Address
	)
	if order.IsBid() {
		side = rawSideBid
		targetToken = m.cfg.Quote.Address
	} else {
		side = rawSideAsk
		targetToken = m.cfg.Base.Address
		priceRaw = new(big.Int).Add(priceRaw, m.cfg.TickSize.BigInt())
	}

	if amountRaw.Sign() <= 0 {
		return market.Call{}, errors.Errorf("订单数量取整后为零: %s", order.Amount)
	}

	data, err := m.dexABI.Pack("submitMakerOrder",
		new(big.Int).SetUint64(m.cfg.MarketID),
		targetToken,
		priceRaw,
		amountRaw,
		side,
	)
	if err != nil {
		return market.Call{}, errors.Wrap(err, "打包挂单调用失败")
	}

	return market.Call{To: m.dexAddr, Data: data}, nil
}

// GetCloseOrderCall 构造撤单 call
func (m *Market) GetCloseOrderCall(order domain.BasicOrder) (market.Call, error) {
	data, err := m.dexABI.Pack("deleteMakerOrder", new(big.Int).SetUint64(order.OrderID))
	if err != nil {
		return market.Call{}, errors.Wrap(err, "打包撤单调用失败")
	}
	return market.Call{To: m.dexAddr, Data: data}, nil
}

// PrologueOpsToCalls 把前置操作翻译成 venue calls。
// seek_liquidity：对 withdrawable 大于零的每一侧生成一笔 claim。
func (m *Market) PrologueOpsToCalls(position domain.PositionInfo, ops []market.PrologueOp) ([]market.Call, error) {
	var calls []market.Call
	for _, op := range ops {
		switch op.Kind {
		case market.PrologueSeekLiquidity:
			seek, err := m.seekLiquidityCalls(position)
			if err != nil {
				return nil, err
			}
			calls = append(calls, seek...)
		default:
			return nil, errors.Errorf("未知 prologue 操作: %s", op.Kind)
		}
	}
	return calls, nil
}

func (m *Market) seekLiquidityCalls(position domain.PositionInfo) ([]market.Call, error) {
	var calls []market.Call

	appendClaim := func(token common.Address, decimals int32, amount decimal.Decimal) error {
		if !amount.IsPositive() {
			return nil
		}
		data, err := m.dexABI.Pack("claim", token, amount.Shift(decimals).BigInt())
		if err != nil {
			return errors.Wrap(err, "打包 claim 调用失败")
		}
		logger.Infof("market=%d 待回收 %s %s", m.cfg.MarketID, amount, token.Hex())
		calls = append(calls, market.Call{To: m.dexAddr, Data: data})
		return nil
	}

	if err := appendClaim(m.cfg.Base.Address, m.cfg.Base.Decimals, position.WithdrawableBase); err != nil {
		return nil, err
	}
	if err := appendClaim(m.cfg.Quote.Address, m.cfg.Quote.Decimals, position.WithdrawableQuote); err != nil {
		return nil, err
	}
	return calls, nil
}

func (m *Market) fetchUserOrders(ctx context.Context) ([]rawOrder, error) {
	data, err := m.dexABI.Pack("getAllUserOrders", m.owner)
	if err != nil {
		return nil, errors.Wrap(err, "打包查询调用失败")
	}

	out, err := m.callView(ctx, m.dexAddr, data)
	if err != nil {
		return nil, errors.Wrap(err, "查询用户订单失败")
	}

	res, err := m.dexABI.Unpack("getAllUserOrders", out)
	if err != nil {
		return nil, errors.Wrap(err, "解析用户订单失败")
	}

	orders := *abi.ConvertType(res[0], new([]rawOrder)).(*[]rawOrder)
	return orders, nil
}

func (m *Market) fetchClaimable(ctx context.Context, token common.Address, decimals int32) (decimal.Decimal, error) {
	data, err := m.dexABI.Pack("getClaimable", token, m.owner)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "打包查询调用失败")
	}

	out, err := m.callView(ctx, m.dexAddr, data)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "查询 claimable 失败 token=%s", token.Hex())
	}

	res, err := m.dexABI.Unpack("getClaimable", out)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "解析 claimable 失败")
	}

	raw := *abi.ConvertType(res[0], new(*big.Int)).(**big.Int)
	return decimal.NewFromBigInt(raw, -decimals), nil
}

func (m *Market) fetchBalance(ctx context.Context, token common.Address, decimals int32) (decimal.Decimal, error) {
	data, err := m.erc20ABI.Pack("balanceOf", m.owner)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "打包查询调用失败")
	}

	out, err := m.callView(ctx, token, data)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "查询余额失败 token=%s", token.Hex())
	}

	res, err := m.erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "解析余额失败")
	}

	raw := *abi.ConvertType(res[0], new(*big.Int)).(**big.Int)
	return decimal.NewFromBigInt(raw, -decimals), nil
}

func (m *Market) callView(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return m.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func (m *Market) toBasicOrder(r rawOrder) domain.BasicOrder {
	side := domain.SideBid
	if r.Side == rawSideAsk {
		side = domain.SideAsk
	}
	return domain.BasicOrder{
		Price:           decimal.NewFromBigInt(r.Price, -priceDecimals),
		Amount:          decimal.NewFromBigInt(r.Amount, -m.cfg.Base.Decimals),
		AmountRemaining: decimal.NewFromBigInt(r.AmountRemaining, -m.cfg.Base.Decimals),
		OrderID:         r.OrderId.Uint64(),
		MarketID:        r.MarketId.Uint64(),
		Side:            side,
		EntryTime:       time.Unix(int64(r.EntryTime), 0),
		Venue:           m.cfg.Venue,
	}
}

// snapDown 把 raw 数量向下取整到 step 的整数倍
func snapDown(raw decimal.Decimal, step decimal.Decimal) *big.Int {
	r := raw.BigInt()
	s := step.BigInt()
	r.Div(r, s)
	return r.Mul(r, s)
}
