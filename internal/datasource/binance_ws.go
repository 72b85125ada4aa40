package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/pkg/logger"
)

const (
	binanceWSBase = "wss://stream.binance.com:9443/ws"

	// 超过这个时长没有新报价就认为缓存过期，GetPrice 返回错误
	binanceWSMaxStale = 10 * time.Second

	binanceWSHandshakeTimeout = 15 * time.Second
	binanceWSReconnectDelay   = 3 * time.Second
)

func init() {
	Register("binance_ws", func(base, quote string) (DataSource, error) {
		return NewBinanceWSSource(base, quote)
	})
}

// binanceBookTicker bookTicker 流消息（只取最优买卖价）
type binanceBookTicker struct {
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// BinanceWSSource 订阅 Binance bookTicker 流，用最优买卖中间价作为公允价。
// 连接在后台维护并自动重连；GetPrice 只读最近缓存，缓存过期视为失败。
type BinanceWSSource struct {
	symbol string

	mu        sync.RWMutex
	lastMid   decimal.Decimal
	updatedAt time.Time

	cancel context.CancelFunc
}

// NewBinanceWSSource 构造流式数据源并启动后台连接。
// 不支持的交易对在这里直接报错。
func NewBinanceWSSource(base, quote string) (*BinanceWSSource, error) {
	b := strings.ToUpper(strings.TrimSpace(base))
	q := strings.ToUpper(strings.TrimSpace(quote))

	var symbol string
	switch {
	case b == "ETH" && q == "USDC":
		symbol = "ETHUSDC"
	case b == "STRK" && q == "USDC":
		symbol = "STRKUSDC"
	case b == "WBTC" && q == "USDC":
		symbol = "BTCUSDC"
	default:
		return nil, fmt.Errorf("binance_ws 数据源不支持交易对 %s/%s", b, q)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &BinanceWSSource{
		symbol: symbol,
		cancel: cancel,
	}
	go s.run(ctx)
	return s, nil
}

// GetPrice 返回最近一次收到的中间价，缓存过期返回错误。
func (s *BinanceWSSource) GetPrice(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	mid, at := s.lastMid, s.updatedAt
	s.mu.RUnlock()

	if at.IsZero() {
		return decimal.Zero, errors.Errorf("binance_ws %s 尚未收到报价", s.symbol)
	}
	if age := time.Since(at); age > binanceWSMaxStale {
		return decimal.Zero, errors.Errorf("binance_ws %s 报价过期 %s", s.symbol, age.Truncate(time.Millisecond))
	}
	return mid, nil
}

// Close 停止后台连接
func (s *BinanceWSSource) Close() error {
	s.cancel()
	return nil
}

// run 维护连接：断开后等一个固定延迟重连，直到 ctx 取消。
func (s *BinanceWSSource) run(ctx context.Context) {
	url := fmt.Sprintf("%s/%s@bookTicker", binanceWSBase, strings.ToLower(s.symbol))
	for {
		if err := s.readLoop(ctx, url); err != nil {
			logger.Warnf("binance_ws %s 连接中断: %v", s.symbol, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(binanceWSReconnectDelay):
		}
	}
}

func (s *BinanceWSSource) readLoop(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: binanceWSHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "连接 binance websocket 失败")
	}
	defer conn.Close()

	logger.Infof("binance_ws 已连接: %s", url)

	// ctx 取消时主动关闭连接让 ReadMessage 返回
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "读取 binance websocket 消息失败")
		}

		var tick binanceBookTicker
		if err := json.Unmarshal(payload, &tick); err != nil {
			logger.Warnf("binance_ws 消息解析失败: %v", err)
			continue
		}

		bid, err1 := decimal.NewFromString(tick.BidPrice)
		ask, err2 := decimal.NewFromString(tick.AskPrice)
		if err1 != nil || err2 != nil || !bid.IsPositive() || !ask.IsPositive() {
			continue
		}

		mid := bid.Add(ask).Div(decimal.NewFromInt(2))
		s.mu.Lock()
		s.lastMid = mid
		s.updatedAt = time.Now()
		s.mu.Unlock()
	}
}
