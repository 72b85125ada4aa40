package instruments

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Instrument 可交易资产。不可变，通过注册表按 symbol 解析。
type Instrument struct {
	Net      string         // 资产所在网络，例如 Starknet / Binance
	Symbol   string         // 交易符号
	Name     string         // 展示名称
	Decimals int32          // 精度
	Address  common.Address // 链上合约地址（链下资产为零值）
}

// Amount 带资产信息的数量，Raw 为链上原始整数口径。
type Amount struct {
	Instrument Instrument
	Raw        decimal.Decimal
}

// Human 人类可读数量：raw / 10^decimals
func (a Amount) Human() decimal.Decimal {
	return a.Raw.Shift(-a.Instrument.Decimals)
}

// AmountFromHuman 从人类可读数量构造 Amount
func AmountFromHuman(inst Instrument, human decimal.Decimal) Amount {
	return Amount{Instrument: inst, Raw: human.Shift(inst.Decimals)}
}

// 预置的主网 token 表。测试网支持等将来需要时再加。
var (
	ETH = Instrument{
		Net:      "Starknet",
		Symbol:   "ETH",
		Name:     "ETH",
		Decimals: 18,
		Address:  common.HexToAddress("0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"),
	}
	WBTC = Instrument{
		Net:      "Starknet",
		Symbol:   "WBTC",
		Name:     "wBTC",
		Decimals: 8,
		Address:  common.HexToAddress("0x3fe2b97c1fd336e750087d68b9b867997fd64a2661ff3ca5a7c771641e8e7ac"),
	}
	USDC = Instrument{
		Net:      "Starknet",
		Symbol:   "USDC",
		Name:     "USDC",
		Decimals: 6,
		Address:  common.HexToAddress("0x53c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8"),
	}
	STRK = Instrument{
		Net:      "Starknet",
		Symbol:   "STRK",
		Name:     "STRK",
		Decimals: 18,
		Address:  common.HexToAddress("0x4718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"),
	}
	DOG = Instrument{
		Net:      "Starknet",
		Symbol:   "DOG",
		Name:     "DOG GO TO THE MOON",
		Decimals: 5,
		Address:  common.HexToAddress("0x40e81cfeb176bfdbc5047bbc55eb471cfab20a6b221f38d8fda134e1bfffca4"),
	}
)

var bySymbol = map[string]Instrument{
	"ETH":  ETH,
	"WBTC": WBTC,
	"USDC": USDC,
	"STRK": STRK,
	"DOG":  DOG,
}

// BySymbol 按 symbol 解析 instrument，未知 symbol 返回错误。
// 解析失败应视为配置错误，在构造期失败。
func BySymbol(symbol string) (Instrument, error) {
	inst, ok := bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Instrument{}, fmt.Errorf("未知 instrument symbol: %q", symbol)
	}
	return inst, nil
}
