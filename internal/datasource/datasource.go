package datasource

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DataSource 为构造时固定的 (base, quote) 交易对提供公允价。
// 不支持的交易对在构造期报错，而不是在调用期。
type DataSource interface {
	GetPrice(ctx context.Context) (decimal.Decimal, error)
}

// Constructor 数据源构造函数
type Constructor func(base, quote string) (DataSource, error)

var constructors = map[string]Constructor{}

// Register 注册数据源构造函数（在各实现的 init 中调用）
func Register(name string, c Constructor) {
	if _, ok := constructors[name]; ok {
		panic(fmt.Sprintf("datasource %q 重复注册", name))
	}
	constructors[name] = c
}

// New 按名称构造数据源，未知名称为致命的配置错误。
func New(name, base, quote string) (DataSource, error) {
	c, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("未知数据源 %q", name)
	}
	return c(base, quote)
}
