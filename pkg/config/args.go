package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Args 配置里传给注册表构造函数的参数表（yaml 反序列化产物）
type Args map[string]interface{}

// NamedConfig 一个 (name, args) 对，用于 order chain element / reconciler 选择
type NamedConfig struct {
	Name string `yaml:"name"`
	Args Args   `yaml:"args"`
}

// Decimal 按 key 取 decimal 参数，缺失或无法解析时返回配置错误。
// 兼容 yaml 解析出的 string / float64 / int。
func (a Args) Decimal(key string) (decimal.Decimal, error) {
	raw, ok := a[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("缺少参数 %q", key)
	}

	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("参数 %q 无法解析为 decimal: %v", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("参数 %q 类型不支持: %T", key, raw)
	}
}

// Int 按 key 取整数参数
func (a Args) Int(key string) (int, error) {
	raw, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("缺少参数 %q", key)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("参数 %q 类型不支持: %T", key, raw)
	}
}
