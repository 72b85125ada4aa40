package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

const validYAML = `
account:
  rpc_url: "http://localhost:8545"
  chain_id: 1
  private_key_env: "SIGNING_KEY"

asset:
  market_id: 7
  venue: "remus"
  dex_address: "0x1000"
  base_asset: "ETH"
  quote_asset: "USDC"
  price_source: "binance"
  tick_size: "10000000000000000"
  lot_size: "100000000000000"

order_chain:
  - name: "fixed_params"
    args:
      target_relative_distance_from_fp: 0.01
      order_size_quote: 1000

reconciler:
  name: "bounded"
  args:
    max_relative_distance_from_fp: 0.05
    min_relative_distance_from_fp: 0.001
    minimal_remaining_size: "0.1"
    max_orders_per_side: 2

tx_planner: "sequential"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}
	return path
}

// TestLoad 测试完整配置加载和默认值填充
func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}

	if cfg.Asset.BaseAsset != "ETH" || cfg.Asset.QuoteAsset != "USDC" {
		t.Errorf("资产解析错误: %s/%s", cfg.Asset.BaseAsset, cfg.Asset.QuoteAsset)
	}
	if cfg.TxPlanner != "sequential" {
		t.Errorf("tx_planner 应该为 sequential，实际 %q", cfg.TxPlanner)
	}
	if len(cfg.OrderChain) != 1 || cfg.OrderChain[0].Name != "fixed_params" {
		t.Fatalf("order_chain 解析错误: %+v", cfg.OrderChain)
	}
	if cfg.Reconciler.Name != "bounded" {
		t.Errorf("reconciler 应该为 bounded，实际 %q", cfg.Reconciler.Name)
	}

	// 未配置的循环参数取默认值
	if cfg.Loop.IntervalSeconds != 10 || cfg.Loop.BackoffSeconds != 5 || cfg.Loop.ConfirmTimeoutSeconds != 120 {
		t.Errorf("默认值错误: %+v", cfg.Loop)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("默认日志级别应该为 info，实际 %q", cfg.Log.Level)
	}
}

// TestValidateMissingFields 测试必填字段缺失时报错
func TestValidateMissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"缺 rpc_url", func(c *Config) { c.Account.RPCURL = "" }},
		{"非法 chain_id", func(c *Config) { c.Account.ChainID = 0 }},
		{"缺私钥来源", func(c *Config) { c.Account.SecretStorePath = ""; c.Account.PrivateKeyEnv = "" }},
		{"缺 venue", func(c *Config) { c.Asset.Venue = "" }},
		{"缺 dex_address", func(c *Config) { c.Asset.DexAddress = "" }},
		{"base quote 相同", func(c *Config) { c.Asset.QuoteAsset = c.Asset.BaseAsset }},
		{"缺 price_source", func(c *Config) { c.Asset.PriceSource = "" }},
		{"空 order_chain", func(c *Config) { c.OrderChain = nil }},
		{"缺 reconciler", func(c *Config) { c.Reconciler.Name = "" }},
		{"缺 tx_planner", func(c *Config) { c.TxPlanner = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("加载失败: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("应该报校验错误")
			}
		})
	}
}

// TestLoadEnvMissingFile 测试 .env 文件不存在不算错误
func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "no-such.env")); err != nil {
		t.Errorf(".env 不存在不应该报错: %v", err)
	}
	if err := LoadEnv(""); err != nil {
		t.Errorf("空路径不应该报错: %v", err)
	}
}

// TestArgsDecimal 测试参数表的 decimal 解析兼容多种 yaml 类型
func TestArgsDecimal(t *testing.T) {
	args := Args{
		"as_string": "0.05",
		"as_float":  0.5,
		"as_int":    3,
		"bad":       []string{"x"},
	}

	cases := []struct {
		key  string
		want decimal.Decimal
	}{
		{"as_string", decimal.RequireFromString("0.05")},
		{"as_float", decimal.RequireFromString("0.5")},
		{"as_int", decimal.New(3, 0)},
	}
	for _, tc := range cases {
		got, err := args.Decimal(tc.key)
		if err != nil {
			t.Errorf("解析 %q 失败: %v", tc.key, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q 应该为 %s，实际 %s", tc.key, tc.want, got)
		}
	}

	if _, err := args.Decimal("missing"); err == nil {
		t.Error("缺失参数应该报错")
	}
	if _, err := args.Decimal("bad"); err == nil {
		t.Error("不支持的类型应该报错")
	}
}

// TestArgsInt 测试整数参数解析
func TestArgsInt(t *testing.T) {
	args := Args{"n": 5, "f": 2.0, "bad": "x"}

	if got, err := args.Int("n"); err != nil || got != 5 {
		t.Errorf("n 应该为 5，实际 %d (err=%v)", got, err)
	}
	if got, err := args.Int("f"); err != nil || got != 2 {
		t.Errorf("f 应该为 2，实际 %d (err=%v)", got, err)
	}
	if _, err := args.Int("missing"); err == nil {
		t.Error("缺失参数应该报错")
	}
	if _, err := args.Int("bad"); err == nil {
		t.Error("字符串参数应该报错")
	}
}
