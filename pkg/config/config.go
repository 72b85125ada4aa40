// Package config 应用配置：YAML 文件 + .env 环境变量。
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`       // debug/info/warn/error
	File       string `yaml:"file"`        // 日志文件路径，为空只输出到 stdout
	MaxSize    int    `yaml:"max_size"`    // 单个日志文件最大 MB
	MaxBackups int    `yaml:"max_backups"` // 保留的旧文件个数
	MaxAge     int    `yaml:"max_age"`     // 保留天数
	Compress   bool   `yaml:"compress"`    // 是否压缩旧文件
}

// MetricsConfig 观测配置
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // expvar/pprof 监听地址，为空不启动
}

// AccountConfig 签名账户配置。
// 私钥优先从 secretstore 取，其次从环境变量取。
type AccountConfig struct {
	RPCURL           string `yaml:"rpc_url"`
	ChainID          int64  `yaml:"chain_id"`
	MulticallAddress string `yaml:"multicall_address"` // bundling 策略需要

	SecretStorePath   string `yaml:"secret_store_path"`    // badger 库路径，为空则跳过
	SecretStoreKeyEnv string `yaml:"secret_store_key_env"` // 库加密密钥所在环境变量
	PrivateKeyEnv     string `yaml:"private_key_env"`      // 私钥环境变量（fallback）
}

// AssetConfig 市场与资产配置
type AssetConfig struct {
	MarketID    uint64 `yaml:"market_id"`
	Venue       string `yaml:"venue"`        // 目前支持 remus
	DexAddress  string `yaml:"dex_address"`  // venue 合约地址
	BaseAsset   string `yaml:"base_asset"`   // 如 ETH
	QuoteAsset  string `yaml:"quote_asset"`  // 如 USDC
	PriceSource string `yaml:"price_source"` // binance / gateio / binance_ws
	TickSize    string `yaml:"tick_size"`    // raw 整数步长
	LotSize     string `yaml:"lot_size"`
}

// LoopConfig 控制循环配置
type LoopConfig struct {
	IntervalSeconds       int `yaml:"interval_seconds"`        // 周期间隔，默认 10
	BackoffSeconds        int `yaml:"backoff_seconds"`         // 出错退避，默认 5
	ConfirmTimeoutSeconds int `yaml:"confirm_timeout_seconds"` // 交易确认超时，默认 120
}

// Interval 周期间隔
func (l LoopConfig) Interval() time.Duration {
	return time.Duration(l.IntervalSeconds) * time.Second
}

// Backoff 出错退避
func (l LoopConfig) Backoff() time.Duration {
	return time.Duration(l.BackoffSeconds) * time.Second
}

// ConfirmTimeout 交易确认超时
func (l LoopConfig) ConfirmTimeout() time.Duration {
	return time.Duration(l.ConfirmTimeoutSeconds) * time.Second
}

// Config 应用配置
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Account AccountConfig `yaml:"account"`
	Asset   AssetConfig   `yaml:"asset"`
	Loop    LoopConfig    `yaml:"loop"`

	OrderChain []NamedConfig `yaml:"order_chain"`
	Reconciler NamedConfig   `yaml:"reconciler"`
	TxPlanner  string        `yaml:"tx_planner"`
}

// LoadEnv 加载 .env 文件。文件不存在不算错误。
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Load 从 YAML 文件加载并校验配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 验证配置。registry 名字的合法性由各 registry 在构造时检查。
func (c *Config) Validate() error {
	if c.Account.RPCURL == "" {
		return fmt.Errorf("account.rpc_url 不能为空")
	}
	if c.Account.ChainID <= 0 {
		return fmt.Errorf("account.chain_id 必须为正: %d", c.Account.ChainID)
	}
	if c.Account.SecretStorePath == "" && c.Account.PrivateKeyEnv == "" {
		return fmt.Errorf("必须配置 secret_store_path 或 private_key_env 之一")
	}

	if c.Asset.Venue == "" {
		return fmt.Errorf("asset.venue 不能为空")
	}
	if c.Asset.DexAddress == "" {
		return fmt.Errorf("asset.dex_address 不能为空")
	}
	if c.Asset.BaseAsset == "" || c.Asset.QuoteAsset == "" {
		return fmt.Errorf("asset.base_asset / asset.quote_asset 不能为空")
	}
	if c.Asset.BaseAsset == c.Asset.QuoteAsset {
		return fmt.Errorf("base 和 quote 不能相同: %s", c.Asset.BaseAsset)
	}
	if c.Asset.PriceSource == "" {
		return fmt.Errorf("asset.price_source 不能为空")
	}

	if len(c.OrderChain) == 0 {
		return fmt.Errorf("order_chain 不能为空")
	}
	if c.Reconciler.Name == "" {
		return fmt.Errorf("reconciler.name 不能为空")
	}
	if c.TxPlanner == "" {
		return fmt.Errorf("tx_planner 不能为空")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Loop.IntervalSeconds <= 0 {
		c.Loop.IntervalSeconds = 10
	}
	if c.Loop.BackoffSeconds <= 0 {
		c.Loop.BackoffSeconds = 5
	}
	if c.Loop.ConfirmTimeoutSeconds <= 0 {
		c.Loop.ConfirmTimeoutSeconds = 120
	}

	return nil
}
