package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/betbot/mmbot/internal/account"
	"github.com/betbot/mmbot/internal/datasource"
	"github.com/betbot/mmbot/internal/instruments"
	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/metrics"
	"github.com/betbot/mmbot/internal/mm"
	"github.com/betbot/mmbot/internal/nonce"
	"github.com/betbot/mmbot/internal/orderchain"
	"github.com/betbot/mmbot/internal/reconcile"
	"github.com/betbot/mmbot/internal/state"
	"github.com/betbot/mmbot/internal/txplan"
	"github.com/betbot/mmbot/internal/venue/remus"
	"github.com/betbot/mmbot/pkg/config"
	"github.com/betbot/mmbot/pkg/logger"
	"github.com/betbot/mmbot/pkg/ratelimit"
	"github.com/betbot/mmbot/pkg/secretstore"
	"github.com/betbot/mmbot/pkg/shutdown"
)

const gracefulShutdownPeriod = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	envPath := flag.String("env", ".env", ".env 文件路径（不存在则跳过）")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := config.LoadEnv(envPath); err != nil {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	logger.Infof("使用配置文件: %s", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sd := shutdown.NewManager()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
		defer cancel()
		sd.Shutdown(shutdownCtx)
	}()

	// metrics/debug 服务
	recorder := metrics.NewExpvarRecorder()
	if cfg.Metrics.ListenAddr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("启动 metrics 服务失败: %w", err)
		}
		logger.Infof("metrics 服务已启动: %s", cfg.Metrics.ListenAddr)
	}

	// 签名私钥
	rawKey, err := loadSigningKey(cfg.Account)
	if err != nil {
		return err
	}
	key, err := crypto.HexToECDSA(rawKey)
	if err != nil {
		return fmt.Errorf("解析私钥失败: %w", err)
	}

	// 链上客户端
	client, err := ethclient.DialContext(ctx, cfg.Account.RPCURL)
	if err != nil {
		return fmt.Errorf("连接节点失败: %w", err)
	}
	sd.OnShutdown(func(context.Context) { client.Close() })

	owner := crypto.PubkeyToAddress(key.PublicKey)
	logger.Infof("签名账户: %s", owner.Hex())

	// nonce sequencer：权威源是节点的 pending nonce
	seq := nonce.NewSequencer(nonce.SourceFunc(func(ctx context.Context) (uint64, error) {
		return client.PendingNonceAt(ctx, owner)
	}))

	executor, err := account.NewExecutor(
		client, key, big.NewInt(cfg.Account.ChainID), seq,
		common.HexToAddress(cfg.Account.MulticallAddress),
		cfg.Loop.ConfirmTimeout(),
	)
	if err != nil {
		return fmt.Errorf("创建执行器失败: %w", err)
	}

	// venue 适配器
	mkt, err := buildMarket(cfg, client, owner, executor)
	if err != nil {
		return err
	}

	// 公允价数据源
	ds, err := datasource.New(cfg.Asset.PriceSource, cfg.Asset.BaseAsset, cfg.Asset.QuoteAsset)
	if err != nil {
		return fmt.Errorf("创建数据源失败: %w", err)
	}
	if closer, ok := ds.(io.Closer); ok {
		sd.OnShutdown(func(context.Context) { _ = closer.Close() })
	}

	st := state.New(mkt, ds)

	// registry 驱动的组件构造：未知名字在这里立刻失败
	chain, err := orderchain.FromConfig(cfg.OrderChain)
	if err != nil {
		return err
	}
	reconciler, err := reconcile.FromConfig(cfg.Reconciler)
	if err != nil {
		return err
	}
	planner, err := txplan.FromName(cfg.TxPlanner, mkt, executor, recorder)
	if err != nil {
		return err
	}

	maker := mm.New(st, mkt, chain, reconciler, planner, recorder)
	if err := maker.Setup(ctx); err != nil {
		return fmt.Errorf("初始化交易环境失败: %w", err)
	}

	loop := mm.NewLoop(maker, st, seq, recorder, cfg.Loop.Interval(), cfg.Loop.Backoff())

	logger.Infof("开始做市 market=%d %s/%s venue=%s",
		cfg.Asset.MarketID, cfg.Asset.BaseAsset, cfg.Asset.QuoteAsset, cfg.Asset.Venue)

	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("收到退出信号，停止做市")
	return nil
}

// loadSigningKey 优先从 secretstore 取私钥，退化到环境变量
func loadSigningKey(cfg config.AccountConfig) (string, error) {
	if cfg.SecretStorePath != "" {
		encKey, err := secretstore.ParseKey(os.Getenv(cfg.SecretStoreKeyEnv))
		if err != nil {
			return "", fmt.Errorf("解析 secretstore 加密密钥失败: %w", err)
		}
		store, err := secretstore.Open(secretstore.OpenOptions{
			Path:          cfg.SecretStorePath,
			EncryptionKey: encKey,
			ReadOnly:      true,
		})
		if err != nil {
			return "", fmt.Errorf("打开 secretstore 失败: %w", err)
		}
		defer store.Close()

		val, found, err := store.GetString(secretstore.KeySigningKey)
		if err != nil {
			return "", fmt.Errorf("读取私钥失败: %w", err)
		}
		if found {
			return val, nil
		}
	}

	if cfg.PrivateKeyEnv != "" {
		if val := os.Getenv(cfg.PrivateKeyEnv); val != "" {
			return val, nil
		}
	}
	return "", fmt.Errorf("没有可用的私钥来源")
}

func buildMarket(cfg *config.Config, client *ethclient.Client, owner common.Address, executor *account.Executor) (market.Market, error) {
	base, err := instruments.BySymbol(cfg.Asset.BaseAsset)
	if err != nil {
		return nil, err
	}
	quote, err := instruments.BySymbol(cfg.Asset.QuoteAsset)
	if err != nil {
		return nil, err
	}

	tickSize, err := decimal.NewFromString(cfg.Asset.TickSize)
	if err != nil {
		return nil, fmt.Errorf("解析 tick_size 失败: %w", err)
	}
	lotSize, err := decimal.NewFromString(cfg.Asset.LotSize)
	if err != nil {
		return nil, fmt.Errorf("解析 lot_size 失败: %w", err)
	}

	mktCfg := market.Config{
		MarketID: cfg.Asset.MarketID,
		Venue:    cfg.Asset.Venue,
		Base:     base,
		Quote:    quote,
		TickSize: tickSize,
		LotSize:  lotSize,
	}

	switch cfg.Asset.Venue {
	case "remus":
		return remus.New(mktCfg, client,
			common.HexToAddress(cfg.Asset.DexAddress), owner,
			executor, ratelimit.NewTokenBucket(10, 10))
	default:
		return nil, fmt.Errorf("不支持的 venue: %s", cfg.Asset.Venue)
	}
}
