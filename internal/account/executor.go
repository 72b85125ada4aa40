package account

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/betbot/mmbot/internal/market"
	"github.com/betbot/mmbot/internal/nonce"
	"github.com/betbot/mmbot/pkg/logger"
)

// ErrNonceConflict 发出的交易使用了过期或重复的 nonce。
// 控制循环据此触发 Sequencer.Reset。
var ErrNonceConflict = errors.New("nonce 冲突")

// IsNonceConflict 判断错误是否为 nonce 冲突（含节点返回的原始错误文本）
func IsNonceConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNonceConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "invalid nonce") ||
		strings.Contains(msg, "replacement transaction underpriced")
}

// ChainClient 执行交易所需的链上能力，*ethclient.Client 直接满足
type ChainClient interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Multicall 合约的 aggregate 接口（所有子调用必须全部成功）
const multicallABIJSON = `[{"inputs":[{"components":[{"internalType":"address","name":"target","type":"address"},{"internalType":"bytes","name":"callData","type":"bytes"}],"internalType":"struct Multicall.Call[]","name":"calls","type":"tuple[]"}],"name":"aggregate","outputs":[{"internalType":"uint256","name":"blockNumber","type":"uint256"},{"internalType":"bytes[]","name":"returnData","type":"bytes[]"}],"stateMutability":"payable","type":"function"}]`

// Executor 持有签名私钥，把 venue call 变成已上链的交易。
// 所有 nonce 都从 sequencer 取，发出后推进。
type Executor struct {
	client    ChainClient
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	sequencer *nonce.Sequencer

	multicallAddr common.Address
	multicallABI  abi.ABI

	confirmTimeout time.Duration
}

// NewExecutor 创建执行器。multicallAddr 仅批量执行需要，可传零地址。
func NewExecutor(client ChainClient, key *ecdsa.PrivateKey, chainID *big.Int, seq *nonce.Sequencer, multicallAddr common.Address, confirmTimeout time.Duration) (*Executor, error) {
	if key == nil {
		return nil, errors.New("私钥不能为空")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.Errorf("非法 chainID: %v", chainID)
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}

	parsed, err := abi.JSON(strings.NewReader(multicallABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "解析 multicall ABI 失败")
	}

	return &Executor{
		client:         client,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		sequencer:      seq,
		multicallAddr:  multicallAddr,
		multicallABI:   parsed,
		confirmTimeout: confirmTimeout,
	}, nil
}

// Address 签名账户地址
func (e *Executor) Address() common.Address {
	return e.from
}

// ExecuteCalls 逐笔执行：每个 call 一笔交易、一次 nonce 推进、一次确认等待。
// 单笔失败不回滚此前已确认的交易，错误原样返回给调用方。
func (e *Executor) ExecuteCalls(ctx context.Context, calls []market.Call) error {
	if len(calls) == 0 {
		return nil
	}

	batchID := uuid.NewString()
	log := logger.WithField("batch", batchID)
	log.Infof("逐笔执行 %d 个调用", len(calls))

	for i, call := range calls {
		if err := e.executeOne(ctx, call); err != nil {
			return errors.Wrapf(err, "batch %s 第 %d 个调用失败", batchID, i)
		}
	}
	return nil
}

// ExecuteBatch 把所有调用打包成一笔 multicall 交易，单个 nonce，全部成功或全部失败
func (e *Executor) ExecuteBatch(ctx context.Context, calls []market.Call) error {
	if len(calls) == 0 {
		return nil
	}
	if e.multicallAddr == (common.Address{}) {
		return errors.New("未配置 multicall 合约地址")
	}

	type mcCall struct {
		Target   common.Address
		CallData []byte
	}
	packed := make([]mcCall, 0, len(calls))
	value := big.NewInt(0)
	for _, c := range calls {
		packed = append(packed, mcCall{Target: c.To, CallData: c.Data})
		if c.Value != nil {
			value = new(big.Int).Add(value, c.Value)
		}
	}

	data, err := e.multicallABI.Pack("aggregate", packed)
	if err != nil {
		return errors.Wrap(err, "打包 multicall 调用失败")
	}

	batchID := uuid.NewString()
	logger.WithField("batch", batchID).Infof("批量执行 %d 个调用（单笔交易）", len(calls))

	return e.executeOne(ctx, market.Call{To: e.multicallAddr, Data: data, Value: value})
}

func (e *Executor) executeOne(ctx context.Context, call market.Call) error {
	n, err := e.sequencer.GetNonce(ctx)
	if err != nil {
		return err
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return errors.Wrap(err, "获取gas价格失败")
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  e.from,
		To:    &call.To,
		Data:  call.Data,
		Value: value,
	})
	if err != nil {
		return errors.Wrap(err, "估算gas失败")
	}

	tx := ethtypes.NewTransaction(n, call.To, value, gasLimit, gasPrice, call.Data)

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(e.chainID), e.key)
	if err != nil {
		return errors.Wrap(err, "签名交易失败")
	}

	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		if IsNonceConflict(err) {
			return errors.Wrapf(ErrNonceConflict, "发送交易失败: %v", err)
		}
		return errors.Wrap(err, "发送交易失败")
	}

	if err := e.sequencer.IncrementNonce(ctx); err != nil {
		return err
	}

	logger.Infof("交易已发送 hash=%s nonce=%d gas=%d", signedTx.Hash().Hex(), n, gasLimit)

	// 确认等待带硬超时，避免卡死整个循环
	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, e.client, signedTx)
	if err != nil {
		return errors.Wrapf(err, "等待交易确认失败 hash=%s", signedTx.Hash().Hex())
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return errors.Errorf("交易回滚 hash=%s", signedTx.Hash().Hex())
	}

	logger.Infof("交易已确认 hash=%s block=%d", signedTx.Hash().Hex(), receipt.BlockNumber.Uint64())
	return nil
}
