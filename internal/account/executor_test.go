package account

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// TestIsNonceConflict 测试 nonce 冲突错误的识别
func TestIsNonceConflict(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"哨兵错误", ErrNonceConflict, true},
		{"包装过的哨兵错误", errors.Wrap(ErrNonceConflict, "发送交易失败"), true},
		{"节点 nonce too low", errors.New("nonce too low: next nonce 5, tx nonce 3"), true},
		{"节点 invalid nonce", errors.New("Invalid Nonce"), true},
		{"replacement underpriced", errors.New("replacement transaction underpriced"), true},
		{"其他错误", errors.New("insufficient funds for gas"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNonceConflict(tc.err); got != tc.want {
				t.Errorf("IsNonceConflict(%v) = %v, 应该为 %v", tc.err, got, tc.want)
			}
		})
	}
}

// TestNewExecutorValidation 测试构造参数校验
func TestNewExecutorValidation(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("生成测试私钥失败: %v", err)
	}

	if _, err := NewExecutor(nil, nil, big.NewInt(1), nil, common.Address{}, time.Minute); err == nil {
		t.Error("空私钥应该报错")
	}
	if _, err := NewExecutor(nil, key, nil, nil, common.Address{}, time.Minute); err == nil {
		t.Error("空 chainID 应该报错")
	}
	if _, err := NewExecutor(nil, key, big.NewInt(0), nil, common.Address{}, time.Minute); err == nil {
		t.Error("非正 chainID 应该报错")
	}
	if _, err := NewExecutor(nil, key, big.NewInt(1), nil, common.Address{}, time.Minute); err != nil {
		t.Errorf("合法参数构造失败: %v", err)
	}
}
