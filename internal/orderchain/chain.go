package orderchain

import (
	"fmt"

	"github.com/betbot/mmbot/internal/domain"
	"github.com/betbot/mmbot/internal/state"
	"github.com/betbot/mmbot/pkg/config"
)

// Chain 有序的订单链：从空的 DesiredOrders 开始，
// 按配置顺序左折叠所有元素，产出本周期的期望订单集合。
type Chain struct {
	elements []Element
}

// NewChain 从元素列表创建链
func NewChain(elements []Element) *Chain {
	return &Chain{elements: elements}
}

// Process 依次执行所有元素。元素返回的公允价立即写回 state，
// 对同一轮中后续的元素可见。
func (c *Chain) Process(st *state.State) domain.DesiredOrders {
	orders := domain.DesiredOrders{}

	for _, e := range c.elements {
		v := View{
			FairPrice: st.FairPrice(),
			Position:  st.Account.Position(),
		}
		fp, out := e.Process(v, orders)
		if !fp.Equal(st.FairPrice()) {
			st.SetFairPrice(fp)
		}
		orders = out
	}

	return orders
}

// Constructor 元素构造函数，参数非法时返回配置错误
type Constructor func(args config.Args) (Element, error)

var constructors = map[string]Constructor{}

// Register 注册元素构造函数（在各元素的 init 中调用）
func Register(name string, c Constructor) {
	if _, ok := constructors[name]; ok {
		panic(fmt.Sprintf("order chain element %q 重复注册", name))
	}
	constructors[name] = c
}

// FromConfig 按配置构造链。未知元素名或非法参数都是构造期的致命错误。
func FromConfig(cfgs []config.NamedConfig) (*Chain, error) {
	elements := make([]Element, 0, len(cfgs))
	for _, cfg := range cfgs {
		ctor, ok := constructors[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("未知 order chain element %q", cfg.Name)
		}
		e, err := ctor(cfg.Args)
		if err != nil {
			return nil, fmt.Errorf("构造 element %q 失败: %w", cfg.Name, err)
		}
		elements = append(elements, e)
	}
	return NewChain(elements), nil
}
