package chain

import (
	"context"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lamassu-labs/mentowatch/errors"
)

// Minimal ERC-20 read interface. The Mento stablecoins and reserve
// collateral tokens all implement these.
const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// TotalSupply reads totalSupply() of the token at addr.
func (c *Client) TotalSupply(ctx context.Context, addr common.Address) (*big.Int, error) {
	out, err := c.callERC20(ctx, addr, "totalSupply")
	if err != nil {
		return nil, err
	}
	return asBigInt(out, "totalSupply")
}

// BalanceOf reads balanceOf(holder) of the token at addr.
func (c *Client) BalanceOf(ctx context.Context, addr, holder common.Address) (*big.Int, error) {
	out, err := c.callERC20(ctx, addr, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return asBigInt(out, "balanceOf")
}

// Decimals reads decimals() of the token at addr.
func (c *Client) Decimals(ctx context.Context, addr common.Address) (uint8, error) {
	out, err := c.callERC20(ctx, addr, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, errors.Newf("decimals returned unexpected type %T", out[0])
	}
	return d, nil
}

// Symbol reads symbol() of the token at addr.
func (c *Client) Symbol(ctx context.Context, addr common.Address) (string, error) {
	out, err := c.callERC20(ctx, addr, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := out[0].(string)
	if !ok {
		return "", errors.Newf("symbol returned unexpected type %T", out[0])
	}
	return s, nil
}

func (c *Client) callERC20(ctx context.Context, addr common.Address, method string, args ...any) ([]any, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "packing %s call", method)
	}

	msg := ethereum.CallMsg{To: &addr, Data: data}
	var raw []byte
	err = c.do(ctx, method, func(callCtx context.Context) error {
		var err error
		raw, err = c.eth.CallContract(callCtx, msg, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.Wrapf(errors.ErrCallReverted, "%s on %s returned no data", method, addr.Hex())
	}

	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "unpacking %s result from %s", method, addr.Hex())
	}
	if len(out) == 0 {
		return nil, errors.Newf("%s on %s decoded to no values", method, addr.Hex())
	}
	return out, nil
}

func asBigInt(out []any, method string) (*big.Int, error) {
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Newf("%s returned unexpected type %T", method, out[0])
	}
	return v, nil
}
