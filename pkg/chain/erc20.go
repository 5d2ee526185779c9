package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20ABI covers the read calls and transfer used by the round trip
const ERC20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var erc20ABI = mustParseABI(ERC20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return parsed
}

// PackTransfer encodes an ERC20 transfer(to, amount) call
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return data, nil
}

// Token reads an ERC20 contract
type Token struct {
	caller  ContractCaller
	address common.Address
}

// NewToken binds a token contract at address
func NewToken(caller ContractCaller, address common.Address) *Token {
	return &Token{caller: caller, address: address}
}

// Address returns the contract address
func (t *Token) Address() common.Address {
	return t.address
}

// Name returns the token name
func (t *Token) Name(ctx context.Context) (string, error) {
	return t.callString(ctx, "name")
}

// Symbol returns the token symbol
func (t *Token) Symbol(ctx context.Context) (string, error) {
	return t.callString(ctx, "symbol")
}

// Decimals returns the number of decimals of the base unit
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals result %T", out[0])
	}
	return decimals, nil
}

// BalanceOf returns the token balance of owner in base units
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result %T", out[0])
	}
	return balance, nil
}

// callString handles both string and bytes32 returns. Early tokens
// such as EOS declare name and symbol as bytes32.
func (t *Token) callString(ctx context.Context, method string) (string, error) {
	raw, err := t.rawCall(ctx, method)
	if err != nil {
		return "", err
	}

	out, err := erc20ABI.Unpack(method, raw)
	if err == nil {
		if s, ok := out[0].(string); ok {
			return s, nil
		}
	}
	if len(raw) == 32 {
		return string(bytes.TrimRight(raw, "\x00")), nil
	}
	return "", fmt.Errorf("failed to decode %s result: %w", method, err)
}

func (t *Token) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	raw, err := t.rawCall(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}

func (t *Token) rawCall(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:   &t.address,
		Data: data,
	}

	result, err := t.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return result, nil
}
