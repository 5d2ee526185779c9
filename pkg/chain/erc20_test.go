package chain_test

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eth-shift/pkg/chain"
	"eth-shift/pkg/chain/chaintest"
)

func TestPackTransfer(t *testing.T) {
	data, err := chain.PackTransfer(deposit, big.NewInt(255))
	require.NoError(t, err)

	require.Len(t, data, 4+32+32)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Equal(t, common.LeftPadBytes(deposit.Bytes(), 32), data[4:36])
	assert.Equal(t, common.LeftPadBytes([]byte{0xff}, 32), data[36:])
}

func TestToken(t *testing.T) {
	ctx := context.Background()
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name    string
		bytes32 bool
	}{
		{"string metadata", false},
		{"bytes32 metadata", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := chaintest.NewMockNode()
			node.Tokens[contract] = &chaintest.MockToken{
				Name:     "EOS",
				Symbol:   "EOS",
				Decimals: 18,
				Bytes32:  tt.bytes32,
				Balances: map[common.Address]*big.Int{owner: big.NewInt(42)},
			}
			token := chain.NewToken(node, contract)

			name, err := token.Name(ctx)
			require.NoError(t, err)
			assert.Equal(t, "EOS", name)

			symbol, err := token.Symbol(ctx)
			require.NoError(t, err)
			assert.Equal(t, "EOS", symbol)

			decimals, err := token.Decimals(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint8(18), decimals)

			balance, err := token.BalanceOf(ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, "42", balance.String())

			assert.Equal(t, contract, token.Address())
		})
	}
}

func TestTokenBalanceOfUnknownHolder(t *testing.T) {
	node := chaintest.NewMockNode()
	node.Tokens[contract] = &chaintest.MockToken{Symbol: "EOS"}

	balance, err := chain.NewToken(node, contract).BalanceOf(context.Background(), deposit)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
}

func TestTokenCallErrors(t *testing.T) {
	t.Run("no contract", func(t *testing.T) {
		node := chaintest.NewMockNode()
		_, err := chain.NewToken(node, contract).Symbol(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to call symbol")
	})

	t.Run("node error", func(t *testing.T) {
		node := chaintest.NewMockNode()
		node.Tokens[contract] = &chaintest.MockToken{Symbol: "EOS"}
		injected := errors.New("header not found")
		node.ErrorOnNext["CallContract"] = injected

		_, err := chain.NewToken(node, contract).BalanceOf(context.Background(), deposit)
		assert.ErrorIs(t, err, injected)
	})
}
