package exchange

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eth-shift/config"
)

func TestClientGetPairInfo(t *testing.T) {
	_, client := newTestNegotiator(t, newFakeExchange())

	info, err := client.GetPairInfo(context.Background(), "ETH_EOS")
	require.NoError(t, err)
	assert.Equal(t, "ETH_EOS", info.Pair)
	assert.True(t, info.Rate.Equal(decimal.RequireFromString("95.4321")))
	assert.True(t, info.MinerFee.Equal(decimal.RequireFromString("0.5")))

	_, err = client.GetPairInfo(context.Background(), "XMR_EOS")
	assert.ErrorIs(t, err, ErrExchange)
	assert.Contains(t, err.Error(), "Unknown pair")
}

func TestClientStringRates(t *testing.T) {
	_, client := newTestNegotiator(t, newFakeExchange())

	markets, err := client.GetMarketInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 3)
	assert.Equal(t, "EOS_ETH", markets[1].Pair)
	assert.Equal(t, "0.0104", markets[1].Rate.String())
}

func TestClientShiftAttachesAPIKey(t *testing.T) {
	fake := newFakeExchange()
	server := httptest.NewServer(fake)
	defer server.Close()

	client := NewClient(config.ExchangeConfig{BaseURL: server.URL + "/", APIKey: "public-key"})
	_, err := client.Shift(context.Background(), ShiftRequest{
		Withdrawal:    fundsAddress,
		Pair:          "ETH_EOS",
		ReturnAddress: fundsAddress,
	})
	require.NoError(t, err)

	require.Len(t, fake.shiftRequests, 1)
	assert.Equal(t, "public-key", fake.shiftRequests[0].APIKey)
	assert.Equal(t, server.URL, client.BaseURL())
}

func TestClientGetDepositStatus(t *testing.T) {
	_, client := newTestNegotiator(t, newFakeExchange())

	status, err := client.GetDepositStatus(context.Background(), depositAddress)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status.Status)
	assert.Equal(t, depositAddress, status.Address)
	assert.Equal(t, "47.71", status.OutgoingCoin.String())
	assert.True(t, status.Finished())
}

func TestCoinAvailable(t *testing.T) {
	assert.True(t, Coin{Status: "available"}.Available())
	assert.True(t, Coin{}.Available())
	assert.False(t, Coin{Status: CoinStatusUnavailable}.Available())
}
