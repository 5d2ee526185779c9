package roundtrip

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eth-shift/config"
	"eth-shift/pkg/chain"
	"eth-shift/pkg/chain/chaintest"
	"eth-shift/pkg/exchange"
	"eth-shift/pkg/journal"
	"eth-shift/pkg/tokens"
	"eth-shift/pkg/types"
)

var (
	eosContract = common.HexToAddress("0x86fa049857e0209aa7d9e616f7eb3b3b78ecfdb0")
	ethDeposit  = "0x00000000000000000000000000000000000e7001"
	eosDeposit  = "0x00000000000000000000000000000000000e0500"
)

const registryJSON = `[{"address": "0x86fa049857e0209aa7d9e616f7eb3b3b78ecfdb0", "symbol": "EOS", "decimal": 18, "type": "default"}]`

type fakeNegotiator struct {
	mu       sync.Mutex
	requests []types.DepositRequest
	errs     map[string]error
}

func (f *fakeNegotiator) Negotiate(ctx context.Context, req types.DepositRequest) (*types.DepositQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if err := f.errs[req.Pair()]; err != nil {
		return nil, err
	}
	deposit := ethDeposit
	if req.BaseAsset != NativeAsset {
		deposit = eosDeposit
	}
	return &types.DepositQuote{
		DepositAddress:    deposit,
		DepositAsset:      req.BaseAsset,
		WithdrawalAsset:   req.QuoteAsset,
		WithdrawalAddress: req.WithdrawalAddress,
		ReturnAddress:     req.ReturnAddress,
	}, nil
}

type fakeTracker struct {
	statuses []string
	calls    int
}

func (f *fakeTracker) GetDepositStatus(ctx context.Context, depositAddress string) (*exchange.DepositStatus, error) {
	status := f.statuses[len(f.statuses)-1]
	if f.calls < len(f.statuses) {
		status = f.statuses[f.calls]
	}
	f.calls++
	return &exchange.DepositStatus{Status: status, Address: depositAddress, Error: "refund issued"}, nil
}

type fixture struct {
	node       *chaintest.MockNode
	token      *chaintest.MockToken
	negotiator *fakeNegotiator
	journal    *journal.Journal
	key        *ecdsa.PrivateKey
	account    common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	account := crypto.PubkeyToAddress(key.PublicKey)

	node := chaintest.NewMockNode()
	node.SetBalance(account, big.NewInt(1_000_000_000_000_000_001))
	token := &chaintest.MockToken{
		Name:       "EOS",
		Symbol:     "EOS",
		Decimals:   18,
		Bytes32:    true,
		Balances:   map[common.Address]*big.Int{account: big.NewInt(250_000)},
		EmptyReads: 2,
	}
	node.Tokens[eosContract] = token

	j, err := journal.Open(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)

	return &fixture{
		node:       node,
		token:      token,
		negotiator: &fakeNegotiator{errs: map[string]error{}},
		journal:    j,
		key:        key,
		account:    account,
	}
}

func (f *fixture) runner(t *testing.T, tracker DepositTracker) *Runner {
	t.Helper()
	log, _ := test.NewNullLogger()
	registry, err := tokens.Parse([]byte(registryJSON), "test")
	require.NoError(t, err)

	submitter := chain.NewSubmitter(f.node, config.ChainConfig{
		Confirmations: 3,
		PollInterval:  time.Millisecond,
		GasMultiplier: 2,
		CheckBalance:  true,
	}, log)

	return NewRunner(f.node, submitter, f.negotiator, registry, f.journal, tracker, log, Options{
		Account:      f.account,
		Key:          f.key,
		Symbol:       "eos",
		PollInterval: time.Millisecond,
	})
}

func TestRunRoundTrip(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil)

	var steps []string
	r.Progress = func(step string) { steps = append(steps, step) }

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	funds := strings.ToLower(f.account.Hex())
	require.Len(t, f.negotiator.requests, 2)
	assert.Equal(t, types.DepositRequest{
		WithdrawalAddress: funds,
		ReturnAddress:     funds,
		BaseAsset:         "ETH",
		QuoteAsset:        "EOS",
	}, f.negotiator.requests[0])
	assert.Equal(t, "EOS_ETH", f.negotiator.requests[1].Pair())

	sent := f.node.SentTransactions()
	require.Len(t, sent, 2)

	// half the balance, rounded down
	assert.Equal(t, common.HexToAddress(ethDeposit), *sent[0].To())
	assert.Equal(t, "500000000000000000", sent[0].Value().String())

	want, err := chain.PackTransfer(common.HexToAddress(eosDeposit), big.NewInt(250_000))
	require.NoError(t, err)
	assert.Equal(t, eosContract, *sent[1].To())
	assert.Equal(t, 0, sent[1].Value().Sign())
	assert.Equal(t, want, sent[1].Data())
	assert.Equal(t, sent[0].Nonce()+1, sent[1].Nonce())

	assert.Equal(t, "EOS", result.TokenName)
	assert.Equal(t, "250000", result.TokenBalance)
	require.Len(t, result.Legs, 2)
	assert.Equal(t, sent[1].Hash(), result.Legs[1].Receipt.TxHash)
	assert.NotEmpty(t, steps)

	run, err := f.journal.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, journal.RunCompleted, run.Status)
	require.Len(t, run.Legs, 2)
	for i, leg := range run.Legs {
		assert.Equal(t, journal.LegConfirmed, leg.Status)
		assert.Equal(t, sent[i].Hash().Hex(), leg.TxHash)
	}
	assert.Equal(t, "ETH", run.Legs[0].Asset)
	assert.Equal(t, "EOS", run.Legs[1].Asset)
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantErr error
		sent    int
	}{
		{
			name: "pair not listed",
			setup: func(f *fixture) {
				f.negotiator.errs["ETH_EOS"] = exchange.ErrPairNotFound
			},
			wantErr: exchange.ErrPairNotFound,
		},
		{
			name: "contract symbol differs",
			setup: func(f *fixture) {
				f.token.Symbol = "EOX"
			},
			wantErr: ErrSymbolMismatch,
		},
		{
			name: "empty account",
			setup: func(f *fixture) {
				f.node.SetBalance(f.account, big.NewInt(1))
			},
			wantErr: ErrNothingToSend,
		},
		{
			name: "first deposit reverted",
			setup: func(f *fixture) {
				f.node.ReceiptStatus = gethtypes.ReceiptStatusFailed
			},
			wantErr: ErrTransactionReverted,
			sent:    1,
		},
		{
			name: "return leg rejected",
			setup: func(f *fixture) {
				f.negotiator.errs["EOS_ETH"] = exchange.ErrAssetUnavailable
			},
			wantErr: exchange.ErrAssetUnavailable,
			sent:    1,
		},
		{
			name: "broadcast fails",
			setup: func(f *fixture) {
				f.node.ErrorOnNext["SendTransaction"] = errors.New("nonce too low")
			},
			wantErr: chain.ErrSubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			result, err := f.runner(t, nil).Run(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.node.SentTransactions(), tt.sent)

			runs := f.journal.ListRuns()
			require.Len(t, runs, 1)
			assert.Equal(t, journal.RunFailed, runs[0].Status)
			assert.NotEmpty(t, runs[0].Error)
			if result != nil {
				assert.Equal(t, runs[0].ID, result.RunID)
			}
		})
	}
}

func TestRunUnknownSymbol(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t, nil)
	r.opts.Symbol = "OMG"

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, tokens.ErrUnknownSymbol)
	assert.Empty(t, f.negotiator.requests)
}

func TestRunTracksExchangeStatus(t *testing.T) {
	t.Run("received", func(t *testing.T) {
		f := newFixture(t)
		f.token.EmptyReads = 3
		tracker := &fakeTracker{statuses: []string{exchange.StatusNoDeposits, exchange.StatusReceived}}

		result, err := f.runner(t, tracker).Run(context.Background())
		require.NoError(t, err)
		assert.Positive(t, tracker.calls)

		run, err := f.journal.GetRun(result.RunID)
		require.NoError(t, err)
		assert.Equal(t, exchange.StatusReceived, run.Legs[0].ExchangeStatus)
	})

	t.Run("failed", func(t *testing.T) {
		f := newFixture(t)
		f.token.EmptyReads = 1 << 20
		tracker := &fakeTracker{statuses: []string{exchange.StatusReceived, exchange.StatusFailed}}

		_, err := f.runner(t, tracker).Run(context.Background())
		assert.ErrorIs(t, err, ErrDepositFailed)
		assert.Contains(t, err.Error(), "refund issued")
		assert.Len(t, f.node.SentTransactions(), 1)
	})
}

func TestRunCancelledWhileWaitingForTokens(t *testing.T) {
	f := newFixture(t)
	f.token.EmptyReads = 1 << 20

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.runner(t, nil).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, f.node.SentTransactions(), 1)
}

func TestRunCancelledWhileWaitingForReceipt(t *testing.T) {
	f := newFixture(t)
	f.node.PendingPolls = 1 << 20

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := f.runner(t, nil).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, f.node.SentTransactions(), 1)

	runs := f.journal.ListRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, journal.RunFailed, runs[0].Status)
	if result != nil {
		assert.Equal(t, runs[0].ID, result.RunID)
	}

	// the deposit may still be mined, so the run stays open for reconciliation
	unresolved := f.journal.Unresolved()
	require.Len(t, unresolved, 1)
	require.Len(t, unresolved[0].Legs, 1)
	assert.Equal(t, journal.LegUnconfirmed, unresolved[0].Legs[0].Status)
	assert.Equal(t, f.node.SentTransactions()[0].Hash().Hex(), unresolved[0].Legs[0].TxHash)
}

func TestNativeShare(t *testing.T) {
	tests := []struct {
		name     string
		fraction *big.Rat
		balance  int64
		want     int64
	}{
		{"default half", nil, 1001, 500},
		{"one third", big.NewRat(1, 3), 10, 3},
		{"everything", big.NewRat(1, 1), 7, 7},
		{"dust", nil, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(nil, nil, nil, nil, nil, nil, nil, Options{NativeFraction: tt.fraction})
			assert.Equal(t, big.NewInt(tt.want).String(), r.nativeShare(big.NewInt(tt.balance)).String())
		})
	}
}
