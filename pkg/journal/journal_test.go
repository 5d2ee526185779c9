package journal

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
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
	"eth-shift/pkg/types"
)

var _ chain.IntentRecorder = (*Recorder)(nil)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)
	return j
}

func TestJournalRunLifecycle(t *testing.T) {
	j := openTestJournal(t)

	run, err := j.StartRun("EOS", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, RunActive, run.Status)
	assert.Len(t, run.ID, 36)

	legID, err := j.AddLeg(run.ID, Leg{Pair: "ETH_EOS", Asset: "ETH", DepositAddress: "0xd1"})
	require.NoError(t, err)

	got, err := j.GetRun(run.ID)
	require.NoError(t, err)
	require.Len(t, got.Legs, 1)
	assert.Equal(t, legID, got.Legs[0].ID)
	assert.Equal(t, LegNegotiated, got.Legs[0].Status)

	require.NoError(t, j.UpdateExchangeStatus(run.ID, legID, "received"))
	require.NoError(t, j.FinishRun(run.ID, nil))

	got, err = j.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Equal(t, "received", got.Legs[0].ExchangeStatus)

	_, err = j.AddLeg(run.ID, Leg{Pair: "EOS_ETH"})
	assert.Error(t, err, "finished runs do not take new legs")
}

func TestJournalFailedRun(t *testing.T) {
	j := openTestJournal(t)

	run, err := j.StartRun("EOS", "0xabc")
	require.NoError(t, err)
	require.NoError(t, j.FinishRun(run.ID, errors.New("pair not found")))

	got, err := j.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "pair not found", got.Error)
	assert.True(t, got.IsFinished())
}

func TestJournalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.json")

	j, err := Open(path)
	require.NoError(t, err)
	run, err := j.StartRun("EOS", "0xabc")
	require.NoError(t, err)
	_, err = j.AddLeg(run.ID, Leg{Pair: "ETH_EOS"})
	require.NoError(t, err)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file renamed away")

	reopened, err := Open(path)
	require.NoError(t, err)
	runs := reopened.ListRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Len(t, runs[0].Legs, 1)
}

func TestJournalCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestJournalGetRunByPrefix(t *testing.T) {
	j := openTestJournal(t)
	run, err := j.StartRun("EOS", "0xabc")
	require.NoError(t, err)

	got, err := j.GetRun(run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	_, err = j.GetRun("zzzz")
	assert.Error(t, err)
}

func TestJournalCopiesAreIsolated(t *testing.T) {
	j := openTestJournal(t)
	run, err := j.StartRun("EOS", "0xabc")
	require.NoError(t, err)
	_, err = j.AddLeg(run.ID, Leg{Pair: "ETH_EOS"})
	require.NoError(t, err)

	got, err := j.GetRun(run.ID)
	require.NoError(t, err)
	got.Legs[0].Status = LegConfirmed
	got.Status = RunCompleted

	again, err := j.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunActive, again.Status)
	assert.Equal(t, LegNegotiated, again.Legs[0].Status)
}

func TestRecorder(t *testing.T) {
	tx := gethtypes.NewTransaction(4, common.HexToAddress("0xd1"), big.NewInt(500), 42_000, big.NewInt(1), nil)
	req := types.TransferRequest{Amount: big.NewInt(500)}

	setup := func(t *testing.T) (*Journal, string, string) {
		j := openTestJournal(t)
		run, err := j.StartRun("EOS", "0xabc")
		require.NoError(t, err)
		legID, err := j.AddLeg(run.ID, Leg{Pair: "ETH_EOS", Asset: "ETH"})
		require.NoError(t, err)
		return j, run.ID, legID
	}

	t.Run("intent then confirmed", func(t *testing.T) {
		j, runID, legID := setup(t)
		rec := j.Recorder(runID, legID)

		require.NoError(t, rec.RecordIntent(req, tx))
		run, err := j.GetRun(runID)
		require.NoError(t, err)
		leg := run.Legs[0]
		assert.Equal(t, LegPending, leg.Status)
		assert.Equal(t, "500", leg.Amount)
		assert.Equal(t, uint64(4), leg.Nonce)
		assert.Equal(t, uint64(42_000), leg.GasLimit)
		assert.Equal(t, tx.Hash().Hex(), leg.TxHash)
		assert.Len(t, j.Unresolved(), 1)

		require.NoError(t, rec.RecordReceipt(&types.Receipt{
			TxHash:        tx.Hash(),
			BlockNumber:   120,
			Status:        gethtypes.ReceiptStatusSuccessful,
			Confirmations: 3,
		}))
		run, err = j.GetRun(runID)
		require.NoError(t, err)
		leg = run.Legs[0]
		assert.Equal(t, LegConfirmed, leg.Status)
		assert.Equal(t, uint64(120), leg.BlockNumber)
		assert.Equal(t, uint64(3), leg.Confirmations)
		assert.NotNil(t, leg.Completed)
		assert.Empty(t, j.Unresolved())
	})

	t.Run("reverted", func(t *testing.T) {
		j, runID, legID := setup(t)
		rec := j.Recorder(runID, legID)

		require.NoError(t, rec.RecordIntent(req, tx))
		require.NoError(t, rec.RecordReceipt(&types.Receipt{TxHash: tx.Hash(), Status: gethtypes.ReceiptStatusFailed}))

		run, err := j.GetRun(runID)
		require.NoError(t, err)
		assert.Equal(t, LegFailed, run.Legs[0].Status)
		assert.Equal(t, "transaction reverted", run.Legs[0].Error)
	})

	t.Run("failure", func(t *testing.T) {
		j, runID, legID := setup(t)
		rec := j.Recorder(runID, legID)

		require.NoError(t, rec.RecordIntent(req, tx))
		require.NoError(t, rec.RecordFailure(tx.Hash(), errors.New("nonce too low")))

		run, err := j.GetRun(runID)
		require.NoError(t, err)
		assert.Equal(t, LegFailed, run.Legs[0].Status)
		assert.Equal(t, "nonce too low", run.Legs[0].Error)
		assert.Equal(t, tx.Hash().Hex(), run.Legs[0].TxHash)
	})

	t.Run("unconfirmed", func(t *testing.T) {
		j, runID, legID := setup(t)
		rec := j.Recorder(runID, legID)

		require.NoError(t, rec.RecordIntent(req, tx))
		require.NoError(t, rec.RecordUnconfirmed(tx.Hash(), context.Canceled))
		require.NoError(t, j.FinishRun(runID, context.Canceled))

		run, err := j.GetRun(runID)
		require.NoError(t, err)
		assert.Equal(t, LegUnconfirmed, run.Legs[0].Status)
		assert.Equal(t, "context canceled", run.Legs[0].Error)
		assert.Equal(t, tx.Hash().Hex(), run.Legs[0].TxHash)
		assert.Len(t, run.PendingLegs(), 1)
		assert.Len(t, j.Unresolved(), 1, "finished runs with an unconfirmed leg stay unresolved")
	})

	t.Run("unknown leg", func(t *testing.T) {
		j, runID, _ := setup(t)
		err := j.Recorder(runID, "missing").RecordIntent(req, tx)
		assert.Error(t, err)
	})
}

func TestRecorderKeepsBroadcastTransferUnresolved(t *testing.T) {
	j := openTestJournal(t)
	run, err := j.StartRun("EOS", "0xabc")
	require.NoError(t, err)
	legID, err := j.AddLeg(run.ID, Leg{Pair: "ETH_EOS", Asset: "ETH"})
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	node := chaintest.NewMockNode()
	node.SetBalance(from, big.NewInt(1_000_000_000_000_000_000))
	// the transaction is accepted but never mined
	node.PendingPolls = 1 << 30

	log, _ := test.NewNullLogger()
	submitter := chain.NewSubmitter(node, config.ChainConfig{
		Confirmations: 1,
		PollInterval:  time.Millisecond,
		GasMultiplier: 2,
	}, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = submitter.Submit(ctx, types.TransferRequest{
		From:   from,
		Key:    key,
		Amount: big.NewInt(1000),
		Kind:   types.NativeTransfer{To: common.HexToAddress("0xd1")},
	}, chain.WithRecorder(j.Recorder(run.ID, legID)))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, j.FinishRun(run.ID, err))

	got, err := j.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, LegUnconfirmed, got.Legs[0].Status)
	assert.Equal(t, node.SentTransactions()[0].Hash().Hex(), got.Legs[0].TxHash)

	unresolved := j.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, run.ID, unresolved[0].ID)
}
