package journal

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"eth-shift/pkg/types"
)

// Recorder writes the progress of one leg's transaction into the journal.
// It is attached to a submission so the signed transaction is on disk
// before it is broadcast.
type Recorder struct {
	journal *Journal
	runID   string
	legID   string
}

// Recorder returns a recorder for one leg of a run
func (j *Journal) Recorder(runID, legID string) *Recorder {
	return &Recorder{journal: j, runID: runID, legID: legID}
}

// RecordIntent stores the signed transaction as pending
func (r *Recorder) RecordIntent(req types.TransferRequest, tx *gethtypes.Transaction) error {
	return r.journal.UpdateLeg(r.runID, r.legID, func(leg *Leg) {
		leg.Amount = req.Amount.String()
		leg.Nonce = tx.Nonce()
		leg.GasLimit = tx.Gas()
		leg.TxHash = tx.Hash().Hex()
		leg.Status = LegPending
		leg.Error = ""
	})
}

// RecordReceipt resolves the leg from its confirmed receipt
func (r *Recorder) RecordReceipt(receipt *types.Receipt) error {
	now := r.journal.now()
	return r.journal.UpdateLeg(r.runID, r.legID, func(leg *Leg) {
		leg.TxHash = receipt.TxHash.Hex()
		leg.BlockNumber = receipt.BlockNumber
		leg.Confirmations = receipt.Confirmations
		leg.Completed = &now
		if receipt.Succeeded() {
			leg.Status = LegConfirmed
		} else {
			leg.Status = LegFailed
			leg.Error = "transaction reverted"
		}
	})
}

// RecordFailure marks the leg failed. The transaction never reached the network.
func (r *Recorder) RecordFailure(txHash common.Hash, err error) error {
	return r.journal.UpdateLeg(r.runID, r.legID, func(leg *Leg) {
		if txHash != (common.Hash{}) {
			leg.TxHash = txHash.Hex()
		}
		leg.Status = LegFailed
		leg.Error = fmt.Sprint(err)
	})
}

// RecordUnconfirmed keeps the broadcast transaction open for reconciliation
// and stores why tracking stopped
func (r *Recorder) RecordUnconfirmed(txHash common.Hash, err error) error {
	return r.journal.UpdateLeg(r.runID, r.legID, func(leg *Leg) {
		leg.TxHash = txHash.Hex()
		leg.Status = LegUnconfirmed
		leg.Error = fmt.Sprint(err)
	})
}
