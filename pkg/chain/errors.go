package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrSubmissionFailed matches every *SubmissionError
	ErrSubmissionFailed  = errors.New("transaction submission failed")
	ErrInvalidTransfer   = errors.New("invalid transfer request")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Stage names the step of Submit that failed
type Stage string

const (
	StageNonce     Stage = "nonce"
	StageGasPrice  Stage = "gas price"
	StageEstimate  Stage = "estimate gas"
	StageBalance   Stage = "balance"
	StageSign      Stage = "sign"
	StageRecord    Stage = "record intent"
	StageBroadcast Stage = "broadcast"
	StageReceipt   Stage = "receipt"
	StageConfirm   Stage = "confirmations"
)

// SubmissionError is returned for any node failure while building, sending,
// or tracking a transaction. TxHash is zero before the transaction is signed.
type SubmissionError struct {
	Stage  Stage
	TxHash common.Hash
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (tx %s): %v", e.Stage, e.TxHash.Hex(), e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailed }

func submissionError(stage Stage, hash common.Hash, err error) error {
	return &SubmissionError{Stage: stage, TxHash: hash, Err: err}
}

// geth reports pending transactions this way; other providers return a null receipt
const unknownTransactionMessage = "unknown transaction"

// isNotYetMined reports whether a receipt lookup error only means the
// transaction has not been included in a block yet.
func isNotYetMined(err error) bool {
	return errors.Is(err, ethereum.NotFound) || err.Error() == unknownTransactionMessage
}

// isAlreadyKnown reports whether the node already holds this exact transaction
func isAlreadyKnown(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already known")
}
