package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"eth-shift/config"
	"eth-shift/pkg/poll"
	"eth-shift/pkg/types"
)

// IntentRecorder is told about a transaction before it is broadcast and
// again once its outcome is known, so an interrupted run can be reconciled.
// RecordFailure means nothing reached the network. RecordUnconfirmed means
// the transaction was broadcast but tracking stopped before its outcome was
// known, so it may still be mined.
type IntentRecorder interface {
	RecordIntent(req types.TransferRequest, tx *gethtypes.Transaction) error
	RecordReceipt(receipt *types.Receipt) error
	RecordFailure(txHash common.Hash, err error) error
	RecordUnconfirmed(txHash common.Hash, err error) error
}

// SubmitOption customizes a single Submit call
type SubmitOption func(*submitOptions)

type submitOptions struct {
	recorder IntentRecorder
}

// WithRecorder attaches an intent recorder to one submission
func WithRecorder(r IntentRecorder) SubmitOption {
	return func(o *submitOptions) {
		o.recorder = r
	}
}

// Submitter builds, signs and broadcasts transfers, then waits until they
// are buried under the configured number of blocks.
type Submitter struct {
	node   Node
	config config.ChainConfig
	log    logrus.FieldLogger

	chainIDMu sync.Mutex
	chainID   *big.Int

	locks accountLocks
}

// NewSubmitter creates a submitter. Zero values in cfg fall back to the
// package defaults (3 confirmations, 1s polling, 2x gas estimate).
func NewSubmitter(node Node, cfg config.ChainConfig, log logrus.FieldLogger) *Submitter {
	if cfg.Confirmations == 0 {
		cfg.Confirmations = config.DefaultConfirmations
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultPollInterval
	}
	if cfg.GasMultiplier == 0 {
		cfg.GasMultiplier = config.DefaultGasMultiplier
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Submitter{
		node:   node,
		config: cfg,
		log:    log,
	}
	if cfg.ChainID != 0 {
		s.chainID = big.NewInt(cfg.ChainID)
	}
	return s
}

// Submit sends the transfer and returns its receipt once the transaction has
// reached the required confirmation depth. The wait has no upper bound unless
// ctx carries a deadline or ConfirmationTimeout is set.
func (s *Submitter) Submit(ctx context.Context, req types.TransferRequest, opts ...SubmitOption) (*types.Receipt, error) {
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if s.config.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ConfirmationTimeout)
		defer cancel()
	}

	tx, err := s.send(ctx, req, o.recorder)
	if err != nil {
		return nil, err
	}

	receipt, err := s.track(ctx, tx.Hash())
	if err != nil {
		if o.recorder != nil {
			if rerr := o.recorder.RecordUnconfirmed(tx.Hash(), err); rerr != nil {
				s.log.WithError(rerr).Warn("failed to record unconfirmed transaction")
			}
		}
		return nil, err
	}

	if o.recorder != nil {
		if err := o.recorder.RecordReceipt(receipt); err != nil {
			s.log.WithError(err).Warn("failed to record receipt")
		}
	}

	return receipt, nil
}

// send signs and broadcasts while holding the sender's lock, so two
// submissions from one account never read the same pending nonce.
func (s *Submitter) send(ctx context.Context, req types.TransferRequest, recorder IntentRecorder) (*gethtypes.Transaction, error) {
	unlock := s.locks.lock(req.From)
	defer unlock()

	tx, err := s.BuildTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	if recorder != nil {
		if err := recorder.RecordIntent(req, tx); err != nil {
			return nil, submissionError(StageRecord, tx.Hash(), err)
		}
	}

	if err := s.node.SendTransaction(ctx, tx); err != nil {
		if !isAlreadyKnown(err) {
			if recorder != nil {
				if rerr := recorder.RecordFailure(tx.Hash(), err); rerr != nil {
					s.log.WithError(rerr).Warn("failed to record broadcast failure")
				}
			}
			return nil, submissionError(StageBroadcast, tx.Hash(), err)
		}
		s.log.WithField("tx", tx.Hash().Hex()).Warn("node already knows transaction")
	}

	s.log.WithFields(logrus.Fields{
		"tx":        tx.Hash().Hex(),
		"nonce":     tx.Nonce(),
		"to":        tx.To().Hex(),
		"gas":       tx.Gas(),
		"gas_price": tx.GasPrice().String(),
	}).Info("transaction broadcast")

	return tx, nil
}

// BuildTransaction assembles and signs the transaction for req without
// sending it.
func (s *Submitter) BuildTransaction(ctx context.Context, req types.TransferRequest) (*gethtypes.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	nonce, err := s.node.PendingNonceAt(ctx, req.From)
	if err != nil {
		return nil, submissionError(StageNonce, common.Hash{}, err)
	}

	gasPrice, err := s.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, submissionError(StageGasPrice, common.Hash{}, err)
	}

	to, value, data, err := encodeTransfer(req)
	if err != nil {
		return nil, err
	}

	estimate, err := s.node.EstimateGas(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, submissionError(StageEstimate, common.Hash{}, err)
	}
	gasLimit := estimate * s.config.GasMultiplier

	if s.config.CheckBalance {
		if err := s.ensureFunds(ctx, req, gasLimit, gasPrice); err != nil {
			return nil, err
		}
	}

	chainID, err := s.resolveChainID(ctx)
	if err != nil {
		return nil, submissionError(StageSign, common.Hash{}, err)
	}

	tx := gethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signedTx, err := gethtypes.SignTx(tx, gethtypes.NewEIP155Signer(chainID), req.Key)
	if err != nil {
		return nil, submissionError(StageSign, common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err))
	}

	return signedTx, nil
}

// encodeTransfer returns the transaction target, Ether value and payload
func encodeTransfer(req types.TransferRequest) (common.Address, *big.Int, []byte, error) {
	switch kind := req.Kind.(type) {
	case types.NativeTransfer:
		return kind.To, new(big.Int).Set(req.Amount), nil, nil
	case types.TokenTransfer:
		data, err := PackTransfer(kind.To, req.Amount)
		if err != nil {
			return common.Address{}, nil, nil, err
		}
		return kind.Contract, big.NewInt(0), data, nil
	default:
		return common.Address{}, nil, nil, fmt.Errorf("%w: unsupported transfer kind %T", ErrInvalidTransfer, req.Kind)
	}
}

func validateRequest(req types.TransferRequest) error {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidTransfer)
	}
	if req.Key == nil {
		return fmt.Errorf("%w: signing key is required", ErrInvalidTransfer)
	}
	if req.Kind == nil {
		return fmt.Errorf("%w: transfer kind is required", ErrInvalidTransfer)
	}
	if addr := SenderAddress(req.Key); addr != req.From {
		return fmt.Errorf("%w: key belongs to %s, not sender %s", ErrInvalidTransfer, addr.Hex(), req.From.Hex())
	}
	return nil
}

// ensureFunds rejects transfers the sender cannot pay for before anything is
// signed. Native transfers must also cover the maximum fee.
func (s *Submitter) ensureFunds(ctx context.Context, req types.TransferRequest, gasLimit uint64, gasPrice *big.Int) error {
	balance, err := s.node.BalanceAt(ctx, req.From, nil)
	if err != nil {
		return submissionError(StageBalance, common.Hash{}, err)
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)

	switch kind := req.Kind.(type) {
	case types.NativeTransfer:
		need := new(big.Int).Add(req.Amount, fee)
		if balance.Cmp(need) < 0 {
			return fmt.Errorf("%w: have %s wei, need %s wei", ErrInsufficientFunds, balance, need)
		}
	case types.TokenTransfer:
		if balance.Cmp(fee) < 0 {
			return fmt.Errorf("%w: have %s wei, need %s wei for gas", ErrInsufficientFunds, balance, fee)
		}
		tokenBalance, err := NewToken(s.node, kind.Contract).BalanceOf(ctx, req.From)
		if err != nil {
			return submissionError(StageBalance, common.Hash{}, err)
		}
		if tokenBalance.Cmp(req.Amount) < 0 {
			return fmt.Errorf("%w: have %s tokens, need %s", ErrInsufficientFunds, tokenBalance, req.Amount)
		}
	}
	return nil
}

func (s *Submitter) resolveChainID(ctx context.Context) (*big.Int, error) {
	s.chainIDMu.Lock()
	defer s.chainIDMu.Unlock()

	if s.chainID != nil {
		return s.chainID, nil
	}
	chainID, err := s.node.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	s.chainID = chainID
	return chainID, nil
}

// track waits for the receipt and then for the confirmation depth
func (s *Submitter) track(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	s.log.WithField("tx", hash.Hex()).Info("waiting for transaction receipt")

	receipt, err := s.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"tx":    hash.Hex(),
		"block": receipt.BlockNumber,
		"hash":  receipt.BlockHash.Hex(),
	}).Info("transaction mined")

	return s.WaitForConfirmations(ctx, receipt)
}

// WaitForReceipt polls until the node returns a receipt for hash. A missing
// receipt or geth's "unknown transaction" reply is retried; any other error
// ends the wait.
func (s *Submitter) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	err := poll.Until(ctx, s.config.PollInterval, func(ctx context.Context) (bool, error) {
		r, err := s.node.TransactionReceipt(ctx, hash)
		if err != nil {
			if isNotYetMined(err) {
				return false, nil
			}
			return false, err
		}
		if r == nil {
			return false, nil
		}
		receipt = convertReceipt(hash, r)
		return true, nil
	})
	if err != nil {
		return nil, submissionError(StageReceipt, hash, err)
	}

	return receipt, nil
}

// WaitForConfirmations polls the chain height until receipt's block is
// buried deep enough.
func (s *Submitter) WaitForConfirmations(ctx context.Context, receipt *types.Receipt) (*types.Receipt, error) {
	required := s.config.Confirmations

	err := poll.Until(ctx, s.config.PollInterval, func(ctx context.Context) (bool, error) {
		height, err := s.node.BlockNumber(ctx)
		if err != nil {
			return false, err
		}
		receipt.Confirmations = Confirmations(height, receipt.BlockNumber)
		s.log.WithFields(logrus.Fields{
			"tx":            receipt.TxHash.Hex(),
			"confirmations": receipt.Confirmations,
			"required":      required,
		}).Debug("confirmations")
		return receipt.Confirmations >= required, nil
	})
	if err != nil {
		return nil, submissionError(StageConfirm, receipt.TxHash, err)
	}

	s.log.WithFields(logrus.Fields{
		"tx":            receipt.TxHash.Hex(),
		"confirmations": receipt.Confirmations,
	}).Info("transaction confirmed")

	return receipt, nil
}

// Confirmations counts the blocks from blockNumber up to and including
// height. A node lagging behind the receipt reports zero.
func Confirmations(height, blockNumber uint64) uint64 {
	if height < blockNumber {
		return 0
	}
	return height - blockNumber + 1
}

func convertReceipt(hash common.Hash, r *gethtypes.Receipt) *types.Receipt {
	receipt := &types.Receipt{
		TxHash:    hash,
		BlockHash: r.BlockHash,
		Status:    r.Status,
		GasUsed:   r.GasUsed,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt
}

// accountLocks hands out one mutex per sender address
type accountLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

func (a *accountLocks) lock(account common.Address) func() {
	a.mu.Lock()
	if a.locks == nil {
		a.locks = make(map[common.Address]*sync.Mutex)
	}
	m, ok := a.locks[account]
	if !ok {
		m = &sync.Mutex{}
		a.locks[account] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// SenderAddress derives the account address controlled by key
func SenderAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
