// Package roundtrip converts Ether into an ERC20 token through the exchange
// and shifts the received tokens back into Ether.
package roundtrip

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"eth-shift/config"
	"eth-shift/pkg/chain"
	"eth-shift/pkg/exchange"
	"eth-shift/pkg/journal"
	"eth-shift/pkg/poll"
	"eth-shift/pkg/tokens"
	"eth-shift/pkg/types"
)

// NativeAsset is the exchange symbol of Ether
const NativeAsset = "ETH"

var (
	ErrSymbolMismatch        = errors.New("contract symbol does not match")
	ErrNothingToSend         = errors.New("nothing to send")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrInvalidDepositAddress = errors.New("deposit address is not an Ethereum address")
	ErrDepositFailed         = errors.New("exchange reported the deposit as failed")
)

// DepositNegotiator obtains deposit addresses from the exchange
type DepositNegotiator interface {
	Negotiate(ctx context.Context, req types.DepositRequest) (*types.DepositQuote, error)
}

// TransferSubmitter sends a transfer and waits for its confirmation
type TransferSubmitter interface {
	Submit(ctx context.Context, req types.TransferRequest, opts ...chain.SubmitOption) (*types.Receipt, error)
}

// DepositTracker reports what the exchange has seen at a deposit address
type DepositTracker interface {
	GetDepositStatus(ctx context.Context, depositAddress string) (*exchange.DepositStatus, error)
}

// Options configures a Runner
type Options struct {
	Account common.Address
	Key     *ecdsa.PrivateKey
	Symbol  string

	// Share of the Ether balance shifted into the token. The rest pays for
	// both transactions. Defaults to 1/2.
	NativeFraction *big.Rat

	// Interval between token balance reads
	PollInterval time.Duration
}

// Runner performs the round trip
type Runner struct {
	node       chain.Node
	submitter  TransferSubmitter
	negotiator DepositNegotiator
	registry   *tokens.Registry
	journal    *journal.Journal
	tracker    DepositTracker
	log        logrus.FieldLogger
	opts       Options

	// Progress, when set, is told about each step as it starts
	Progress func(step string)
}

// NewRunner creates a runner. journal and tracker may be nil.
func NewRunner(
	node chain.Node,
	submitter TransferSubmitter,
	negotiator DepositNegotiator,
	registry *tokens.Registry,
	j *journal.Journal,
	tracker DepositTracker,
	log logrus.FieldLogger,
	opts Options,
) *Runner {
	if opts.NativeFraction == nil || opts.NativeFraction.Sign() <= 0 {
		opts.NativeFraction = big.NewRat(1, 2)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	opts.Symbol = strings.ToUpper(opts.Symbol)
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Runner{
		node:       node,
		submitter:  submitter,
		negotiator: negotiator,
		registry:   registry,
		journal:    j,
		tracker:    tracker,
		log:        log.WithField("symbol", opts.Symbol),
		opts:       opts,
	}
}

// LegResult describes one confirmed deposit
type LegResult struct {
	Quote   types.DepositQuote `json:"quote"`
	Amount  string             `json:"amount"`
	Receipt *types.Receipt     `json:"receipt"`
}

// Result summarizes a finished round trip
type Result struct {
	RunID        string      `json:"run_id,omitempty"`
	TokenName    string      `json:"token_name"`
	TokenAddress string      `json:"token_address"`
	TokenBalance string      `json:"token_balance"`
	Legs         []LegResult `json:"legs"`
}

// Run shifts Ether into the token and the token back into Ether. Each leg
// waits for the configured confirmation depth before the next step.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID, err := r.startRun()
	if err != nil {
		return nil, err
	}

	result, err := r.run(ctx, runID)
	if r.journal != nil {
		if jerr := r.journal.FinishRun(runID, err); jerr != nil {
			r.log.WithError(jerr).Warn("failed to close run in journal")
		}
	}
	if result != nil {
		result.RunID = runID
	}
	return result, err
}

func (r *Runner) startRun() (string, error) {
	if r.journal == nil {
		return "", nil
	}

	for _, run := range r.journal.Unresolved() {
		for _, leg := range run.PendingLegs() {
			r.log.WithFields(logrus.Fields{
				"run": run.ID,
				"tx":  leg.TxHash,
			}).Warn("earlier run has an unresolved transaction")
		}
	}

	run, err := r.journal.StartRun(r.opts.Symbol, r.opts.Account.Hex())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	r.log.WithField("run", run.ID).Info("run started")
	return run.ID, nil
}

func (r *Runner) run(ctx context.Context, runID string) (*Result, error) {
	result := &Result{}

	// The token is verified before any Ether leaves the account
	r.progress("Resolving %s contract", r.opts.Symbol)
	token, err := r.resolveToken(ctx)
	if err != nil {
		return nil, err
	}
	result.TokenAddress = token.Address().Hex()
	result.TokenName, err = token.Name(ctx)
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"contract": result.TokenAddress,
		"name":     result.TokenName,
	}).Info("token contract")

	forward := types.DepositRequest{
		WithdrawalAddress: r.fundsAddress(),
		ReturnAddress:     r.fundsAddress(),
		BaseAsset:         NativeAsset,
		QuoteAsset:        r.opts.Symbol,
	}

	balance, err := r.node.BalanceAt(ctx, r.opts.Account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	amount := r.nativeShare(balance)
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: balance of %s is %s wei", ErrNothingToSend, r.opts.Account.Hex(), balance)
	}

	first, err := r.depositLeg(ctx, runID, forward, amount, func(to common.Address) types.Transfer {
		return types.NativeTransfer{To: to}
	})
	if err != nil {
		return nil, err
	}
	result.Legs = append(result.Legs, *first)

	r.progress("Waiting for %s to arrive", r.opts.Symbol)
	tokenBalance, err := r.waitForTokens(ctx, token, runID, first.Quote.DepositAddress)
	if err != nil {
		return result, err
	}
	result.TokenBalance = tokenBalance.String()
	r.log.WithField("balance", tokenBalance.String()).Info("token balance received")

	second, err := r.depositLeg(ctx, runID, forward.Reverse(), tokenBalance, func(to common.Address) types.Transfer {
		return types.TokenTransfer{Contract: token.Address(), To: to}
	})
	if err != nil {
		return result, err
	}
	result.Legs = append(result.Legs, *second)

	return result, nil
}

// depositLeg negotiates a deposit address and sends amount to it
func (r *Runner) depositLeg(
	ctx context.Context,
	runID string,
	req types.DepositRequest,
	amount *big.Int,
	kind func(to common.Address) types.Transfer,
) (*LegResult, error) {
	pair := req.Pair()
	log := r.log.WithField("pair", pair)

	r.progress("Negotiating %s deposit address", pair)
	quote, err := r.negotiator.Negotiate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to negotiate %s: %w", pair, err)
	}
	if !common.IsHexAddress(quote.DepositAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDepositAddress, quote.DepositAddress)
	}
	depositAddress := common.HexToAddress(quote.DepositAddress)
	log.WithField("deposit", quote.DepositAddress).Info("deposit address")

	var opts []chain.SubmitOption
	if r.journal != nil {
		legID, err := r.journal.AddLeg(runID, journal.Leg{
			Pair:           pair,
			DepositAddress: quote.DepositAddress,
			Asset:          req.BaseAsset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record leg: %w", err)
		}
		opts = append(opts, chain.WithRecorder(r.journal.Recorder(runID, legID)))
	}

	r.progress("Depositing %s %s", amount, req.BaseAsset)
	receipt, err := r.submitter.Submit(ctx, types.TransferRequest{
		From:   r.opts.Account,
		Key:    r.opts.Key,
		Amount: amount,
		Kind:   kind(depositAddress),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to deposit %s: %w", req.BaseAsset, err)
	}
	if !receipt.Succeeded() {
		return nil, fmt.Errorf("%w: %s deposit %s", ErrTransactionReverted, req.BaseAsset, receipt.TxHash.Hex())
	}

	return &LegResult{
		Quote:   *quote,
		Amount:  amount.String(),
		Receipt: receipt,
	}, nil
}

// resolveToken looks the symbol up in the registry and checks the contract
// reports the same symbol
func (r *Runner) resolveToken(ctx context.Context) (*chain.Token, error) {
	entry, err := r.registry.Lookup(r.opts.Symbol)
	if err != nil {
		return nil, err
	}

	token := chain.NewToken(r.node, entry.ContractAddress())
	symbol, err := token.Symbol(ctx)
	if err != nil {
		return nil, err
	}
	if symbol != r.opts.Symbol {
		return nil, fmt.Errorf("%w: %s reports %q, want %q", ErrSymbolMismatch, entry.Address, symbol, r.opts.Symbol)
	}
	return token, nil
}

// waitForTokens polls the token balance until it is non-zero. When a
// tracker is configured the exchange's view of the deposit is recorded
// along the way.
func (r *Runner) waitForTokens(ctx context.Context, token *chain.Token, runID, depositAddress string) (*big.Int, error) {
	var balance *big.Int
	lastStatus := ""

	err := poll.Until(ctx, r.opts.PollInterval, func(ctx context.Context) (bool, error) {
		b, err := token.BalanceOf(ctx, r.opts.Account)
		if err != nil {
			return false, err
		}
		if b.Sign() > 0 {
			balance = b
			return true, nil
		}

		if r.tracker == nil {
			return false, nil
		}
		status, err := r.tracker.GetDepositStatus(ctx, depositAddress)
		if err != nil {
			r.log.WithError(err).Debug("deposit status unavailable")
			return false, nil
		}
		if status.Status != lastStatus {
			lastStatus = status.Status
			r.log.WithField("status", status.Status).Info("exchange deposit status")
			r.recordExchangeStatus(runID, depositAddress, status.Status)
		}
		if status.Status == exchange.StatusFailed {
			return false, fmt.Errorf("%w: %s", ErrDepositFailed, status.Error)
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s balance: %w", r.opts.Symbol, err)
	}
	return balance, nil
}

func (r *Runner) recordExchangeStatus(runID, depositAddress, status string) {
	if r.journal == nil {
		return
	}
	run, err := r.journal.GetRun(runID)
	if err != nil {
		return
	}
	for _, leg := range run.Legs {
		if leg.DepositAddress == depositAddress {
			if err := r.journal.UpdateExchangeStatus(runID, leg.ID, status); err != nil {
				r.log.WithError(err).Warn("failed to record exchange status")
			}
		}
	}
}

// nativeShare returns floor(balance * NativeFraction)
func (r *Runner) nativeShare(balance *big.Int) *big.Int {
	f := r.opts.NativeFraction
	amount := new(big.Int).Mul(balance, f.Num())
	return amount.Quo(amount, f.Denom())
}

// fundsAddress is the funds account as sent to the exchange
func (r *Runner) fundsAddress() string {
	return strings.ToLower(r.opts.Account.Hex())
}

func (r *Runner) progress(format string, args ...any) {
	if r.Progress != nil {
		r.Progress(fmt.Sprintf(format, args...))
	}
}
