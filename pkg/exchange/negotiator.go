package exchange

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"eth-shift/pkg/types"
)

// Negotiator obtains a validated deposit address for an asset pair
type Negotiator struct {
	client *Client
	log    logrus.FieldLogger
}

// NewNegotiator creates a negotiator on top of client
func NewNegotiator(client *Client, log logrus.FieldLogger) *Negotiator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Negotiator{client: client, log: log}
}

// Negotiate checks that the pair is listed, that neither asset is
// unavailable and that both addresses are accepted, then requests a deposit
// address. The exchange answer must echo the request exactly.
func (n *Negotiator) Negotiate(ctx context.Context, req types.DepositRequest) (*types.DepositQuote, error) {
	pair := req.Pair()
	log := n.log.WithField("pair", pair)

	markets, err := n.client.GetMarketInfo(ctx)
	if err != nil {
		return nil, err
	}
	var matches []MarketInfo
	for _, m := range markets {
		if m.Pair == pair {
			matches = append(matches, m)
		}
	}
	if len(matches) != 1 {
		return nil, errors.Wrapf(ErrPairNotFound, "%d market info entries for %s", len(matches), pair)
	}
	log.WithFields(logrus.Fields{
		"rate":     matches[0].Rate.String(),
		"limit":    matches[0].Limit.String(),
		"minerFee": matches[0].MinerFee.String(),
	}).Debug("market info")

	coins, err := n.client.GetCoins(ctx)
	if err != nil {
		return nil, err
	}
	// A coin the exchange does not list is not treated as unavailable
	for key, coin := range coins {
		symbol := coin.Symbol
		if symbol == "" {
			symbol = key
		}
		if (symbol == req.BaseAsset || symbol == req.QuoteAsset) && !coin.Available() {
			return nil, errors.Wrapf(ErrAssetUnavailable, "%s", symbol)
		}
	}

	if err := n.validateAddress(ctx, req.ReturnAddress, req.BaseAsset, "return"); err != nil {
		return nil, err
	}
	if err := n.validateAddress(ctx, req.WithdrawalAddress, req.QuoteAsset, "withdrawal"); err != nil {
		return nil, err
	}

	shift, err := n.client.Shift(ctx, ShiftRequest{
		Withdrawal:    req.WithdrawalAddress,
		Pair:          pair,
		ReturnAddress: req.ReturnAddress,
	})
	if err != nil {
		return nil, err
	}
	if err := checkShift(req, shift); err != nil {
		return nil, err
	}

	log.WithField("deposit", shift.Deposit).Info("deposit address negotiated")

	return &types.DepositQuote{
		DepositAddress:    shift.Deposit,
		DepositAsset:      shift.DepositType,
		WithdrawalAsset:   shift.WithdrawalType,
		WithdrawalAddress: shift.Withdrawal,
		ReturnAddress:     shift.ReturnAddress,
	}, nil
}

func (n *Negotiator) validateAddress(ctx context.Context, address, asset, role string) error {
	result, err := n.client.ValidateAddress(ctx, address, asset)
	if err != nil {
		return err
	}
	if !result.IsValid {
		if result.Error != "" {
			return errors.Wrapf(ErrInvalidAddress, "%s address %s for %s: %s", role, address, asset, result.Error)
		}
		return errors.Wrapf(ErrInvalidAddress, "%s address %s for %s", role, address, asset)
	}
	return nil
}

func checkShift(req types.DepositRequest, shift *ShiftResponse) error {
	switch {
	case shift.Deposit == "":
		return errors.Wrap(ErrQuoteMismatch, "empty deposit address")
	case shift.DepositType != req.BaseAsset:
		return errors.Wrapf(ErrQuoteMismatch, "deposit type %q, want %q", shift.DepositType, req.BaseAsset)
	case shift.Withdrawal != req.WithdrawalAddress:
		return errors.Wrapf(ErrQuoteMismatch, "withdrawal %q, want %q", shift.Withdrawal, req.WithdrawalAddress)
	case shift.WithdrawalType != req.QuoteAsset:
		return errors.Wrapf(ErrQuoteMismatch, "withdrawal type %q, want %q", shift.WithdrawalType, req.QuoteAsset)
	case shift.ReturnAddress != req.ReturnAddress:
		return errors.Wrapf(ErrQuoteMismatch, "return address %q, want %q", shift.ReturnAddress, req.ReturnAddress)
	case shift.ReturnAddressType != req.BaseAsset:
		return errors.Wrapf(ErrQuoteMismatch, "return address type %q, want %q", shift.ReturnAddressType, req.BaseAsset)
	}
	return nil
}
