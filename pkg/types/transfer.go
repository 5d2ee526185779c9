package types

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transfer is the kind of value movement a TransferRequest performs.
// It is either a NativeTransfer or a TokenTransfer.
type Transfer interface {
	isTransfer()
	// Recipient is the account that ends up holding the funds.
	Recipient() common.Address
}

// NativeTransfer sends Ether directly to To.
type NativeTransfer struct {
	To common.Address
}

func (NativeTransfer) isTransfer() {}

func (t NativeTransfer) Recipient() common.Address { return t.To }

// TokenTransfer calls transfer(To, amount) on an ERC20 contract.
// The transaction itself is addressed to Contract and carries no Ether.
type TokenTransfer struct {
	Contract common.Address
	To       common.Address
}

func (TokenTransfer) isTransfer() {}

func (t TokenTransfer) Recipient() common.Address { return t.To }

// TransferRequest describes a single signed transfer from a funds account
type TransferRequest struct {
	From   common.Address
	Key    *ecdsa.PrivateKey
	Amount *big.Int // smallest unit (wei or token base unit)
	Kind   Transfer
}

// Receipt is the confirmed inclusion of a submitted transaction
type Receipt struct {
	TxHash        common.Hash `json:"tx_hash"`
	BlockHash     common.Hash `json:"block_hash"`
	BlockNumber   uint64      `json:"block_number"`
	Status        uint64      `json:"status"`
	GasUsed       uint64      `json:"gas_used"`
	Confirmations uint64      `json:"confirmations"`
}

// Succeeded reports whether the transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}
