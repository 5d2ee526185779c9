// Package chaintest provides an in-memory Ethereum node for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"eth-shift/pkg/chain"
)

// MockNode is an in-memory chain.Node. Sent transactions are mined at
// the current Height after PendingPolls receipt lookups, and every
// BlockNumber call advances the chain by BlockStep.
type MockNode struct {
	mu sync.Mutex

	ChainIDValue *big.Int
	Nonce        uint64
	GasPrice     *big.Int
	GasEstimate  uint64
	Balances     map[common.Address]*big.Int
	Tokens       map[common.Address]*MockToken

	Height    uint64
	BlockStep uint64

	// Receipt lookups per transaction answered with PendingErr before mining
	PendingPolls int
	PendingErr   error

	ReceiptStatus uint64

	// Call tracking
	Sent      []*gethtypes.Transaction
	Estimates []ethereum.CallMsg
	Calls     map[string]int

	// Error injection
	ErrorOnNext map[string]error

	polls map[common.Hash]int
	mined map[common.Hash]uint64
}

// MockToken is an ERC20 contract served by MockNode.CallContract
type MockToken struct {
	Name     string
	Symbol   string
	Decimals uint8
	Balances map[common.Address]*big.Int

	// Bytes32 returns name and symbol as bytes32 like early tokens do
	Bytes32 bool
	// EmptyReads balanceOf calls return zero before Balances apply
	EmptyReads int

	reads int
}

var _ chain.Node = (*MockNode)(nil)

var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(chain.ERC20ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// NewMockNode creates a mock node on chain 1337 at block 100
func NewMockNode() *MockNode {
	return &MockNode{
		ChainIDValue:  big.NewInt(1337),
		GasPrice:      big.NewInt(20_000_000_000),
		GasEstimate:   21_000,
		Balances:      make(map[common.Address]*big.Int),
		Tokens:        make(map[common.Address]*MockToken),
		Height:        100,
		BlockStep:     1,
		PendingErr:    ethereum.NotFound,
		ReceiptStatus: gethtypes.ReceiptStatusSuccessful,
		Calls:         make(map[string]int),
		ErrorOnNext:   make(map[string]error),
		polls:         make(map[common.Hash]int),
		mined:         make(map[common.Hash]uint64),
	}
}

func (m *MockNode) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

// CallCount returns how many times method was called
func (m *MockNode) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

// SentTransactions returns a copy of the broadcast transactions
func (m *MockNode) SentTransactions() []*gethtypes.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*gethtypes.Transaction(nil), m.Sent...)
}

// SetBalance sets the Ether balance of account
func (m *MockNode) SetBalance(account common.Address, wei *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[account] = new(big.Int).Set(wei)
}

func (m *MockNode) ChainID(ctx context.Context) (*big.Int, error) {
	if err := m.trackCall("ChainID"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.ChainIDValue), nil
}

func (m *MockNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := m.trackCall("PendingNonceAt"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Nonce, nil
}

func (m *MockNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := m.trackCall("SuggestGasPrice"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.GasPrice), nil
}

func (m *MockNode) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if err := m.trackCall("EstimateGas"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Estimates = append(m.Estimates, call)
	return m.GasEstimate, nil
}

func (m *MockNode) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	if err := m.trackCall("SendTransaction"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, tx)
	m.Nonce++
	return nil
}

func (m *MockNode) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if err := m.trackCall("TransactionReceipt"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var tx *gethtypes.Transaction
	for _, sent := range m.Sent {
		if sent.Hash() == txHash {
			tx = sent
			break
		}
	}
	if tx == nil {
		return nil, ethereum.NotFound
	}

	m.polls[txHash]++
	if m.polls[txHash] <= m.PendingPolls {
		return nil, m.PendingErr
	}

	block, ok := m.mined[txHash]
	if !ok {
		block = m.Height
		m.mined[txHash] = block
	}

	return &gethtypes.Receipt{
		Status:      m.ReceiptStatus,
		TxHash:      txHash,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(block)),
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     tx.Gas() / 2,
	}, nil
}

func (m *MockNode) BlockNumber(ctx context.Context) (uint64, error) {
	if err := m.trackCall("BlockNumber"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	height := m.Height
	m.Height += m.BlockStep
	return height, nil
}

func (m *MockNode) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := m.trackCall("BalanceAt"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.Balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *MockNode) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := m.trackCall("CallContract"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if call.To == nil {
		return nil, errors.New("contract call without target")
	}
	token, ok := m.Tokens[*call.To]
	if !ok || len(call.Data) < 4 {
		return nil, errors.New("execution reverted")
	}

	method, err := erc20ABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %w", err)
	}

	switch method.Name {
	case "name":
		return token.text(method, token.Name)
	case "symbol":
		return token.text(method, token.Symbol)
	case "decimals":
		return method.Outputs.Pack(token.Decimals)
	case "balanceOf":
		args, err := method.Inputs.Unpack(call.Data[4:])
		if err != nil {
			return nil, err
		}
		owner := args[0].(common.Address)
		token.reads++
		balance := big.NewInt(0)
		if token.reads > token.EmptyReads {
			if b, ok := token.Balances[owner]; ok {
				balance = new(big.Int).Set(b)
			}
		}
		return method.Outputs.Pack(balance)
	default:
		return nil, fmt.Errorf("execution reverted: %s is not a view", method.Name)
	}
}

func (t *MockToken) text(method *abi.Method, value string) ([]byte, error) {
	if t.Bytes32 {
		word := make([]byte, 32)
		copy(word, value)
		return word, nil
	}
	return method.Outputs.Pack(value)
}
