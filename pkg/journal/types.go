package journal

import (
	"time"
)

// RunStatus defines the current state of a conversion run
type RunStatus string

const (
	RunActive    RunStatus = "active"    // Run is in progress
	RunCompleted RunStatus = "completed" // Both legs confirmed
	RunFailed    RunStatus = "failed"    // Run stopped on an error
)

// LegStatus defines the status of a single deposit transaction
type LegStatus string

const (
	LegNegotiated LegStatus = "negotiated" // Deposit address obtained, nothing signed
	LegPending    LegStatus = "pending"    // Signed and about to be broadcast
	LegConfirmed  LegStatus = "confirmed"  // Mined and buried deep enough
	LegFailed     LegStatus = "failed"     // Broadcast failed or reverted

	// Broadcast, but tracking stopped before the outcome was known
	LegUnconfirmed LegStatus = "unconfirmed"
)

// Run is one round trip from Ether into a token and back
type Run struct {
	ID      string    `json:"id"`
	Symbol  string    `json:"symbol"`
	Account string    `json:"account"`
	Status  RunStatus `json:"status"`
	Started time.Time `json:"started"`
	Updated time.Time `json:"updated"`
	Error   string    `json:"error,omitempty"`
	Legs    []Leg     `json:"legs"`
}

// Leg is a single deposit into the exchange within a run
type Leg struct {
	ID             string     `json:"id"`
	Pair           string     `json:"pair"`
	DepositAddress string     `json:"deposit_address"`
	Asset          string     `json:"asset"`
	Amount         string     `json:"amount,omitempty"` // base units
	Nonce          uint64     `json:"nonce"`
	GasLimit       uint64     `json:"gas_limit,omitempty"`
	TxHash         string     `json:"tx_hash,omitempty"`
	Status         LegStatus  `json:"status"`
	BlockNumber    uint64     `json:"block_number,omitempty"`
	Confirmations  uint64     `json:"confirmations,omitempty"`
	ExchangeStatus string     `json:"exchange_status,omitempty"` // latest deposit status from the exchange
	Error          string     `json:"error,omitempty"`
	Created        time.Time  `json:"created"`
	Completed      *time.Time `json:"completed,omitempty"`
}

// IsFinished returns true once the run can no longer change
func (r *Run) IsFinished() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// PendingLegs returns legs whose transaction may be on the network without
// a known outcome
func (r *Run) PendingLegs() []Leg {
	var legs []Leg
	for _, leg := range r.Legs {
		if leg.Status == LegPending || leg.Status == LegUnconfirmed {
			legs = append(legs, leg)
		}
	}
	return legs
}

func (r *Run) clone() *Run {
	c := *r
	c.Legs = append([]Leg(nil), r.Legs...)
	return &c
}
