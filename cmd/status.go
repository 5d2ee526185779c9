package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"eth-shift/pkg/chain"
	"eth-shift/pkg/exchange"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash|deposit-address>",
	Short: "Check a transaction or an exchange deposit",
	Long: `Check a transaction's receipt and confirmation depth, or ask the exchange
what it has seen at a deposit address.

Examples:
  eth-shift status 0x5c50...e1f2
  eth-shift status 0x5c50...e1f2 --watch
  eth-shift status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

// TxStatus is a transaction's inclusion as seen by the node
type TxStatus struct {
	TxHash        string `json:"tx_hash"`
	Mined         bool   `json:"mined"`
	Succeeded     bool   `json:"succeeded"`
	BlockNumber   uint64 `json:"block_number,omitempty"`
	GasUsed       uint64 `json:"gas_used,omitempty"`
	Confirmations uint64 `json:"confirmations"`
	Required      uint64 `json:"required_confirmations"`
}

func runStatus(cmd *cobra.Command, args []string) {
	a := loadApp(cmd)
	target := args[0]

	var check func(ctx context.Context) (any, error)
	var display func(v any)

	switch {
	case isTxHash(target):
		node, err := a.dial(context.Background())
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer node.Close()

		hash := common.HexToHash(target)
		required := a.cfg.Chain.Confirmations
		check = func(ctx context.Context) (any, error) {
			return txStatus(ctx, node, hash, required)
		}
		display = func(v any) { displayTxStatus(v.(*TxStatus)) }
	case common.IsHexAddress(target):
		client := a.exchangeClient()
		check = func(ctx context.Context) (any, error) {
			return client.GetDepositStatus(ctx, target)
		}
		display = func(v any) { displayDepositStatus(v.(*exchange.DepositStatus)) }
	default:
		printError(fmt.Errorf("%q is neither a transaction hash nor an address", target))
		os.Exit(1)
	}

	if watchStatus {
		if a.json {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watch(target, check, display)
		return
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.json {
		s.Suffix = " Checking status..."
		s.Start()
	}

	ctx, stop := signalContext()
	defer stop()
	status, err := check(ctx)
	if !a.json {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if a.json {
		printJSON(status)
	} else {
		display(status)
	}
}

func watch(target string, check func(ctx context.Context) (any, error), display func(v any)) {
	fmt.Printf("\nWatching %s\n", color.CyanString(target))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ctx, stop := signalContext()
	defer stop()

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		status, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			color.Red("Error: %v", err)
		} else {
			display(status)
			if finished(status) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func finished(status any) bool {
	switch s := status.(type) {
	case *TxStatus:
		return s.Mined && (!s.Succeeded || s.Confirmations >= s.Required)
	case *exchange.DepositStatus:
		return s.Finished()
	}
	return false
}

// txStatus reads the receipt and current height. An unmined transaction
// is reported rather than treated as an error.
func txStatus(ctx context.Context, node chain.Node, hash common.Hash, required uint64) (*TxStatus, error) {
	status := &TxStatus{TxHash: hash.Hex(), Required: required}

	receipt, err := node.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	height, err := node.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	status.Mined = true
	status.Succeeded = receipt.Status == gethtypes.ReceiptStatusSuccessful
	status.BlockNumber = receipt.BlockNumber.Uint64()
	status.GasUsed = receipt.GasUsed
	status.Confirmations = chain.Confirmations(height, status.BlockNumber)
	return status, nil
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func displayTxStatus(status *TxStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:         %s\n", color.CyanString(status.TxHash))

	switch {
	case !status.Mined:
		fmt.Printf("  Status:          %s\n", getColoredStatus("pending"))
	case !status.Succeeded:
		fmt.Printf("  Status:          %s\n", getColoredStatus("reverted"))
	case status.Confirmations >= status.Required:
		fmt.Printf("  Status:          %s\n", getColoredStatus("confirmed"))
	default:
		fmt.Printf("  Status:          %s\n", getColoredStatus("mined"))
	}

	if status.Mined {
		fmt.Printf("  Block:           %d\n", status.BlockNumber)
		fmt.Printf("  Gas Used:        %d\n", status.GasUsed)
		fmt.Printf("  Confirmations:   %d / %d\n", status.Confirmations, status.Required)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func displayDepositStatus(status *exchange.DepositStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       DEPOSIT STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(status.Address))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.Status))

	if !status.IncomingCoin.IsZero() {
		fmt.Printf("  Received:        %s %s\n", status.IncomingCoin, status.IncomingType)
	}
	if !status.OutgoingCoin.IsZero() {
		fmt.Printf("  Paid Out:        %s %s\n", status.OutgoingCoin, status.OutgoingType)
	}
	if status.Withdraw != "" {
		fmt.Printf("  Withdrawal To:   %s\n", status.Withdraw)
	}
	if status.Transaction != "" {
		fmt.Printf("  Withdrawal Tx:   %s\n", color.HiBlackString(status.Transaction))
	}
	if status.Error != "" {
		fmt.Printf("  Error:           %s\n", color.RedString(status.Error))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "COMPLETE", "CONFIRMED", "COMPLETED":
		return color.GreenString(status)
	case "NO_DEPOSITS", "PENDING", "UNCONFIRMED", "RECEIVED", "MINED", "NEGOTIATED", "ACTIVE":
		return color.YellowString(status)
	case "FAILED", "REVERTED":
		return color.RedString(status)
	default:
		return status
	}
}
