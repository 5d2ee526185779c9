package cmd

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"eth-shift/pkg/chain"
	"eth-shift/pkg/journal"
	"eth-shift/pkg/parser"
	"eth-shift/pkg/roundtrip"
	"eth-shift/pkg/types"
)

var (
	sendToken string
	sendWei   bool
	sendYes   bool
)

var sendCmd = &cobra.Command{
	Use:   "send <amount> <to>",
	Short: "Send Ether or a registry token from the funds account",
	Long: `Send a single transfer from the funds account and wait for it to reach
the configured confirmation depth. Amounts are in whole units (Ether or token)
unless --wei is given, in which case they are in base units.

Examples:
  eth-shift send 0.1 0x1234...abcd
  eth-shift send 250 0x1234...abcd --token EOS
  eth-shift send 1000000000000000 0x1234...abcd --wei`,
	Args: cobra.ExactArgs(2),
	Run:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendToken, "token", "t", "", "Registry token symbol to send instead of Ether")
	sendCmd.Flags().BoolVar(&sendWei, "wei", false, "Amount is in base units")
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runSend(cmd *cobra.Command, args []string) {
	a := loadApp(cmd)

	if !common.IsHexAddress(args[1]) {
		printError(fmt.Errorf("invalid recipient address: %s", args[1]))
		os.Exit(1)
	}
	to := common.HexToAddress(args[1])

	asset := roundtrip.NativeAsset
	decimals := int32(parser.EtherDecimals)
	var kind types.Transfer = types.NativeTransfer{To: to}

	if symbol := parser.NormalizeTokenSymbol(sendToken); symbol != "" && symbol != roundtrip.NativeAsset {
		registry, err := a.registry()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		token, err := registry.Lookup(symbol)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		asset = token.Symbol
		decimals = int32(token.Decimals)
		kind = types.TokenTransfer{Contract: token.ContractAddress(), To: to}
	}

	amount, err := parseSendAmount(args[0], decimals, sendWei)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	account, key, err := a.unlock()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !a.json {
		fmt.Printf("\n  Send %s to %s\n\n",
			color.YellowString("%s %s", parser.FormatAmount(amount, decimals), asset),
			color.CyanString(to.Hex()))
		if !sendYes && !confirm("Proceed with the transfer?") {
			color.Yellow("Transfer cancelled.")
			return
		}
	}

	ctx, stop := signalContext()
	defer stop()

	node, err := a.dial(ctx)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer node.Close()

	j, err := a.journal()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	run, err := j.StartRun(asset, account.Hex())
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	legID, err := j.AddLeg(run.ID, journal.Leg{DepositAddress: to.Hex(), Asset: asset})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.json {
		s.Suffix = fmt.Sprintf(" Sending and waiting for %d confirmations...", a.cfg.Chain.Confirmations)
		s.Start()
	}

	submitter := chain.NewSubmitter(node, a.cfg.Chain, a.log)
	receipt, err := submitter.Submit(ctx, types.TransferRequest{
		From:   account,
		Key:    key,
		Amount: amount,
		Kind:   kind,
	}, chain.WithRecorder(j.Recorder(run.ID, legID)))
	if err == nil && !receipt.Succeeded() {
		err = fmt.Errorf("%w: %s", roundtrip.ErrTransactionReverted, receipt.TxHash.Hex())
	}
	if jerr := j.FinishRun(run.ID, err); jerr != nil {
		a.log.WithError(jerr).Warn("failed to close run in journal")
	}

	if !a.json {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if a.json {
		printJSON(receipt)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     TRANSFER CONFIRMED")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Tx Hash:        %s\n", color.CyanString(receipt.TxHash.Hex()))
	fmt.Printf("  Block:          %d\n", receipt.BlockNumber)
	fmt.Printf("  Gas Used:       %d\n", receipt.GasUsed)
	fmt.Printf("  Confirmations:  %d\n", receipt.Confirmations)
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// parseSendAmount reads a whole-unit amount, or base units when wei is set
func parseSendAmount(amount string, decimals int32, wei bool) (*big.Int, error) {
	if !wei {
		return parser.ParseAmount(amount, decimals)
	}
	units, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok {
		return nil, fmt.Errorf("invalid base unit amount %q", amount)
	}
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	return units, nil
}
