package cmd

import (
	"bufio"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"eth-shift/pkg/chain"
	"eth-shift/pkg/exchange"
	"eth-shift/pkg/parser"
	"eth-shift/pkg/roundtrip"
)

var (
	convertSymbol   string
	convertFraction string
	convertYes      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Shift Ether into a token and back",
	Long: `Shift part of the funds account's Ether into an ERC20 token through the
exchange, wait for the tokens to arrive and shift the whole token balance back
into Ether. Each deposit waits for the configured number of confirmations.

Examples:
  eth-shift convert
  eth-shift convert --symbol OMG --fraction 1/4
  eth-shift convert --yes`,
	Args: cobra.NoArgs,
	Run:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertSymbol, "symbol", "s", "", "Token to shift through (default from config)")
	convertCmd.Flags().StringVar(&convertFraction, "fraction", "1/2", "Share of the Ether balance to shift, e.g. 1/2 or 0.25")
	convertCmd.Flags().BoolVarP(&convertYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runConvert(cmd *cobra.Command, args []string) {
	a := loadApp(cmd)

	symbol := strings.ToUpper(convertSymbol)
	if symbol == "" {
		symbol = a.cfg.Token.Symbol
	}
	symbol = parser.NormalizeTokenSymbol(symbol)
	if symbol == roundtrip.NativeAsset {
		printError(fmt.Errorf("the token leg cannot be %s", roundtrip.NativeAsset))
		os.Exit(1)
	}

	fraction, ok := new(big.Rat).SetString(convertFraction)
	if !ok || fraction.Sign() <= 0 || fraction.Cmp(big.NewRat(1, 1)) > 0 {
		printError(fmt.Errorf("invalid fraction %q: must be in (0, 1]", convertFraction))
		os.Exit(1)
	}

	registry, err := a.registry()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	entry, err := registry.Lookup(symbol)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	account, key, err := a.unlock()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	node, err := a.dial(ctx)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer node.Close()

	balance, err := node.BalanceAt(ctx, account, nil)
	if err != nil {
		printError(fmt.Errorf("failed to get balance: %w", err))
		os.Exit(1)
	}

	if !a.json {
		displayConvertPlan(account.Hex(), entry.Symbol, entry.Address, balance, fraction)
		if !convertYes && !confirm("Proceed with the conversion?") {
			color.Yellow("Conversion cancelled.")
			return
		}
	}

	j, err := a.journal()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	client := a.exchangeClient()
	runner := roundtrip.NewRunner(
		node,
		chain.NewSubmitter(node, a.cfg.Chain, a.log),
		exchange.NewNegotiator(client, a.log),
		registry,
		j,
		client,
		a.log,
		roundtrip.Options{
			Account:        account,
			Key:            key,
			Symbol:         symbol,
			NativeFraction: fraction,
			PollInterval:   a.cfg.Chain.PollInterval,
		},
	)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.json {
		s.Suffix = " Starting conversion..."
		s.Start()
		runner.Progress = func(step string) {
			s.Lock()
			s.Suffix = " " + step + "..."
			s.Unlock()
		}
	}

	result, err := runner.Run(ctx)
	if !a.json {
		s.Stop()
	}

	if err != nil {
		if result != nil && result.RunID != "" {
			color.Yellow("Run %s recorded in %s", result.RunID, j.Path())
		}
		printError(err)
		os.Exit(1)
	}

	if a.json {
		printJSON(result)
		return
	}
	displayConvertResult(result, int32(entry.Decimals))
}

func displayConvertPlan(account, symbol, contract string, balance *big.Int, fraction *big.Rat) {
	amount := new(big.Int).Mul(balance, fraction.Num())
	amount.Quo(amount, fraction.Denom())

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    CONVERSION PLAN")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Funds account:  %s\n", color.CyanString(account))
	fmt.Printf("  Balance:        %s ETH\n", parser.FormatAmount(balance, parser.EtherDecimals))
	fmt.Printf("  Shifting:       %s\n", color.YellowString("%s ETH", parser.FormatAmount(amount, parser.EtherDecimals)))
	fmt.Printf("  Through:        %s (%s)\n", color.CyanString(symbol), contract)
	fmt.Printf("\n  Route:          ETH -> %s -> ETH\n", symbol)
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func displayConvertResult(result *roundtrip.Result, decimals int32) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  CONVERSION COMPLETE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Run:            %s\n", result.RunID)
	fmt.Printf("  Token:          %s (%s)\n", color.CyanString(result.TokenName), result.TokenAddress)

	tokenBalance, _ := new(big.Int).SetString(result.TokenBalance, 10)
	fmt.Printf("  Tokens held:    %s\n", parser.FormatAmount(tokenBalance, decimals))

	for i, leg := range result.Legs {
		fmt.Printf("\n  Leg %d: %s -> %s\n", i+1, leg.Quote.DepositAsset, leg.Quote.WithdrawalAsset)
		fmt.Printf("    Deposit:      %s\n", leg.Quote.DepositAddress)
		fmt.Printf("    Tx:           %s\n", color.CyanString(leg.Receipt.TxHash.Hex()))
		fmt.Printf("    Block:        %d (%d confirmations)\n", leg.Receipt.BlockNumber, leg.Receipt.Confirmations)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	printSuccess("The exchange pays the Ether back to the funds account once it processes the last deposit.")
}

func confirm(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s (y/N): ", question)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
