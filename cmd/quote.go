package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"eth-shift/pkg/exchange"
	"eth-shift/pkg/parser"
	"eth-shift/pkg/types"
)

var (
	quoteAmount   string
	quoteAddress  string
	quoteRateOnly bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <BASE> to <QUOTE>",
	Short: "Negotiate a deposit address and show market info for a pair",
	Long: `Negotiate a deposit address for a pair with the exchange and show its
current rate, limits and miner fee. Nothing is sent. The funds account is used
as both the withdrawal and the return address unless --address is given.

Examples:
  eth-shift quote ETH to EOS
  eth-shift quote EOS_ETH --amount 120
  eth-shift quote ETH to OMG --rate-only`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

// QuoteOutput is the quote command's JSON document
type QuoteOutput struct {
	Market   *exchange.MarketInfo `json:"market"`
	Estimate *exchange.Estimate   `json:"estimate,omitempty"`
	Deposit  *types.DepositQuote  `json:"deposit,omitempty"`
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVarP(&quoteAmount, "amount", "a", "", "Deposit amount to estimate the withdrawal for")
	quoteCmd.Flags().StringVar(&quoteAddress, "address", "", "Withdrawal and return address (default funds account)")
	quoteCmd.Flags().BoolVar(&quoteRateOnly, "rate-only", false, "Only show market info, do not negotiate a deposit address")
}

func runQuote(cmd *cobra.Command, args []string) {
	a := loadApp(cmd)

	base, quote, err := parser.ParsePairCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var amount decimal.Decimal
	if quoteAmount != "" {
		amount, err = decimal.NewFromString(quoteAmount)
		if err != nil {
			printError(fmt.Errorf("invalid amount %q: %w", quoteAmount, err))
			os.Exit(1)
		}
	}

	address := quoteAddress
	if address == "" {
		address = a.cfg.Wallet.Address
	}
	if !quoteRateOnly && !common.IsHexAddress(address) {
		printError(fmt.Errorf("no valid withdrawal address. Set FUNDS_ACCOUNT_ADDRESS or pass --address"))
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	client := a.exchangeClient()
	req := types.DepositRequest{
		WithdrawalAddress: strings.ToLower(address),
		ReturnAddress:     strings.ToLower(address),
		BaseAsset:         base,
		QuoteAsset:        quote,
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !a.json {
		s.Suffix = fmt.Sprintf(" Fetching %s market info...", req.Pair())
		s.Start()
	}

	output := &QuoteOutput{}
	output.Market, err = client.GetPairInfo(ctx, req.Pair())
	if err == nil && !amount.IsZero() {
		output.Estimate, err = exchange.EstimateWithdrawal(*output.Market, amount)
	}
	if err == nil && !quoteRateOnly {
		if !a.json {
			s.Lock()
			s.Suffix = " Negotiating deposit address..."
			s.Unlock()
		}
		output.Deposit, err = exchange.NewNegotiator(client, a.log).Negotiate(ctx, req)
	}

	if !a.json {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if a.json {
		printJSON(output)
		return
	}
	displayQuote(base, quote, output)
}

func displayQuote(base, quote string, output *QuoteOutput) {
	market := output.Market

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     %s QUOTE", market.Pair)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Rate:           %s\n", color.CyanString("1 %s = %s %s", base, market.Rate, quote))
	fmt.Printf("  Minimum:        %s %s\n", market.Minimum, base)
	if !market.Limit.IsZero() {
		fmt.Printf("  Limit:          %s %s\n", market.Limit, base)
	}
	if !market.MaxLimit.IsZero() {
		fmt.Printf("  Max Limit:      %s %s\n", market.MaxLimit, base)
	}
	fmt.Printf("  Miner Fee:      %s %s\n", market.MinerFee, quote)

	if est := output.Estimate; est != nil {
		fmt.Printf("\n  You send:       %s\n", color.YellowString("%s %s", est.Deposit, base))
		fmt.Printf("  You receive:    %s\n", color.GreenString("~%s %s", est.Withdrawal, quote))
		fmt.Printf("  Effective:      %s %s per %s\n", est.Price(), base, quote)
	}

	if dep := output.Deposit; dep != nil {
		fmt.Println()
		color.Cyan("  Deposit %s to:", dep.DepositAsset)
		fmt.Printf("  %s\n", color.YellowString(dep.DepositAddress))
		fmt.Printf("\n  Withdrawal:     %s %s\n", dep.WithdrawalAddress, dep.WithdrawalAsset)
		fmt.Printf("  Refunds:        %s\n", dep.ReturnAddress)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
