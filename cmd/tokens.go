package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eth-shift/pkg/chain"
	"eth-shift/pkg/parser"
	"eth-shift/pkg/tokens"
)

var (
	filterSymbol  string
	tokensOnChain bool
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List the tokens in the registry",
	Long: `List the ERC20 tokens the registry knows. With --onchain each contract is
asked for its name and symbol, and the funds account's balance is shown.

Examples:
  eth-shift tokens
  eth-shift tokens --symbol EO
  eth-shift tokens --onchain`,
	Run: runListTokens,
}

// TokenInfo is a registry entry with optional on-chain details
type TokenInfo struct {
	tokens.Token
	Name            string `json:"name,omitempty"`
	OnChainSymbol   string `json:"onchain_symbol,omitempty"`
	OnChainDecimals *uint8 `json:"onchain_decimals,omitempty"`
	Balance         string `json:"balance,omitempty"`
	Error           string `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&tokensOnChain, "onchain", false, "Read name, symbol and balance from each contract")
}

func runListTokens(cmd *cobra.Command, args []string) {
	a := loadApp(cmd)

	registry, err := a.registry()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var infos []TokenInfo
	for _, token := range registry.List() {
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
			continue
		}
		infos = append(infos, TokenInfo{Token: token})
	}

	if tokensOnChain && len(infos) > 0 {
		ctx, stop := signalContext()
		defer stop()

		node, err := a.dial(ctx)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		defer node.Close()

		var holder *common.Address
		if common.IsHexAddress(a.cfg.Wallet.Address) {
			account := a.cfg.FundsAddress()
			holder = &account
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !a.json {
			s.Suffix = " Reading token contracts..."
			s.Start()
		}
		var g errgroup.Group
		g.SetLimit(4)
		for i := range infos {
			g.Go(func() error {
				readOnChain(ctx, node, holder, &infos[i])
				return nil
			})
		}
		_ = g.Wait()
		if !a.json {
			s.Stop()
		}
	}

	if a.json {
		printJSON(infos)
		return
	}
	displayTokens(infos, registry.Source())
}

// readOnChain fills in contract details. Failures are kept per token so
// one broken contract does not hide the others.
func readOnChain(ctx context.Context, caller chain.ContractCaller, holder *common.Address, info *TokenInfo) {
	token := chain.NewToken(caller, info.ContractAddress())

	name, err := token.Name(ctx)
	if err != nil {
		info.Error = err.Error()
		return
	}
	info.Name = name

	if info.OnChainSymbol, err = token.Symbol(ctx); err != nil {
		info.Error = err.Error()
		return
	}

	decimals, err := token.Decimals(ctx)
	if err != nil {
		info.Error = err.Error()
		return
	}
	info.OnChainDecimals = &decimals

	if holder == nil {
		return
	}
	balance, err := token.BalanceOf(ctx, *holder)
	if err != nil {
		info.Error = err.Error()
		return
	}
	info.Balance = parser.FormatAmount(balance, int32(info.Decimals))
}

func displayTokens(infos []TokenInfo, source string) {
	if len(infos) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                 TOKEN REGISTRY")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Printf("  Source: %s\n\n", source)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tDECIMALS\tCONTRACT\tNAME\tBALANCE")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, info := range infos {
		name := info.Name
		if info.OnChainSymbol != "" && !strings.EqualFold(info.OnChainSymbol, info.Symbol) {
			name = fmt.Sprintf("%s (reports %s)", name, info.OnChainSymbol)
		}
		if d := info.OnChainDecimals; d != nil && int(*d) != info.Decimals {
			name = fmt.Sprintf("%s (%d decimals on chain)", name, *d)
		}
		if info.Error != "" {
			name = color.RedString("unreadable")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			color.YellowString(info.Symbol), info.Decimals, info.Address, name, info.Balance)
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("Total: %d tokens\n\n", len(infos))
}
