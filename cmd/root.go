package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eth-shift",
	Short: "Shift Ether into an ERC20 token and back through an exchange",
	Long: `eth-shift moves Ether from a local funds account into an ERC20 token
through a ShapeShift-style exchange, waits for the tokens to arrive and shifts
them back into Ether. Every transaction is tracked to a confirmation depth and
recorded in a run journal.

Examples:
  eth-shift convert --symbol EOS
  eth-shift quote ETH to EOS --amount 0.5
  eth-shift send 0.1 0x1234...abcd
  eth-shift status 0xabcd...1234 --watch
  eth-shift tokens --onchain
  eth-shift history`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default $HOME/.eth-shift.yaml)")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

func printJSON(v any) {
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(output))
}
