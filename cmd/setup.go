package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"eth-shift/config"
	"eth-shift/pkg/chain"
	"eth-shift/pkg/exchange"
	"eth-shift/pkg/journal"
	"eth-shift/pkg/keystore"
	"eth-shift/pkg/logger"
	"eth-shift/pkg/tokens"
)

// app bundles what every command builds from the configuration
type app struct {
	cfg  *config.Config
	log  *logrus.Logger
	json bool
}

// loadApp reads configuration and sets up logging. It exits on failure.
func loadApp(cmd *cobra.Command) *app {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(configFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	return &app{cfg: cfg, log: log, json: jsonOutput}
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (a *app) dial(ctx context.Context) (*ethclient.Client, error) {
	a.log.WithField("rpc", a.cfg.Chain.RPCURL).Debug("connecting to node")
	return chain.Dial(ctx, a.cfg.Chain.RPCURL)
}

func (a *app) exchangeClient() *exchange.Client {
	return exchange.NewClient(a.cfg.Exchange)
}

func (a *app) registry() (*tokens.Registry, error) {
	return tokens.Load(a.cfg.Token.Registry)
}

func (a *app) journal() (*journal.Journal, error) {
	return journal.Open(a.cfg.JournalPath)
}

// unlock decrypts the funds account key from the wallet data directory
func (a *app) unlock() (common.Address, *ecdsa.PrivateKey, error) {
	if err := a.cfg.RequireWallet(); err != nil {
		return common.Address{}, nil, err
	}
	account := a.cfg.FundsAddress()
	key, err := keystore.LoadKey(a.cfg.Wallet.DataDir, account, a.cfg.Wallet.Password)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to unlock %s: %w", account.Hex(), err)
	}
	return account, key, nil
}
