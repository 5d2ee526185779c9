package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	DefaultRPCURL          = "http://127.0.0.1:8545"
	DefaultExchangeURL     = "https://shapeshift.io"
	DefaultConfirmations   = 3
	DefaultPollInterval    = time.Second
	DefaultGasMultiplier   = 2
	DefaultTokenSymbol     = "EOS"
	DefaultTokenRegistry   = "ethTokens.json"
	DefaultJournalFileName = ".eth-shift-runs.json"
)

// Config holds the application configuration
type Config struct {
	Chain       ChainConfig
	Exchange    ExchangeConfig
	Wallet      WalletConfig
	Token       TokenConfig
	Log         LogConfig
	JournalPath string
}

// ChainConfig controls how transactions are submitted and confirmed
type ChainConfig struct {
	RPCURL              string
	ChainID             int64 // 0 means ask the node
	Confirmations       uint64
	PollInterval        time.Duration
	GasMultiplier       uint64
	ConfirmationTimeout time.Duration // 0 waits forever
	CheckBalance        bool
}

// ExchangeConfig points at the shifting service
type ExchangeConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// WalletConfig locates the funds account key
type WalletConfig struct {
	Address  string
	DataDir  string
	Password string
}

// TokenConfig names the ERC20 leg of the round trip
type TokenConfig struct {
	Symbol   string
	Registry string
}

// LogConfig configures logrus output
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// Load reads configuration from environment variables and an optional config file.
// An explicit file path overrides the default search locations.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".eth-shift")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("ETH_SHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names used by existing deployments
	_ = v.BindEnv("wallet.address", "ETH_SHIFT_WALLET_ADDRESS", "FUNDS_ACCOUNT_ADDRESS")
	_ = v.BindEnv("wallet.password", "ETH_SHIFT_WALLET_PASSWORD", "FUNDS_ACCOUNT_PASSWORD")
	_ = v.BindEnv("wallet.data_dir", "ETH_SHIFT_WALLET_DATA_DIR", "ETHEREUM_WALLET_DATA_DIR")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Chain: ChainConfig{
			RPCURL:              v.GetString("rpc_url"),
			ChainID:             v.GetInt64("chain_id"),
			Confirmations:       v.GetUint64("confirmations"),
			PollInterval:        v.GetDuration("poll_interval"),
			GasMultiplier:       v.GetUint64("gas_multiplier"),
			ConfirmationTimeout: v.GetDuration("confirmation_timeout"),
			CheckBalance:        v.GetBool("check_balance"),
		},
		Exchange: ExchangeConfig{
			BaseURL: v.GetString("exchange.base_url"),
			APIKey:  v.GetString("exchange.api_key"),
			Timeout: v.GetDuration("exchange.timeout"),
		},
		Wallet: WalletConfig{
			Address:  v.GetString("wallet.address"),
			DataDir:  v.GetString("wallet.data_dir"),
			Password: v.GetString("wallet.password"),
		},
		Token: TokenConfig{
			Symbol:   strings.ToUpper(v.GetString("token.symbol")),
			Registry: v.GetString("token.registry"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			File:       v.GetString("log.file"),
			MaxSize:    v.GetInt("log.max_size"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAge:     v.GetInt("log.max_age"),
		},
		JournalPath: v.GetString("journal_path"),
	}

	if cfg.JournalPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.JournalPath = filepath.Join(home, DefaultJournalFileName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", DefaultRPCURL)
	v.SetDefault("chain_id", 0)
	v.SetDefault("confirmations", DefaultConfirmations)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("gas_multiplier", DefaultGasMultiplier)
	v.SetDefault("confirmation_timeout", 0)
	v.SetDefault("check_balance", true)
	v.SetDefault("exchange.base_url", DefaultExchangeURL)
	v.SetDefault("exchange.timeout", 30*time.Second)
	v.SetDefault("token.symbol", DefaultTokenSymbol)
	v.SetDefault("token.registry", DefaultTokenRegistry)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// Validate checks the settings that every command depends on.
// Wallet settings are checked separately by RequireWallet since
// read-only commands do not need a key.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("RPC URL not configured. Set ETH_SHIFT_RPC_URL or rpc_url in .eth-shift.yaml")
	}
	if c.Chain.Confirmations == 0 {
		return fmt.Errorf("confirmations must be at least 1")
	}
	if c.Chain.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Chain.GasMultiplier == 0 {
		return fmt.Errorf("gas multiplier must be at least 1")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange base URL not configured")
	}
	return nil
}

// RequireWallet checks that the funds account can be unlocked
func (c *Config) RequireWallet() error {
	if c.Wallet.Address == "" {
		return fmt.Errorf("funds account address not found. Set FUNDS_ACCOUNT_ADDRESS or wallet.address")
	}
	if !common.IsHexAddress(c.Wallet.Address) {
		return fmt.Errorf("invalid funds account address: %s", c.Wallet.Address)
	}
	if c.Wallet.DataDir == "" {
		return fmt.Errorf("wallet data directory not found. Set ETHEREUM_WALLET_DATA_DIR or wallet.data_dir")
	}
	return nil
}

// FundsAddress returns the configured funds account
func (c *Config) FundsAddress() common.Address {
	return common.HexToAddress(c.Wallet.Address)
}
