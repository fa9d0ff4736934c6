package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

const (
	// ConfigFileName is the name of the config file without extension.
	ConfigFileName = "vesting"
	// AppConfigDir is the directory under the home directory holding the config file.
	AppConfigDir = "config"
	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "VESTING"

	FlagHome      = "home"
	FlagDBPath    = "db_path"
	FlagLogLevel  = "log.level"
	FlagLogFormat = "log.format"

	FlagChainAddressPrefix   = "chain.address_prefix"
	FlagChainRPCAddress      = "chain.rpc_address"
	FlagChainAuthToken       = "chain.auth_token"
	FlagChainContractAddress = "chain.contract_address"
	FlagChainDenom           = "chain.denom"

	FlagSubmitBatchSize          = "submit.batch_size"
	FlagSubmitMinBatchSize       = "submit.min_batch_size"
	FlagSubmitInterBatchDelay    = "submit.inter_batch_delay"
	FlagSubmitTimeout            = "submit.timeout"
	FlagSubmitGasPrice           = "submit.gas_price"
	FlagSubmitGasPriceMultiplier = "submit.gas_price_multiplier"

	FlagHistoryAddress = "history.address"
	FlagKafkaBrokers   = "kafka.brokers"
	FlagKafkaTopic     = "kafka.topic"
)

// GasPolicy describes how a gas limit is derived from the batch size.
type GasPolicy struct {
	BaseGas          uint64  `mapstructure:"base_gas"`
	PerRecordGas     uint64  `mapstructure:"per_record_gas"`
	BufferMultiplier float64 `mapstructure:"buffer_multiplier"`
	MaxGas           uint64  `mapstructure:"max_gas"`
}

// Validate checks the policy bounds.
func (p GasPolicy) Validate() error {
	if p.MaxGas == 0 {
		return errors.New("max gas must be positive")
	}
	if p.BufferMultiplier < 1 {
		return fmt.Errorf("buffer multiplier must be at least 1, got %v", p.BufferMultiplier)
	}
	return nil
}

// ChainConfig points at the signing service and the orchestrator contract.
type ChainConfig struct {
	AddressPrefix   string `mapstructure:"address_prefix"`
	RPCAddress      string `mapstructure:"rpc_address"`
	AuthToken       string `mapstructure:"auth_token"`
	ContractAddress string `mapstructure:"contract_address"`
	Denom           string `mapstructure:"denom"`
}

// SubmitConfig controls batching, pacing and gas escalation.
type SubmitConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	MinBatchSize       int           `mapstructure:"min_batch_size"`
	InterBatchDelay    time.Duration `mapstructure:"inter_batch_delay"`
	Timeout            time.Duration `mapstructure:"timeout"`
	GasPrice           string        `mapstructure:"gas_price"`
	GasPriceMultiplier float64       `mapstructure:"gas_price_multiplier"`
	InitialGas         GasPolicy     `mapstructure:"initial_gas"`
	RetryGas           GasPolicy     `mapstructure:"retry_gas"`
}

// LogConfig configures the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HistoryConfig configures the submission history HTTP endpoint. Empty address disables it.
type HistoryConfig struct {
	Address string `mapstructure:"address"`
}

// KafkaConfig configures publication of batch events. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Config is the full configuration of the vesting batcher.
type Config struct {
	RootDir string        `mapstructure:"home"`
	DBPath  string        `mapstructure:"db_path"`
	Log     LogConfig     `mapstructure:"log"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Submit  SubmitConfig  `mapstructure:"submit"`
	History HistoryConfig `mapstructure:"history"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// DefaultConfig holds the defaults for every setting.
var DefaultConfig = Config{
	RootDir: defaultHome(),
	DBPath:  "data",
	Log: LogConfig{
		Level:  "info",
		Format: "text",
	},
	Chain: ChainConfig{
		AddressPrefix:   "symphony",
		RPCAddress:      "http://localhost:7990",
		ContractAddress: "symphony1wug8sewp6cedgkmrmvhl3lf3tulagm9hnvy8p0rppz9yjw0g4wtqxy47yl",
		Denom:           "note",
	},
	Submit: SubmitConfig{
		BatchSize:          10,
		MinBatchSize:       3,
		InterBatchDelay:    10 * time.Second,
		Timeout:            60 * time.Second,
		GasPrice:           "0.025note",
		GasPriceMultiplier: 1.5,
		InitialGas: GasPolicy{
			BaseGas:          500_000,
			PerRecordGas:     100_000,
			BufferMultiplier: 2.0,
			MaxGas:           2_000_000,
		},
		RetryGas: GasPolicy{
			BaseGas:          1_000_000,
			PerRecordGas:     200_000,
			BufferMultiplier: 2.0,
			MaxGas:           3_000_000,
		},
	},
	Kafka: KafkaConfig{
		Topic: "vesting-batches",
	},
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vesting"
	}
	return filepath.Join(home, ".vesting")
}

// ConfigPath returns the path of the yaml config file.
func (c Config) ConfigPath() string {
	return filepath.Join(c.RootDir, AppConfigDir, ConfigFileName+".yaml")
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Chain.AddressPrefix == "" {
		return errors.New("address prefix must be set")
	}
	if c.Submit.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", vesting.ErrInvalidBatchSize, c.Submit.BatchSize)
	}
	if c.Submit.MinBatchSize < 1 {
		return fmt.Errorf("%w: min batch size must be at least 1, got %d", vesting.ErrInvalidBatchSize, c.Submit.MinBatchSize)
	}
	if c.Submit.InterBatchDelay < 0 {
		return errors.New("inter batch delay must not be negative")
	}
	if c.Submit.GasPriceMultiplier <= 1 {
		return fmt.Errorf("gas price multiplier must be greater than 1, got %v", c.Submit.GasPriceMultiplier)
	}
	if _, err := sdk.ParseDecCoin(c.Submit.GasPrice); err != nil {
		return fmt.Errorf("invalid gas price %q: %w", c.Submit.GasPrice, err)
	}
	if err := c.Submit.InitialGas.Validate(); err != nil {
		return fmt.Errorf("invalid initial gas policy: %w", err)
	}
	if err := c.Submit.RetryGas.Validate(); err != nil {
		return fmt.Errorf("invalid retry gas policy: %w", err)
	}
	return nil
}

// AddGlobalFlags registers flags shared by every command.
func AddGlobalFlags(cmd *cobra.Command, appName string) {
	def := DefaultConfig
	cmd.PersistentFlags().String(FlagHome, filepath.Join(filepath.Dir(def.RootDir), "."+appName), "root directory for config and data")
	cmd.PersistentFlags().String(FlagLogLevel, def.Log.Level, "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String(FlagLogFormat, def.Log.Format, "log format (text, json)")
}

// AddFlags registers the submission flags on cmd.
func AddFlags(cmd *cobra.Command) {
	def := DefaultConfig
	flags := cmd.Flags()

	flags.String(FlagDBPath, def.DBPath, "path for the checkpoint database, relative to home")

	flags.String(FlagChainAddressPrefix, def.Chain.AddressPrefix, "bech32 prefix of recipient addresses")
	flags.String(FlagChainRPCAddress, def.Chain.RPCAddress, "JSON-RPC address of the signing service")
	flags.String(FlagChainAuthToken, def.Chain.AuthToken, "bearer token for the signing service")
	flags.String(FlagChainContractAddress, def.Chain.ContractAddress, "vesting orchestrator contract address")
	flags.String(FlagChainDenom, def.Chain.Denom, "settlement denom of vesting amounts")

	flags.Int(FlagSubmitBatchSize, def.Submit.BatchSize, "number of vesting records per transaction")
	flags.Int(FlagSubmitMinBatchSize, def.Submit.MinBatchSize, "smallest batch size reached by adaptive shrinking")
	flags.Duration(FlagSubmitInterBatchDelay, def.Submit.InterBatchDelay, "delay between consecutive batches")
	flags.Duration(FlagSubmitTimeout, def.Submit.Timeout, "timeout of a single submission attempt")
	flags.String(FlagSubmitGasPrice, def.Submit.GasPrice, "gas price, e.g. 0.025note")
	flags.Float64(FlagSubmitGasPriceMultiplier, def.Submit.GasPriceMultiplier, "gas price multiplier applied after an insufficient fee error")
	addGasPolicyFlags(cmd, "submit.initial_gas", def.Submit.InitialGas, "first attempt")
	addGasPolicyFlags(cmd, "submit.retry_gas", def.Submit.RetryGas, "out of gas retry")

	flags.String(FlagHistoryAddress, def.History.Address, "listen address of the submission history endpoint (disabled when empty)")
	flags.StringSlice(FlagKafkaBrokers, def.Kafka.Brokers, "kafka brokers receiving batch events (disabled when empty)")
	flags.String(FlagKafkaTopic, def.Kafka.Topic, "kafka topic for batch events")
}

func addGasPolicyFlags(cmd *cobra.Command, prefix string, def GasPolicy, usage string) {
	flags := cmd.Flags()
	flags.Uint64(prefix+".base_gas", def.BaseGas, "base gas for the "+usage)
	flags.Uint64(prefix+".per_record_gas", def.PerRecordGas, "gas per vesting record for the "+usage)
	flags.Float64(prefix+".buffer_multiplier", def.BufferMultiplier, "gas buffer multiplier for the "+usage)
	flags.Uint64(prefix+".max_gas", def.MaxGas, "gas limit cap for the "+usage)
}

// Load reads the configuration from flags, environment and the optional config file.
// Precedence: flags set on the command line, environment, config file, defaults.
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	home := v.GetString(FlagHome)
	if home == "" {
		home = DefaultConfig.RootDir
	}
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, AppConfigDir))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.RootDir = home

	return cfg, nil
}
