// Package chainclient is the fleet's only point of contact with the chain:
// reading blocks, gas price, and registry contract state, and writing
// signal/prediction/registration transactions. It offers the same
// interface plus Live/Stub split the teacher uses for its Solana RPC
// client, retargeted from Solana's getAccountInfo-shaped RPC to EVM
// JSON-RPC and a four-method registry contract ABI.
package chainclient

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Address is a 20-byte EVM address, hex-encoded with 0x prefix.
type Address string

// TxHash is a 32-byte transaction hash, hex-encoded with 0x prefix.
type TxHash string

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash      TxHash
	BlockNumber uint64
	Status      bool // true = success
	GasUsed     uint64
}

// LogEntry is one decoded event log returned by GetLogs.
type LogEntry struct {
	Address     Address
	Topics      []string
	Data        string
	BlockNumber uint64
	TxHash      TxHash
}

// Client is the interface every agent and the hub use to touch the chain.
// Implementations: Live (real JSON-RPC node), Stub (testing).
type Client interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetGasPriceGwei(ctx context.Context) (decimal.Decimal, error)
	GetLogs(ctx context.Context, address Address, topic string, fromBlock, toBlock uint64) ([]LogEntry, error)
	ReadContract(ctx context.Context, address Address, method string, args ...any) ([]any, error)
	WriteContract(ctx context.Context, address Address, method string, args ...any) (TxHash, error)
	WaitForReceipt(ctx context.Context, tx TxHash) (*Receipt, error)
	Health(ctx context.Context) error
}

// Config configures a Live client.
type Config struct {
	Endpoint      string        `yaml:"endpoint"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RateLimitRPS  float64       `yaml:"rate_limit_rps"`
	PrivateKeyHex string        `yaml:"private_key"`
	RegistryAddr  Address       `yaml:"registry_address"`
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RateLimitRPS: 10,
	}
}

// Registry method names, used as the `method` argument to ReadContract
// and WriteContract. The ABI these encode to is fixed by the on-chain
// registry contract and lives in abi.go.
const (
	MethodRegisterAgent   = "registerAgent"
	MethodPostSignal      = "postSignal"
	MethodPostPrediction  = "postPrediction"
	MethodVerifyPrediction = "verifyPrediction"
)
